package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// decodeSnapshot 解析快照；null、{} 或缺少 balance 的 body 视为无效，
// 否则后端的 {"detail":"Not Found"} 之类会被当成全零快照渲染
func decodeSnapshot(payload []byte) (*StatusSnapshot, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}
	raw, ok := fields["balance"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, fmt.Errorf("快照缺少 balance 字段")
	}
	var snap StatusSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// StatusSnapshot 一次状态轮询返回的快照
type StatusSnapshot struct {
	Balance      float64   `json:"balance"`
	WinRate      float64   `json:"win_rate"`  // 0-100
	OpsCount     OpsCount  `json:"ops_count"` // 整数或 "3/20" 形式
	CurrentPhase string    `json:"current_phase"`
	ActiveAsset  string    `json:"active_asset"` // "Ninguno" 表示无持仓资产
	Confidence   float64   `json:"confidence"`   // 0-100
	Logs         []LogLine `json:"logs"`         // 缺省为 nil，与空列表区分
	RecentTrades []Trade   `json:"recent_trades"`
}

// Trade 最近成交
type Trade struct {
	Asset    string  `json:"asset"`
	Action   string  `json:"action"`
	Strategy string  `json:"strategy"`
	Result   string  `json:"result"` // win | loss
	Profit   float64 `json:"profit"` // 符号不可信，展示时以 Result 为准
}

// IsWin 是否盈利单
func (t Trade) IsWin() bool {
	return strings.EqualFold(strings.TrimSpace(t.Result), "win")
}

// OpsCount 操作计数。后端可能返回整数，也可能返回 "0/20" 这样的字符串，原样展示。
type OpsCount string

func (o *OpsCount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*o = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = OpsCount(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("ops_count: %w", err)
	}
	// 整数形式的浮点（例如 3.0）按整数展示
	if f, err := n.Float64(); err == nil && f == float64(int64(f)) {
		*o = OpsCount(strconv.FormatInt(int64(f), 10))
		return nil
	}
	*o = OpsCount(n.String())
	return nil
}

func (o OpsCount) String() string {
	return string(o)
}

// LogLine 日志行。后端可以只给文本，也可以给 {id, text} 带稳定标识。
type LogLine struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// Key 去重用的身份：有 ID 用 ID，否则用文本
func (l LogLine) Key() string {
	if l.ID != "" {
		return "id:" + l.ID
	}
	return "text:" + l.Text
}

func (l *LogLine) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = LogLine{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LogLine{Text: s}
		return nil
	}

	var raw struct {
		ID      flexString `json:"id"`
		Seq     flexString `json:"seq"`
		Text    string     `json:"text"`
		Message string     `json:"message"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("log line: %w", err)
	}
	line := LogLine{ID: string(raw.ID), Text: raw.Text}
	if line.ID == "" {
		line.ID = string(raw.Seq)
	}
	if line.Text == "" {
		line.Text = raw.Message
	}
	*l = line
	return nil
}

// LoginRequest POST /api/login 请求体
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse 登录响应
type LoginResponse struct {
	Status  string     `json:"status"`
	UserID  flexString `json:"user_id"`
	Message string     `json:"message"`
}

// flexString 接受字符串或数字
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// streamEnvelope websocket 推送包装：{type: "status_update", data: {...}}
type streamEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
