package dashboard

import (
	"github.com/betbot/statusdash/internal/api"
)

// MaxLogLines 日志面板最多保留的行数
const MaxLogLines = 50

// LogEntry 已显示的一行日志
type LogEntry struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// LogView 有界日志列表：尾部追加，超出上限时从头部淘汰
type LogView struct {
	entries []LogEntry
	max     int
}

func NewLogView() *LogView {
	return &LogView{max: MaxLogLines}
}

// Reconcile 合并一批新日志，返回实际追加的行数。
// 与已显示条目 Key 相同的行不再追加（同一批里重复的行也只追加一次），
// 处理完后从头部裁剪到 MaxLogLines。
func (v *LogView) Reconcile(incoming []api.LogLine) int {
	if len(incoming) == 0 {
		return 0
	}

	shown := make(map[string]struct{}, len(v.entries)+len(incoming))
	for _, e := range v.entries {
		shown[e.Key] = struct{}{}
	}

	appended := 0
	for _, line := range incoming {
		key := line.Key()
		if _, ok := shown[key]; ok {
			continue
		}
		shown[key] = struct{}{}
		v.entries = append(v.entries, LogEntry{Key: key, Text: line.Text})
		appended++
	}

	if over := len(v.entries) - v.max; over > 0 {
		kept := make([]LogEntry, v.max)
		copy(kept, v.entries[over:])
		v.entries = kept
	}
	return appended
}

// Entries 返回副本（最旧在前）
func (v *LogView) Entries() []LogEntry {
	out := make([]LogEntry, len(v.entries))
	copy(out, v.entries)
	return out
}

// Lines 只返回文本
func (v *LogView) Lines() []string {
	out := make([]string, len(v.entries))
	for i, e := range v.entries {
		out[i] = e.Text
	}
	return out
}

func (v *LogView) Len() int {
	return len(v.entries)
}
