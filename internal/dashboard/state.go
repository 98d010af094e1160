package dashboard

import (
	"time"

	"github.com/betbot/statusdash/internal/api"
)

// DefaultNoneSentinel 后端用来表示“当前无持仓资产”的占位值
const DefaultNoneSentinel = "Ninguno"

// SessionView 登录门控状态
type SessionView struct {
	Enabled       bool   `json:"enabled"`
	Authenticated bool   `json:"authenticated"`
	UserID        string `json:"user_id,omitempty"`
}

// ViewModel 展示层使用的完整只读视图。State.View() 每次返回独立副本。
type ViewModel struct {
	BalanceText    string  `json:"balance_text"`
	WinRateText    string  `json:"win_rate_text"`
	WinRateBar     float64 `json:"win_rate_bar"` // 进度条宽度，0-100
	OpsText        string  `json:"ops_text"`
	PhaseText      string  `json:"phase_text"`
	AssetText      string  `json:"asset_text"`
	ConfidenceText string  `json:"confidence_text"`

	Chart          []float64  `json:"chart"`
	Logs           []LogEntry `json:"logs"`
	LogScrollToEnd bool       `json:"log_scroll_to_end"` // 最近一次更新有新日志追加
	Trades         []TradeRow `json:"trades"`

	Session   SessionView `json:"session"`
	AuthError string      `json:"auth_error,omitempty"`

	Tick      uint64    `json:"tick"` // 最近一次应用的 tick
	UpdatedAt time.Time `json:"updated_at"`
}

// State 渲染引擎：持有图表、日志、成交等跨 tick 状态，把快照投影到视图上。
// 只允许单个 goroutine（轮询驱动循环）调用写方法。
type State struct {
	noneSentinel string

	vm     ViewModel
	chart  *ChartSeries
	logs   *LogView
	trades []TradeRow
}

// NewState 创建渲染状态；图表初始化为 ChartPoints 个 0
func NewState(noneSentinel string) *State {
	if noneSentinel == "" {
		noneSentinel = DefaultNoneSentinel
	}
	return &State{
		noneSentinel: noneSentinel,
		chart:        NewChartSeries(),
		logs:         NewLogView(),
		trades:       []TradeRow{},
	}
}

// NoneSentinel 当前使用的占位值
func (s *State) NoneSentinel() string {
	return s.noneSentinel
}

// Apply 把一次快照投影到视图上。
// active_asset 为占位值时，资产、置信度和图表都保持上一次的值（不清空，避免闪烁）。
// logs / recent_trades 为 nil（后端没给）时不动；非 nil 时分别做合并和整体替换。
func (s *State) Apply(snap *api.StatusSnapshot) {
	if snap == nil {
		return
	}

	s.vm.BalanceText = FormatBalance(snap.Balance)
	s.vm.WinRateText = FormatPercent(snap.WinRate)
	s.vm.WinRateBar = clampPercent(snap.WinRate)
	s.vm.OpsText = snap.OpsCount.String()
	s.vm.PhaseText = snap.CurrentPhase

	if snap.ActiveAsset != s.noneSentinel {
		s.vm.AssetText = snap.ActiveAsset
		s.vm.ConfidenceText = FormatConfidence(snap.Confidence)
		s.chart.Push(snap.Confidence)
	}

	s.vm.LogScrollToEnd = false
	if snap.Logs != nil {
		s.vm.LogScrollToEnd = s.logs.Reconcile(snap.Logs) > 0
	}

	if snap.RecentTrades != nil {
		s.trades = RenderTrades(snap.RecentTrades)
	}
}

// MarkApplied 记录最近一次应用的 tick
func (s *State) MarkApplied(tick uint64, at time.Time) {
	s.vm.Tick = tick
	s.vm.UpdatedAt = at
}

// SetSession 更新登录门控状态
func (s *State) SetSession(sv SessionView) {
	s.vm.Session = sv
}

// SetAuthError 记录最近一次登录错误（空字符串表示清除）
func (s *State) SetAuthError(msg string) {
	s.vm.AuthError = msg
}

// View 返回当前视图的独立副本
func (s *State) View() ViewModel {
	vm := s.vm
	vm.Chart = s.chart.Samples()
	vm.Logs = s.logs.Entries()
	vm.Trades = make([]TradeRow, len(s.trades))
	copy(vm.Trades, s.trades)
	return vm
}

// Project 应用快照并返回新的视图副本
func (s *State) Project(snap *api.StatusSnapshot) ViewModel {
	s.Apply(snap)
	return s.View()
}
