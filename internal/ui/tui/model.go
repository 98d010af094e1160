package tui

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/betbot/statusdash/internal/dashboard"
)

var log = logrus.WithField("module", "ui.tui")

const (
	loginTimeout = 30 * time.Second
	barWidth     = 20
)

// Controller 展示层可以发起的操作（poller.Driver 实现）
type Controller interface {
	Login(ctx context.Context, email, password string) (string, error)
	DismissAuthError(ctx context.Context)
}

type viewMsg struct {
	vm dashboard.ViewModel
}

type closedMsg struct{}

type loginResultMsg struct {
	userID string
	err    error
}

type tickMsg time.Time

type field int

const (
	fieldEmail field = iota
	fieldPassword
)

var (
	accentColor = lipgloss.Color("39")
	winColor    = lipgloss.Color("46")
	dangerColor = lipgloss.Color("196")
	mutedColor  = lipgloss.Color("244")

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	winStyle    = lipgloss.NewStyle().Foreground(winColor)
	dangerStyle = lipgloss.NewStyle().Foreground(dangerColor)
	mutedStyle  = lipgloss.NewStyle().Foreground(mutedColor)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(accentColor).Padding(0, 1)
	modalStyle  = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(dangerColor).Padding(1, 2)
)

type model struct {
	vm      dashboard.ViewModel
	updates <-chan dashboard.ViewModel
	ctrl    Controller
	now     time.Time

	width  int
	height int

	email      string
	password   string
	focus      field
	submitting bool
	authErr    string // 非空时显示阻塞弹窗，任意键关闭
}

func newModel(updates <-chan dashboard.ViewModel, ctrl Controller) model {
	return model{
		updates: updates,
		ctrl:    ctrl,
		now:     time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.waitForUpdate(),
		m.tick(),
	)
}

func (m model) loginVisible() bool {
	return m.vm.Session.Enabled && !m.vm.Session.Authenticated
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case viewMsg:
		m.vm = msg.vm
		return m, m.waitForUpdate()
	case closedMsg:
		return m, tea.Quit
	case loginResultMsg:
		m.submitting = false
		if msg.err != nil {
			m.authErr = msg.err.Error()
			m.password = ""
			return m, nil
		}
		log.Infof("已登录: user_id=%s", msg.userID)
		m.email, m.password, m.focus = "", "", fieldEmail
		return m, nil
	case tickMsg:
		m.now = time.Time(msg)
		return m, m.tick()
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	// 错误弹窗：任意键关闭
	if m.authErr != "" {
		m.authErr = ""
		return m, m.dismiss()
	}

	if !m.loginVisible() {
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	}
	if m.submitting {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyTab, tea.KeyShiftTab, tea.KeyUp, tea.KeyDown:
		m.focus = 1 - m.focus
	case tea.KeyEnter:
		if m.focus == fieldEmail {
			m.focus = fieldPassword
			return m, nil
		}
		m.submitting = true
		return m, m.login(m.email, m.password)
	case tea.KeyBackspace:
		if m.focus == fieldEmail {
			m.email = dropLastRune(m.email)
		} else {
			m.password = dropLastRune(m.password)
		}
	case tea.KeyRunes, tea.KeySpace:
		s := string(msg.Runes)
		if msg.Type == tea.KeySpace {
			s = " "
		}
		if m.focus == fieldEmail {
			m.email += s
		} else {
			m.password += s
		}
	}
	return m, nil
}

func dropLastRune(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	return string(r[:len(r)-1])
}

func (m model) login(email, password string) tea.Cmd {
	ctrl := m.ctrl
	return func() tea.Msg {
		if ctrl == nil {
			return loginResultMsg{err: fmt.Errorf("登录不可用")}
		}
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		id, err := ctrl.Login(ctx, email, password)
		return loginResultMsg{userID: id, err: err}
	}
}

func (m model) dismiss() tea.Cmd {
	ctrl := m.ctrl
	if ctrl == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		ctrl.DismissAuthError(ctx)
		return nil
	}
}

func (m model) waitForUpdate() tea.Cmd {
	updates := m.updates
	return func() tea.Msg {
		vm, ok := <-updates
		if !ok {
			return closedMsg{}
		}
		return viewMsg{vm: vm}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) View() string {
	width := m.width - 4
	if width < 72 {
		width = 72
	}

	var body string
	switch {
	case m.authErr != "":
		body = m.renderModal(width)
	case m.loginVisible():
		body = m.renderLogin(width)
	default:
		body = m.renderDashboard(width)
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.renderHeader(), body)
}

func (m model) renderHeader() string {
	phase := m.vm.PhaseText
	if phase == "" {
		phase = "-"
	}
	user := ""
	if m.vm.Session.Authenticated {
		user = " | " + m.vm.Session.UserID
	}
	return titleStyle.Padding(0, 1).Render(fmt.Sprintf("statusdash | %s%s | %s",
		phase, user, m.now.Format("15:04:05")))
}

func (m model) renderDashboard(width int) string {
	leftWidth := width/2 - 1
	rightWidth := width - leftWidth - 2

	left := panelStyle.Width(leftWidth).Render(strings.Join([]string{
		m.renderStats(leftWidth),
		"",
		m.renderChart(leftWidth),
		"",
		m.renderTrades(leftWidth),
	}, "\n"))
	right := panelStyle.Width(rightWidth).Render(m.renderLogs(rightWidth))

	content := lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
	help := mutedStyle.Render(" q 退出")
	return lipgloss.JoinVertical(lipgloss.Left, content, help)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (m model) renderStats(width int) string {
	vm := m.vm
	var lines []string
	lines = append(lines, titleStyle.Render("Estado"))
	lines = append(lines, strings.Repeat("─", width-4))
	lines = append(lines, fmt.Sprintf("Balance:   %s", orDash(vm.BalanceText)))
	lines = append(lines, fmt.Sprintf("Win rate:  %s %s", renderBar(vm.WinRateBar, barWidth), orDash(vm.WinRateText)))
	lines = append(lines, fmt.Sprintf("Ops:       %s", orDash(vm.OpsText)))
	lines = append(lines, fmt.Sprintf("Activo:    %s", orDash(vm.AssetText)))
	lines = append(lines, fmt.Sprintf("Confianza: %s", orDash(vm.ConfidenceText)))
	return strings.Join(lines, "\n")
}

func renderBar(pct float64, width int) string {
	filled := int(math.Round(pct / 100 * float64(width)))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return winStyle.Render(strings.Repeat("█", filled)) + mutedStyle.Render(strings.Repeat("░", width-filled))
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

func sparkline(samples []float64) string {
	var b strings.Builder
	for _, v := range samples {
		idx := int(v / 100 * float64(len(sparkRunes)-1))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkRunes) {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}

func (m model) renderChart(width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Confianza"))
	lines = append(lines, strings.Repeat("─", width-4))
	lines = append(lines, winStyle.Render(sparkline(m.vm.Chart)))
	return strings.Join(lines, "\n")
}

func (m model) renderTrades(width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Operaciones recientes"))
	lines = append(lines, strings.Repeat("─", width-4))
	if len(m.vm.Trades) == 0 {
		lines = append(lines, mutedStyle.Render("Sin operaciones"))
	}
	for _, t := range m.vm.Trades {
		style := dangerStyle
		if t.Style == dashboard.StyleWin {
			style = winStyle
		}
		lines = append(lines, fmt.Sprintf("%-8s %-18s %s %s",
			t.Asset, t.Detail, style.Render(fmt.Sprintf("%9s", t.Amount)), style.Render(t.Outcome)))
	}
	return strings.Join(lines, "\n")
}

// logRows 日志面板可显示的行数
func (m model) logRows() int {
	if m.height <= 0 {
		return dashboard.MaxLogLines
	}
	rows := m.height - 6
	if rows < 5 {
		rows = 5
	}
	return rows
}

func (m model) renderLogs(width int) string {
	var lines []string
	lines = append(lines, titleStyle.Render("Logs"))
	lines = append(lines, strings.Repeat("─", width-4))

	// 始终停在末尾：只显示最新的几行
	logs := m.vm.Logs
	if n := m.logRows(); len(logs) > n {
		logs = logs[len(logs)-n:]
	}
	for _, l := range logs {
		lines = append(lines, truncate(l.Text, width-4))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func (m model) renderLogin(width int) string {
	cursor := func(f field) string {
		if m.focus == f && !m.submitting {
			return "▌"
		}
		return ""
	}
	label := func(f field, s string) string {
		if m.focus == f {
			return titleStyle.Render(s)
		}
		return s
	}

	lines := []string{
		titleStyle.Render("Iniciar sesión"),
		"",
		label(fieldEmail, "Email:    ") + m.email + cursor(fieldEmail),
		label(fieldPassword, "Password: ") + strings.Repeat("*", len([]rune(m.password))) + cursor(fieldPassword),
		"",
	}
	if m.submitting {
		lines = append(lines, mutedStyle.Render("Conectando..."))
	} else {
		lines = append(lines, mutedStyle.Render("tab 切换 · enter 提交 · ctrl+c 退出"))
	}
	box := panelStyle.Width(48).Render(strings.Join(lines, "\n"))
	return lipgloss.Place(width, 12, lipgloss.Center, lipgloss.Center, box)
}

func (m model) renderModal(width int) string {
	box := modalStyle.Render(dangerStyle.Bold(true).Render(m.authErr) + "\n\n" + mutedStyle.Render("按任意键继续"))
	return lipgloss.Place(width, 12, lipgloss.Center, lipgloss.Center, box)
}
