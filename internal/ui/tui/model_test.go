package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/statusdash/internal/dashboard"
)

type fakeController struct {
	email, password string
	userID          string
	err             error
	dismissed       int
}

func (f *fakeController) Login(ctx context.Context, email, password string) (string, error) {
	f.email, f.password = email, password
	return f.userID, f.err
}

func (f *fakeController) DismissAuthError(ctx context.Context) {
	f.dismissed++
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func typeText(t *testing.T, m model, s string) model {
	for _, r := range s {
		m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

func sampleView() dashboard.ViewModel {
	st := dashboard.NewState("")
	return st.View()
}

func TestModel_RendersViewUpdates(t *testing.T) {
	updates := make(chan dashboard.ViewModel, 1)
	m := newModel(updates, nil)

	vm := sampleView()
	vm.BalanceText = "$1,234.5"
	vm.WinRateText = "62%"
	vm.WinRateBar = 62
	vm.AssetText = "EURUSD"
	vm.ConfidenceText = "81% Confianza"
	vm.Logs = []dashboard.LogEntry{{Key: "text:hola", Text: "hola"}}
	vm.Trades = []dashboard.TradeRow{{Asset: "EURUSD", Detail: "CALL • smc", Amount: "+$8.50", Style: dashboard.StyleWin, Outcome: "WIN"}}

	m, cmd := update(t, m, viewMsg{vm: vm})
	assert.NotNil(t, cmd, "收到更新后继续等待下一次")

	out := m.View()
	for _, want := range []string{"$1,234.5", "62%", "EURUSD", "81% Confianza", "hola", "CALL • smc", "+$8.50", "WIN"} {
		assert.Contains(t, out, want)
	}
}

func TestModel_WaitForUpdateQuitsWhenClosed(t *testing.T) {
	updates := make(chan dashboard.ViewModel)
	close(updates)
	m := newModel(updates, nil)
	msg := m.waitForUpdate()()
	assert.IsType(t, closedMsg{}, msg)
}

func TestModel_LoginFlow(t *testing.T) {
	ctrl := &fakeController{userID: "u1"}
	m := newModel(nil, ctrl)
	vm := sampleView()
	vm.Session = dashboard.SessionView{Enabled: true}
	m, _ = update(t, m, viewMsg{vm: vm})

	out := m.View()
	assert.Contains(t, out, "Iniciar sesión")

	m = typeText(t, m, "a@b.c")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m = typeText(t, m, "pw")
	assert.Contains(t, m.View(), "**")
	assert.NotContains(t, m.View(), "pw")

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, m.submitting)

	res := cmd()
	m, _ = update(t, m, res)
	assert.Equal(t, "a@b.c", ctrl.email)
	assert.Equal(t, "pw", ctrl.password)
	assert.False(t, m.submitting)
	assert.Empty(t, m.authErr)
}

func TestModel_AuthErrorModal(t *testing.T) {
	ctrl := &fakeController{err: errors.New("登录失败: bad")}
	m := newModel(nil, ctrl)
	vm := sampleView()
	vm.Session = dashboard.SessionView{Enabled: true}
	m, _ = update(t, m, viewMsg{vm: vm})

	m = typeText(t, m, "a@b.c")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(t, m, "x")
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())

	out := m.View()
	assert.Contains(t, out, "登录失败: bad")
	assert.NotContains(t, out, "Iniciar sesión", "弹窗阻塞登录表单")

	// 弹窗期间的按键只用来关闭弹窗
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'z'}})
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.dismissed)
	assert.Empty(t, m.authErr)
	assert.Empty(t, m.password)
	assert.Equal(t, "a@b.c", m.email)
	assert.Contains(t, m.View(), "Iniciar sesión")
}

func TestModel_QuitKey(t *testing.T) {
	m := newModel(nil, nil)
	m, _ = update(t, m, viewMsg{vm: sampleView()})
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestSparkline(t *testing.T) {
	s := sparkline([]float64{0, 50, 100})
	assert.Equal(t, 3, len([]rune(s)))
	assert.True(t, strings.HasPrefix(s, "▁"))
	assert.True(t, strings.HasSuffix(s, "█"))
}
