package console

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/betbot/statusdash/internal/dashboard"
)

// Source 视图来源（poller.Driver 实现）
type Source interface {
	Subscribe() <-chan dashboard.ViewModel
}

// Printer 无终端环境下的展示层：把视图变化写成结构化日志
type Printer struct {
	log *logrus.Entry

	last     dashboard.ViewModel
	seenLogs map[string]struct{}
	started  bool
}

// NewPrinter 创建 Printer；entry 为 nil 时使用全局 logrus
func NewPrinter(entry *logrus.Entry) *Printer {
	if entry == nil {
		entry = logrus.WithField("module", "ui.console")
	}
	return &Printer{log: entry, seenLogs: make(map[string]struct{})}
}

// Run 消费视图更新直到 ctx 取消或驱动停止
func (p *Printer) Run(ctx context.Context, src Source) error {
	updates := src.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case vm, ok := <-updates:
			if !ok {
				return nil
			}
			p.Print(vm)
		}
	}
}

// Print 输出与上一次视图相比的变化
func (p *Printer) Print(vm dashboard.ViewModel) {
	if vm.Session.Enabled && vm.Session != p.last.Session {
		p.log.WithFields(logrus.Fields{
			"authenticated": vm.Session.Authenticated,
			"user_id":       vm.Session.UserID,
		}).Info("登录状态变化")
	}
	if vm.AuthError != "" && vm.AuthError != p.last.AuthError {
		p.log.Error(vm.AuthError)
	}

	if vm.Tick != 0 && (!p.started || statusChanged(p.last, vm)) {
		p.log.WithFields(logrus.Fields{
			"tick":       vm.Tick,
			"balance":    vm.BalanceText,
			"win_rate":   vm.WinRateText,
			"ops":        vm.OpsText,
			"phase":      vm.PhaseText,
			"asset":      vm.AssetText,
			"confidence": vm.ConfidenceText,
		}).Info("状态更新")
		p.started = true
	}

	// 日志行按 key 去重，只打印新出现的
	current := make(map[string]struct{}, len(vm.Logs))
	for _, l := range vm.Logs {
		current[l.Key] = struct{}{}
		if _, ok := p.seenLogs[l.Key]; ok {
			continue
		}
		p.log.WithField("source", "backend").Info(l.Text)
	}
	p.seenLogs = current

	if tradesChanged(p.last.Trades, vm.Trades) {
		for _, t := range vm.Trades {
			entry := p.log.WithFields(logrus.Fields{
				"asset":   t.Asset,
				"detail":  t.Detail,
				"amount":  t.Amount,
				"outcome": t.Outcome,
			})
			if t.Style == dashboard.StyleWin {
				entry.Info("成交")
			} else {
				entry.Warn("成交")
			}
		}
	}

	p.last = vm
}

func statusChanged(a, b dashboard.ViewModel) bool {
	return a.BalanceText != b.BalanceText ||
		a.WinRateText != b.WinRateText ||
		a.OpsText != b.OpsText ||
		a.PhaseText != b.PhaseText ||
		a.AssetText != b.AssetText ||
		a.ConfidenceText != b.ConfidenceText
}

func tradesChanged(a, b []dashboard.TradeRow) bool {
	if len(a) != len(b) {
		return true
	}
	for i := range a {
		if a[i] != b[i] {
			return true
		}
	}
	return false
}
