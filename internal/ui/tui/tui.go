package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/betbot/statusdash/internal/dashboard"
	"github.com/betbot/statusdash/pkg/logger"
)

// Source 视图来源（poller.Driver 实现）
type Source interface {
	Controller
	Subscribe() <-chan dashboard.ViewModel
}

// Run 在当前终端运行仪表盘，阻塞直到用户退出、ctx 取消或驱动停止。
// 运行期间日志只写文件。
func Run(ctx context.Context, src Source) error {
	logger.RedirectToFile()

	m := newModel(src.Subscribe(), src)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return errors.Wrap(err, "tui")
	}
	return nil
}
