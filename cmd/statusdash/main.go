package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/betbot/statusdash/internal/api"
	"github.com/betbot/statusdash/internal/metrics"
	"github.com/betbot/statusdash/internal/poller"
	"github.com/betbot/statusdash/internal/session"
	"github.com/betbot/statusdash/internal/ui/console"
	"github.com/betbot/statusdash/internal/ui/tui"
	"github.com/betbot/statusdash/internal/ui/web"
	"github.com/betbot/statusdash/pkg/config"
	"github.com/betbot/statusdash/pkg/logger"
	"github.com/betbot/statusdash/pkg/shutdown"
	"github.com/betbot/statusdash/pkg/syncgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	// Load .env (best-effort). If missing, fall back to real env vars.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", os.Getenv("STATUSDASH_CONFIG"), "config file (yaml/json)")
		uiAdapter  = flag.String("ui", "", "presentation adapter: auto|tui|console|web (overrides config)")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *uiAdapter != "" {
		cfg.UI.Adapter = *uiAdapter
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid -ui: %v", err)
		}
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}

	os.Exit(run(cfg))
}

func resolveAdapter(name string) string {
	if name != config.UIAuto {
		return name
	}
	if term.IsTerminal(int(os.Stdout.Fd())) && term.IsTerminal(int(os.Stdin.Fd())) {
		return config.UITUI
	}
	return config.UIConsole
}

func run(cfg *config.Config) int {
	defer logger.Close()
	mainLog := logrus.WithField("module", "main")

	adapter := resolveAdapter(cfg.UI.Adapter)
	mainLog.Infof("statusdash 启动: backend=%s adapter=%s", cfg.Backend.BaseURL, adapter)

	client := api.NewClient(api.Options{
		BaseURL:    cfg.Backend.BaseURL,
		StatusPath: cfg.Backend.StatusPath,
		LoginPath:  cfg.Backend.LoginPath,
		StreamPath: cfg.Backend.StreamPath,
		Timeout:    cfg.Backend.RequestTimeout.Duration,
		Proxy:      cfg.ProxyURL(),
	})

	shutdownMgr := shutdown.NewManager()

	var gate *session.Gate
	if cfg.Session.Enabled {
		store, svc, err := session.OpenStore(cfg.Session)
		if err != nil {
			mainLog.Errorf("打开 session 存储失败: %v", err)
			return 1
		}
		shutdownMgr.OnShutdown("session store", func(ctx context.Context) error { return svc.Close() })

		gate, err = session.NewGate(store, client)
		if err != nil {
			mainLog.Errorf("初始化登录门控失败: %v", err)
			_ = shutdownMgr.Shutdown(context.Background())
			return 1
		}
	}

	var driver *poller.Driver
	if gate != nil {
		driver = poller.New(client, gate, poller.OptionsFromConfig(cfg))
	} else {
		driver = poller.New(client, nil, poller.OptionsFromConfig(cfg))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if cfg.Metrics.Addr != "" {
		if _, err := metrics.StartAsync(ctx, cfg.Metrics.Addr); err != nil {
			mainLog.Warnf("启动 debug 服务失败: %v", err)
		}
	}

	group := syncgroup.New()
	group.Go(ctx, func(ctx context.Context) {
		if err := driver.Run(ctx); err != nil {
			mainLog.Errorf("轮询驱动退出: %v", err)
		}
	})

	exitCode := 0
	if gate != nil && !gate.Authenticated() {
		if cfg.Session.Email != "" && cfg.Session.Password != "" {
			if _, err := driver.Login(ctx, cfg.Session.Email, cfg.Session.Password); err != nil {
				mainLog.Errorf("使用配置的凭证登录失败: %v", err)
				if adapter == config.UIConsole {
					exitCode = 1
					cancel()
				}
			}
		} else if adapter == config.UIConsole {
			mainLog.Warn("未登录：请设置 STATUSDASH_EMAIL/STATUSDASH_PASSWORD，或使用 -ui tui / -ui web 登录")
		}
	}

	if ctx.Err() == nil {
		if err := runAdapter(ctx, adapter, cfg, driver, shutdownMgr); err != nil {
			mainLog.Errorf("展示层退出: %v", err)
			exitCode = 1
		}
	}

	// TUI 主动退出时也要停掉驱动
	cancel()

	waitCtx, waitCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer waitCancel()
	group.Close()
	if err := group.WaitContext(waitCtx); err != nil {
		mainLog.Warnf("等待后台任务超时: %v", err)
	}
	if err := shutdownMgr.Shutdown(waitCtx); err != nil {
		mainLog.Warnf("关闭失败: %v", err)
	}

	if adapter == config.UITUI {
		fmt.Println("statusdash stopped")
	}
	mainLog.Info("statusdash 已退出")
	return exitCode
}

func runAdapter(ctx context.Context, adapter string, cfg *config.Config, driver *poller.Driver, shutdownMgr *shutdown.Manager) error {
	switch adapter {
	case config.UITUI:
		return tui.Run(ctx, driver)
	case config.UIWeb:
		srv := web.New(driver, cfg.UI.WebAddr, cfg.UI.LoginAttempts)
		shutdownMgr.OnShutdown("web server", srv.Shutdown)
		// 浏览器之外，终端上仍输出状态变化
		go func() { _ = console.NewPrinter(nil).Run(ctx, driver) }()
		return srv.Run(ctx)
	default:
		return console.NewPrinter(nil).Run(ctx, driver)
	}
}
