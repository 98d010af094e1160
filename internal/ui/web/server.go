package web

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/statusdash/internal/api"
	"github.com/betbot/statusdash/internal/dashboard"
	"github.com/betbot/statusdash/pkg/ratelimit"
)

var log = logrus.WithField("module", "ui.web")

const (
	loginTimeout = 30 * time.Second
	// 每个客户端 IP 每分钟最多尝试登录的次数
	defaultLoginAttempts = 5
)

// Source 视图来源和登录入口（poller.Driver 实现）
type Source interface {
	View() dashboard.ViewModel
	Login(ctx context.Context, email, password string) (string, error)
	DismissAuthError(ctx context.Context)
}

// Server 浏览器展示层：页面每次轮询 /api/view
type Server struct {
	src    Source
	addr   string
	srv    *http.Server
	logins *ratelimit.Keyed
}

// New 创建 Web 展示层；loginAttempts 为每个 IP 每分钟允许的登录次数，<=0 使用默认值
func New(src Source, addr string, loginAttempts int) *Server {
	if addr == "" {
		addr = ":8090"
	}
	if loginAttempts <= 0 {
		loginAttempts = defaultLoginAttempts
	}
	return &Server{
		src:    src,
		addr:   addr,
		logins: ratelimit.NewKeyed(loginAttempts, time.Minute),
	}
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	apiGroup := r.Group("/api")
	apiGroup.GET("/view", s.handleView)
	apiGroup.POST("/login", s.handleLogin)

	// UI
	r.GET("/", s.handleUI)

	return r
}

func (s *Server) handleView(c *gin.Context) {
	c.JSON(http.StatusOK, s.src.View())
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if !s.logins.Allow(c.ClientIP()) {
		c.JSON(http.StatusTooManyRequests, gin.H{"status": "error", "message": "too many login attempts"})
		return
	}

	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid json"})
		return
	}
	if strings.TrimSpace(body.Email) == "" || body.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "email and password are required"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), loginTimeout)
	defer cancel()
	// 新的尝试开始前清掉上一次的错误，页面刷新不会把它再显示出来
	s.src.DismissAuthError(ctx)
	userID, err := s.src.Login(ctx, body.Email, body.Password)
	if err != nil {
		var authErr *api.AuthError
		if errors.As(err, &authErr) {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": authErr.Error()})
			return
		}
		log.Errorf("登录异常: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error", "message": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "user_id": userID})
}

func (s *Server) handleUI(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(uiHTML))
}

// Run 监听 addr，ctx 取消后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Web 仪表盘已启动: http://%s", displayAddr(s.addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "web listen")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown 关闭 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
