package session

import (
	"context"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/statusdash/internal/api"
	"github.com/betbot/statusdash/pkg/persistence"
)

var log = logrus.WithField("module", "session")

// State 登录门控状态
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Authenticator 登录接口（api.Client 实现）
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, error)
}

type record struct {
	UserID string `json:"user_id"`
}

// Gate 登录门控：持有至多一个 user_id。没有登出，user_id 只会被新的成功登录覆盖。
type Gate struct {
	store persistence.Store
	auth  Authenticator

	mu     sync.RWMutex
	userID string
}

// NewGate 创建门控并从 store 读取初始状态；store 为空表示不持久化
func NewGate(store persistence.Store, auth Authenticator) (*Gate, error) {
	g := &Gate{store: store, auth: auth}
	if store == nil {
		return g, nil
	}

	var rec record
	err := store.Load(&rec)
	switch {
	case err == nil:
		g.userID = strings.TrimSpace(rec.UserID)
		if g.userID != "" {
			log.Infof("已恢复登录状态: user_id=%s", g.userID)
		}
	case errors.Is(err, persistence.ErrNotExists):
	default:
		return nil, errors.Wrap(err, "读取 session 失败")
	}
	return g, nil
}

// UserID 当前 user_id，未登录为空
func (g *Gate) UserID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.userID
}

// State 当前门控状态
func (g *Gate) State() State {
	if g.UserID() == "" {
		return Unauthenticated
	}
	return Authenticated
}

// Authenticated 是否已登录
func (g *Gate) Authenticated() bool {
	return g.State() == Authenticated
}

// Login 提交凭证。成功时先持久化再切换到已登录；
// 失败时返回 *api.AuthError，状态和 store 都不变。
func (g *Gate) Login(ctx context.Context, email, password string) (string, error) {
	if g.auth == nil {
		return "", &api.AuthError{Message: "未配置登录接口"}
	}
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", &api.AuthError{Message: "邮箱和密码不能为空"}
	}

	userID, err := g.auth.Login(ctx, email, password)
	if err != nil {
		var authErr *api.AuthError
		if !errors.As(err, &authErr) {
			err = &api.AuthError{Err: err}
		}
		log.Warnf("登录失败: %v", err)
		return "", err
	}

	if g.store != nil {
		if err := g.store.Save(record{UserID: userID}); err != nil {
			// 本次会话仍然可用，只是重启后需要重新登录
			log.Errorf("保存 session 失败: %v", err)
		}
	}

	g.mu.Lock()
	g.userID = userID
	g.mu.Unlock()
	return userID, nil
}
