package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "api")

// Options 客户端配置
type Options struct {
	BaseURL    string
	StatusPath string // 默认 /status
	LoginPath  string // 默认 /api/login
	StreamPath string // 默认 /ws
	Timeout    time.Duration
	Proxy      string
}

// Client 状态后端客户端
type Client struct {
	client *resty.Client
	opts   Options
}

func NewClient(opts Options) *Client {
	opts.BaseURL = strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	if opts.StatusPath == "" {
		opts.StatusPath = "/status"
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/api/login"
	}
	if opts.StreamPath == "" {
		opts.StreamPath = "/ws"
	}

	// 轮询失败直接丢弃本次 tick，不做重试
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetRetryCount(0)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}
	return &Client{client: client, opts: opts}
}

// BaseURL 后端地址
func (c *Client) BaseURL() string {
	return c.opts.BaseURL
}

// 仅设置本次请求的默认 Header
func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("X-Request-Id", uuid.NewString())
	return r
}

// StatusPath 返回状态接口路径；userID 非空时为 /status/{userID}
func (c *Client) StatusPath(userID string) string {
	if userID == "" {
		return c.opts.StatusPath
	}
	return strings.TrimSuffix(c.opts.StatusPath, "/") + "/" + url.PathEscape(userID)
}

// FetchStatus 拉取一次状态快照
func (c *Client) FetchStatus(ctx context.Context, userID string) (*StatusSnapshot, error) {
	path := c.StatusPath(userID)
	resp, err := c.newRequest(ctx).Get(path)
	if err != nil {
		return nil, &NetworkError{Op: "fetch_status", URL: path, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &NetworkError{
			Op:         "fetch_status",
			URL:        path,
			StatusCode: resp.StatusCode(),
			Err:        errors.Errorf("http non-2xx: %s", truncate(resp.String(), 200)),
		}
	}

	snap, err := decodeSnapshot(resp.Body())
	if err != nil {
		return nil, &NetworkError{
			Op:         "fetch_status",
			URL:        path,
			StatusCode: resp.StatusCode(),
			Err:        errors.Wrap(err, "解析状态 JSON 失败"),
		}
	}
	return snap, nil
}

// Login 提交登录，成功返回 user_id
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(LoginRequest{Email: email, Password: password}).
		Post(c.opts.LoginPath)
	if err != nil {
		return "", &AuthError{Err: err}
	}

	var out LoginResponse
	if len(resp.Body()) > 0 {
		if jerr := json.Unmarshal(resp.Body(), &out); jerr != nil && resp.IsSuccess() {
			return "", &AuthError{Err: errors.Wrap(jerr, "解析登录响应失败")}
		}
	}
	if !resp.IsSuccess() {
		msg := out.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode())
		}
		return "", &AuthError{Status: out.Status, Message: msg}
	}
	if out.Status != "success" {
		return "", &AuthError{Status: out.Status, Message: out.Message}
	}
	userID := strings.TrimSpace(string(out.UserID))
	if userID == "" {
		return "", &AuthError{Status: out.Status, Message: "响应缺少 user_id"}
	}

	log.Infof("登录成功: user_id=%s", userID)
	return userID, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
