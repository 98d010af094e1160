package api

import (
	"fmt"
)

// NetworkError 请求失败、非 2xx 或响应无法解析
type NetworkError struct {
	Op         string // fetch_status | stream_status
	URL        string
	StatusCode int // 0 表示未拿到响应
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: http %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError 登录被拒绝或登录请求失败
type AuthError struct {
	Status  string // 后端返回的 status（传输失败时为空）
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("登录失败: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("登录失败: %s", e.Message)
	case e.Status != "":
		return fmt.Sprintf("登录失败: status=%s", e.Status)
	default:
		return "登录失败"
	}
}

func (e *AuthError) Unwrap() error { return e.Err }
