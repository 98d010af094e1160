package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// StreamURL 把 http(s) 地址换成 ws(s)；userID 非空时为 {stream_path}/{userID}
func (c *Client) StreamURL(userID string) string {
	base := c.opts.BaseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	path := c.opts.StreamPath
	if userID != "" {
		path = strings.TrimSuffix(path, "/") + "/" + url.PathEscape(userID)
	}
	return base + path
}

// StreamStatus 订阅后端推送，每收到一帧快照回调一次 handler。
// 阻塞直到 ctx 取消或连接断开；断开返回 *NetworkError，由调用方决定是否重连。
func (c *Client) StreamStatus(ctx context.Context, userID string, handler func(*StatusSnapshot)) error {
	wsURL := c.StreamURL(userID)

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	if c.opts.Proxy != "" {
		if pu, err := url.Parse(c.opts.Proxy); err == nil {
			dialer.Proxy = http.ProxyURL(pu)
		}
	}

	headers := http.Header{}
	headers.Set("X-Request-Id", uuid.NewString())
	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		ne := &NetworkError{Op: "stream_status", URL: wsURL, Err: err}
		if resp != nil {
			ne.StatusCode = resp.StatusCode
		}
		return ne
	}
	defer conn.Close()

	log.Infof("状态推送已连接: %s", wsURL)

	// ctx 取消时关闭连接，解除 ReadMessage 阻塞
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &NetworkError{Op: "stream_status", URL: wsURL, Err: err}
		}
		snap, err := decodeStreamFrame(message)
		if err != nil {
			log.Warnf("丢弃无法解析的推送帧: %v", err)
			continue
		}
		if snap == nil {
			continue
		}
		handler(snap)
	}
}

// decodeStreamFrame 解析推送帧。非 status_update 的包装消息返回 nil。
func decodeStreamFrame(message []byte) (*StatusSnapshot, error) {
	var env streamEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		return nil, errors.Wrap(err, "解析推送帧失败")
	}
	payload := message
	if env.Type != "" {
		if env.Type != "status_update" || len(env.Data) == 0 {
			return nil, nil
		}
		payload = env.Data
	}
	snap, err := decodeSnapshot(payload)
	if err != nil {
		return nil, errors.Wrap(err, "解析状态快照失败")
	}
	return snap, nil
}
