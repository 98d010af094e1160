package poller

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/statusdash/internal/api"
	"github.com/betbot/statusdash/internal/metrics"
	"github.com/betbot/statusdash/internal/session"
	"github.com/betbot/statusdash/pkg/config"
)

// scriptedSource 第 n 次 FetchStatus 调用由 script[n] 决定
type scriptedSource struct {
	mu     sync.Mutex
	calls  int
	script []func(ctx context.Context) (*api.StatusSnapshot, error)
}

func (s *scriptedSource) FetchStatus(ctx context.Context, userID string) (*api.StatusSnapshot, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()
	if i < len(s.script) {
		return s.script[i](ctx)
	}
	return nil, &api.NetworkError{Op: "fetch_status", Err: context.Canceled}
}

func (s *scriptedSource) StreamStatus(ctx context.Context, userID string, handler func(*api.StatusSnapshot)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s *scriptedSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func snapWithBalance(b float64) *api.StatusSnapshot {
	return &api.StatusSnapshot{Balance: b, ActiveAsset: "EURUSD", Confidence: b}
}

func runDriver(t *testing.T, d *Driver) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = d.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

// 第一个 tick 慢、第二个 tick 快，两个响应乱序返回
func raceScript(release chan struct{}) *scriptedSource {
	return &scriptedSource{script: []func(ctx context.Context) (*api.StatusSnapshot, error){
		func(ctx context.Context) (*api.StatusSnapshot, error) {
			<-release
			return snapWithBalance(1), nil
		},
		func(ctx context.Context) (*api.StatusSnapshot, error) {
			return snapWithBalance(2), nil
		},
	}}
}

func TestDriver_OutOfOrderDiscardStale(t *testing.T) {
	release := make(chan struct{})
	src := raceScript(release)
	d := New(src, nil, Options{Interval: time.Hour, DiscardStale: true})
	stop := runDriver(t, d)
	defer stop()

	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, 5*time.Millisecond)
	d.Trigger()
	require.Eventually(t, func() bool { return d.View().BalanceText == "$2" }, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return d.Stats().Stale == 1 }, time.Second, 5*time.Millisecond)
	vm := d.View()
	assert.Equal(t, "$2", vm.BalanceText, "过期响应不能覆盖新数据")
	assert.Equal(t, uint64(2), vm.Tick)
}

func TestDriver_OutOfOrderLastWriteWins(t *testing.T) {
	release := make(chan struct{})
	src := raceScript(release)
	d := New(src, nil, Options{Interval: time.Hour, DiscardStale: false})
	stop := runDriver(t, d)
	defer stop()

	require.Eventually(t, func() bool { return src.Calls() == 1 }, time.Second, 5*time.Millisecond)
	d.Trigger()
	require.Eventually(t, func() bool { return d.View().BalanceText == "$2" }, time.Second, 5*time.Millisecond)

	close(release)
	require.Eventually(t, func() bool { return d.View().BalanceText == "$1" }, time.Second, 5*time.Millisecond)
	assert.Equal(t, uint64(1), d.View().Tick)
	assert.Equal(t, uint64(0), d.Stats().Stale)
}

func TestDriver_FailedTickDropped(t *testing.T) {
	src := &scriptedSource{script: []func(ctx context.Context) (*api.StatusSnapshot, error){
		func(ctx context.Context) (*api.StatusSnapshot, error) { return snapWithBalance(5), nil },
		func(ctx context.Context) (*api.StatusSnapshot, error) {
			return nil, &api.NetworkError{Op: "fetch_status", URL: "/status", StatusCode: 500}
		},
	}}
	d := New(src, nil, Options{Interval: time.Hour, DiscardStale: true})
	stop := runDriver(t, d)
	defer stop()

	require.Eventually(t, func() bool { return d.View().BalanceText == "$5" }, time.Second, 5*time.Millisecond)
	d.Trigger()
	require.Eventually(t, func() bool { return d.Stats().Failed == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "$5", d.View().BalanceText)
}

type statusBackend struct {
	srv     *httptest.Server
	mu      sync.Mutex
	hits    map[string]int
	loginOK atomic.Bool
}

func newStatusBackend(t *testing.T) *statusBackend {
	b := &statusBackend{hits: map[string]int{}}
	b.loginOK.Store(true)
	mux := http.NewServeMux()
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.hits[r.URL.Path]++
		b.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{
			"balance": 100, "win_rate": 50, "ops_count": 1,
			"current_phase": "Operando", "active_asset": "EURUSD", "confidence": 80,
		})
	})
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		if !b.loginOK.Load() {
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "error", "message": "credenciales inválidas"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "success", "user_id": "u1"})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *statusBackend) Hits(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[path]
}

func (b *statusBackend) Total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, v := range b.hits {
		n += v
	}
	return n
}

func TestDriver_LoginTriggersExactlyOneFetch(t *testing.T) {
	backend := newStatusBackend(t)
	client := api.NewClient(api.Options{BaseURL: backend.srv.URL, Timeout: time.Second})
	st, _, err := session.OpenStore(config.SessionConfig{Store: config.StoreJSON, Dir: t.TempDir()})
	require.NoError(t, err)
	gate, err := session.NewGate(st, client)
	require.NoError(t, err)

	d := New(client, gate, Options{Interval: time.Hour, DiscardStale: true})
	sub := d.Subscribe()
	stop := runDriver(t, d)
	defer stop()

	// 未登录时 tick 不发请求
	require.Eventually(t, func() bool { return d.Stats().Skipped >= 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, backend.Total())
	assert.False(t, (<-sub).Session.Authenticated)

	id, err := d.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	require.Eventually(t, func() bool { return backend.Hits("/status/u1") == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.View().BalanceText == "$100" }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, backend.Total())

	vm := d.View()
	assert.True(t, vm.Session.Authenticated)
	assert.Equal(t, "u1", vm.Session.UserID)
	assert.Empty(t, vm.AuthError)

	var rec struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, st.Load(&rec))
	assert.Equal(t, "u1", rec.UserID)
}

func TestDriver_LoginErrorLeavesStateUnchanged(t *testing.T) {
	backend := newStatusBackend(t)
	backend.loginOK.Store(false)
	client := api.NewClient(api.Options{BaseURL: backend.srv.URL, Timeout: time.Second})
	st, _, err := session.OpenStore(config.SessionConfig{Store: config.StoreJSON, Dir: t.TempDir()})
	require.NoError(t, err)
	gate, err := session.NewGate(st, client)
	require.NoError(t, err)

	d := New(client, gate, Options{Interval: time.Hour})
	stop := runDriver(t, d)
	defer stop()

	_, err = d.Login(context.Background(), "a@b.c", "wrong")
	var authErr *api.AuthError
	require.ErrorAs(t, err, &authErr)

	require.Eventually(t, func() bool { return d.View().AuthError != "" }, time.Second, 5*time.Millisecond)
	assert.Contains(t, d.View().AuthError, "credenciales inválidas")
	assert.False(t, d.View().Session.Authenticated)
	assert.False(t, gate.Authenticated())
	assert.Equal(t, 0, backend.Total())

	d.DismissAuthError(context.Background())
	require.Eventually(t, func() bool { return d.View().AuthError == "" }, time.Second, 5*time.Millisecond)
}

func TestDriver_SubscribersClosedOnStop(t *testing.T) {
	src := &scriptedSource{}
	d := New(src, nil, Options{Interval: time.Hour})
	sub := d.Subscribe()
	stop := runDriver(t, d)
	<-sub
	stop()

	for range sub {
	}
	_, ok := <-d.Subscribe()
	assert.False(t, ok, "停止后订阅直接关闭")
}

func TestDriver_PollsEveryInterval(t *testing.T) {
	always := func(ctx context.Context) (*api.StatusSnapshot, error) { return snapWithBalance(3), nil }
	src := &scriptedSource{script: []func(ctx context.Context) (*api.StatusSnapshot, error){always, always, always, always, always, always}}
	d := New(src, nil, Options{Interval: 20 * time.Millisecond, DiscardStale: true})
	stop := runDriver(t, d)
	defer stop()

	// 没有 Trigger，只靠 ticker 反复拉取
	require.Eventually(t, func() bool { return src.Calls() > 2 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return d.Stats().Applied > 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, "$3", d.View().BalanceText)
}

// fakeGate 登录即成为 u1
type fakeGate struct {
	mu     sync.Mutex
	userID string
}

func (g *fakeGate) UserID() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.userID
}

func (g *fakeGate) Login(ctx context.Context, email, password string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.userID = "u1"
	return g.userID, nil
}

// streamingSource 第一次推送连接立即断开，之后推送一帧并保持连接
type streamingSource struct {
	mu      sync.Mutex
	userIDs []string
}

func (s *streamingSource) FetchStatus(ctx context.Context, userID string) (*api.StatusSnapshot, error) {
	return nil, nil
}

func (s *streamingSource) StreamStatus(ctx context.Context, userID string, handler func(*api.StatusSnapshot)) error {
	s.mu.Lock()
	s.userIDs = append(s.userIDs, userID)
	n := len(s.userIDs)
	s.mu.Unlock()
	if n == 1 {
		return &api.NetworkError{Op: "stream_status", Err: io.ErrUnexpectedEOF}
	}
	handler(snapWithBalance(7))
	<-ctx.Done()
	return ctx.Err()
}

func (s *streamingSource) UserIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.userIDs...)
}

func TestDriver_StreamWaitsForLoginAndReconnects(t *testing.T) {
	src := &streamingSource{}
	gate := &fakeGate{}
	d := New(src, gate, Options{Mode: config.PollModeStream, Interval: 20 * time.Millisecond, DiscardStale: true})
	reconnects := metrics.StreamReconnects.Value()
	stop := runDriver(t, d)
	defer stop()

	// 未登录时不建立推送连接
	require.Eventually(t, func() bool { return d.Stats().Skipped >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, src.UserIDs())

	_, err := d.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return d.View().BalanceText == "$7" }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"u1", "u1"}, src.UserIDs(), "断开后按间隔重连")
	assert.Equal(t, uint64(1), d.Stats().Failed)
	assert.Equal(t, reconnects+1, metrics.StreamReconnects.Value())
	assert.True(t, d.View().Session.Authenticated)
}
