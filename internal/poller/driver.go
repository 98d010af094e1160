package poller

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/statusdash/internal/api"
	"github.com/betbot/statusdash/internal/dashboard"
	"github.com/betbot/statusdash/internal/metrics"
	"github.com/betbot/statusdash/pkg/config"
	"github.com/betbot/statusdash/pkg/sigchan"
	"github.com/betbot/statusdash/pkg/syncgroup"
)

var log = logrus.WithField("module", "poller")

// Source 状态来源（api.Client 实现）
type Source interface {
	FetchStatus(ctx context.Context, userID string) (*api.StatusSnapshot, error)
	StreamStatus(ctx context.Context, userID string, handler func(*api.StatusSnapshot)) error
}

// Gate 登录门控（session.Gate 实现）
type Gate interface {
	UserID() string
	Login(ctx context.Context, email, password string) (string, error)
}

// Options 驱动配置
type Options struct {
	Interval     time.Duration
	Mode         string // poll | stream
	DiscardStale bool
	NoneSentinel string
}

// OptionsFromConfig 从全局配置生成驱动配置
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Interval:     cfg.Poll.Interval.Duration,
		Mode:         cfg.Poll.Mode,
		DiscardStale: cfg.Poll.DiscardStale,
		NoneSentinel: cfg.UI.NoneSentinel,
	}
}

// Stats 运行统计
type Stats struct {
	Started uint64 // 发起的请求数
	Applied uint64 // 已应用的快照数
	Stale   uint64 // 因过期被丢弃的响应数
	Failed  uint64 // 失败被丢弃的 tick 数
	Skipped uint64 // 未登录被跳过的 tick 数
}

type result struct {
	seq  uint64
	snap *api.StatusSnapshot
	err  error
}

// Driver 轮询驱动：定时拉取快照、串行应用到渲染状态，并把视图副本推给订阅者。
// dashboard.State 只在 Run 的循环 goroutine 里修改。
type Driver struct {
	src  Source
	gate Gate // nil 表示未启用登录门控
	opts Options

	state   *dashboard.State
	trigger *sigchan.Chan
	results chan result
	events  chan func(*dashboard.State)
	fetches *syncgroup.Group

	seq         atomic.Uint64
	lastApplied uint64 // 仅循环 goroutine 访问

	started, applied, stale, failed, skipped atomic.Uint64

	mu      sync.RWMutex
	view    dashboard.ViewModel
	subs    []chan dashboard.ViewModel
	stopped bool
}

// New 创建驱动；gate 为 nil 时始终请求 /status
func New(src Source, gate Gate, opts Options) *Driver {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = config.PollModePoll
	}
	d := &Driver{
		src:     src,
		gate:    gate,
		opts:    opts,
		state:   dashboard.NewState(opts.NoneSentinel),
		trigger: sigchan.New(1),
		results: make(chan result, 16),
		events:  make(chan func(*dashboard.State), 16),
		fetches: syncgroup.New(),
	}
	d.state.SetSession(d.sessionView())
	d.view = d.state.View()
	return d
}

func (d *Driver) sessionView() dashboard.SessionView {
	if d.gate == nil {
		return dashboard.SessionView{}
	}
	uid := d.gate.UserID()
	return dashboard.SessionView{Enabled: true, Authenticated: uid != "", UserID: uid}
}

// Run 立即轮询一次，之后按 Interval 轮询，直到 ctx 取消。返回前关闭所有订阅 channel。
func (d *Driver) Run(ctx context.Context) error {
	log.Infof("轮询驱动启动: mode=%s interval=%s discard_stale=%v", d.opts.Mode, d.opts.Interval, d.opts.DiscardStale)
	defer d.shutdown()

	d.publish()

	var tickC <-chan time.Time
	if d.opts.Mode == config.PollModeStream {
		d.fetches.Go(ctx, d.streamLoop)
	} else {
		ticker := time.NewTicker(d.opts.Interval)
		defer ticker.Stop()
		tickC = ticker.C
		d.poll(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("轮询驱动停止")
			return nil
		case <-tickC:
			d.poll(ctx)
		case <-d.trigger.C():
			d.poll(ctx)
		case r := <-d.results:
			d.apply(r)
		case fn := <-d.events:
			fn(d.state)
			d.publish()
		}
	}
}

func (d *Driver) shutdown() {
	d.fetches.Close()
	d.fetches.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for _, ch := range d.subs {
		close(ch)
	}
	d.subs = nil
}

// userID 返回本次请求使用的 user_id；ok=false 表示门控未通过，本 tick 跳过
func (d *Driver) userID() (string, bool) {
	if d.gate == nil {
		return "", true
	}
	uid := d.gate.UserID()
	return uid, uid != ""
}

// poll 发起一次请求，不等待结果；允许多个请求重叠
func (d *Driver) poll(ctx context.Context) {
	uid, ok := d.userID()
	if !ok {
		d.skipped.Add(1)
		metrics.TicksSkipped.Add(1)
		log.Debug("未登录，跳过本次轮询")
		return
	}

	seq := d.seq.Add(1)
	d.started.Add(1)
	metrics.PollsStarted.Add(1)
	d.fetches.Go(ctx, func(ctx context.Context) {
		snap, err := d.src.FetchStatus(ctx, uid)
		d.deliver(ctx, result{seq: seq, snap: snap, err: err})
	})
}

func (d *Driver) deliver(ctx context.Context, r result) {
	select {
	case d.results <- r:
	case <-ctx.Done():
	}
}

func (d *Driver) streamLoop(ctx context.Context) {
	for {
		uid, ok := d.userID()
		if ok {
			err := d.src.StreamStatus(ctx, uid, func(snap *api.StatusSnapshot) {
				d.started.Add(1)
				d.deliver(ctx, result{seq: d.seq.Add(1), snap: snap})
			})
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				d.failed.Add(1)
				metrics.StreamReconnects.Add(1)
				log.Warnf("推送连接断开，%s 后重连: %v", d.opts.Interval, err)
			}
		} else {
			d.skipped.Add(1)
			metrics.TicksSkipped.Add(1)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.opts.Interval):
		}
	}
}

func (d *Driver) apply(r result) {
	if r.err != nil {
		d.failed.Add(1)
		metrics.TicksFailed.Add(1)
		var netErr *api.NetworkError
		if errors.As(r.err, &netErr) {
			log.Warnf("tick #%d 拉取失败，已丢弃: %v", r.seq, netErr)
		} else if !errors.Is(r.err, context.Canceled) {
			log.Warnf("tick #%d 失败，已丢弃: %v", r.seq, r.err)
		}
		return
	}
	if r.snap == nil {
		return
	}
	if d.opts.DiscardStale && r.seq <= d.lastApplied {
		d.stale.Add(1)
		metrics.StaleDropped.Add(1)
		log.Debugf("tick #%d 晚于 #%d 返回，丢弃", r.seq, d.lastApplied)
		return
	}

	d.state.Apply(r.snap)
	d.lastApplied = r.seq
	d.state.MarkApplied(r.seq, time.Now())
	d.applied.Add(1)
	metrics.SnapshotsApplied.Add(1)
	d.publish()
}

// publish 保存最新视图并推给订阅者；订阅者只保留最新一份
func (d *Driver) publish() {
	vm := d.state.View()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.view = vm
	for _, ch := range d.subs {
		offerLatest(ch, d.state.View())
	}
}

func offerLatest(ch chan dashboard.ViewModel, vm dashboard.ViewModel) {
	for {
		select {
		case ch <- vm:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Subscribe 订阅视图更新。channel 立即带有当前视图，Run 结束后关闭。
func (d *Driver) Subscribe() <-chan dashboard.ViewModel {
	ch := make(chan dashboard.ViewModel, 1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		close(ch)
		return ch
	}
	ch <- d.view
	d.subs = append(d.subs, ch)
	return ch
}

// View 当前视图副本
func (d *Driver) View() dashboard.ViewModel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyView(d.view)
}

func copyView(vm dashboard.ViewModel) dashboard.ViewModel {
	vm.Chart = append([]float64(nil), vm.Chart...)
	vm.Logs = append([]dashboard.LogEntry(nil), vm.Logs...)
	vm.Trades = append([]dashboard.TradeRow(nil), vm.Trades...)
	return vm
}

// Stats 运行统计快照
func (d *Driver) Stats() Stats {
	return Stats{
		Started: d.started.Load(),
		Applied: d.applied.Load(),
		Stale:   d.stale.Load(),
		Failed:  d.failed.Load(),
		Skipped: d.skipped.Load(),
	}
}

// Trigger 请求立即轮询一次（非阻塞，多次调用会合并）
func (d *Driver) Trigger() {
	d.trigger.Emit()
}

// Login 通过门控登录。成功后立即触发一次轮询；失败时错误写入视图供展示层弹窗。
func (d *Driver) Login(ctx context.Context, email, password string) (string, error) {
	if d.gate == nil {
		return "", &api.AuthError{Message: "未启用登录"}
	}

	metrics.LoginAttempts.Add(1)
	userID, err := d.gate.Login(ctx, email, password)
	sv := d.sessionView()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	d.post(ctx, func(s *dashboard.State) {
		s.SetSession(sv)
		s.SetAuthError(msg)
	})
	if err != nil {
		metrics.LoginFailures.Add(1)
		return "", err
	}

	d.trigger.Drain()
	d.Trigger()
	return userID, nil
}

// DismissAuthError 清除视图上的登录错误
func (d *Driver) DismissAuthError(ctx context.Context) {
	d.post(ctx, func(s *dashboard.State) { s.SetAuthError("") })
}

func (d *Driver) post(ctx context.Context, fn func(*dashboard.State)) {
	select {
	case d.events <- fn:
	case <-ctx.Done():
	}
}
