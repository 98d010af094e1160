package metrics

import "expvar"

// 轮询与登录计数，通过 /debug/vars 暴露
var (
	PollsStarted     = expvar.NewInt("polls_started")
	SnapshotsApplied = expvar.NewInt("snapshots_applied")
	StaleDropped     = expvar.NewInt("stale_dropped")
	TicksFailed      = expvar.NewInt("ticks_failed")
	TicksSkipped     = expvar.NewInt("ticks_skipped")
	LoginAttempts    = expvar.NewInt("login_attempts")
	LoginFailures    = expvar.NewInt("login_failures")
	StreamReconnects = expvar.NewInt("stream_reconnects")
)
