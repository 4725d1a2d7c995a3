package evloop

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pendingOpsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "kernel", Subsystem: "evloop", Name: "pending_ops",
		Help: "Number of async ops the loop currently considers in flight.",
	})
	queueDepthGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "kernel", Subsystem: "evloop", Name: "queue_depth",
		Help: "Depth of the same-thread and cross-thread task queues.",
	}, []string{"queue"})
)

func init() {
	prometheus.MustRegister(pendingOpsGauge, queueDepthGauge)
}

// KeepAliveSource reports whether some external subsystem (the resource
// table, an outstanding timer) wants Poll to keep cycling even with no
// queued work.
type KeepAliveSource interface {
	AnyKeepsAlive() bool
}

// Loop is the runtime's event loop. There is exactly one owner
// goroutine per Loop; Spawn must only be called from that goroutine,
// SpawnCrossThread may be called from any goroutine.
type Loop struct {
	ownerTID int64 // unused: Run neither records nor checks the owning thread

	sameThread []Task

	crossMu    sync.Mutex
	crossQueue []Task
	hasTasks   atomic.Bool
	wake       chan struct{}

	pendingOps int64
	timers     []*timer

	microtasks func() // pluggable V8-microtask-drain stand-in
	keepAlive  []KeepAliveSource
}

type timer struct {
	deadline time.Time
	fire     Task
	fired    bool
}

func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// SetMicrotaskPump installs the callback Poll runs after draining tasks,
// the slot the engine's microtask drain plugs into.
func (l *Loop) SetMicrotaskPump(f func()) { l.microtasks = f }

func (l *Loop) AddKeepAliveSource(k KeepAliveSource) { l.keepAlive = append(l.keepAlive, k) }

// Spawn enqueues a same-thread (!Send) task; zero-overhead FIFO append.
// Must only be called from the owner goroutine once Run has started.
func (l *Loop) Spawn(t Task) {
	l.sameThread = append(l.sameThread, t)
	queueDepthGauge.WithLabelValues("same-thread").Set(float64(len(l.sameThread)))
}

// SpawnCrossThread is the producer side of the cross-thread
// submission: acquire the mutex, push, set has_tasks with release
// ordering (the mutex unlock provides that), then wake the loop.
func (l *Loop) SpawnCrossThread(t Task) {
	l.crossMu.Lock()
	l.crossQueue = append(l.crossQueue, t)
	queueDepthGauge.WithLabelValues("cross-thread").Set(float64(len(l.crossQueue)))
	l.crossMu.Unlock()
	l.hasTasks.Store(true)
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// BeginOp/EndOp bracket an in-flight async op for pending-op accounting
//.
func (l *Loop) BeginOp() {
	n := atomic.AddInt64(&l.pendingOps, 1)
	pendingOpsGauge.Set(float64(n))
}

func (l *Loop) EndOp() {
	n := atomic.AddInt64(&l.pendingOps, -1)
	pendingOpsGauge.Set(float64(n))
}

// AddTimer schedules a single-shot task; timers are never periodic, so
// periodic behavior is the caller's responsibility.
func (l *Loop) AddTimer(d time.Duration, fire Task) {
	l.timers = append(l.timers, &timer{deadline: time.Now().Add(d), fire: fire})
}

// Poll runs exactly one cycle: drain same-thread tasks, drain cross-thread
// tasks (treated as !Send once swapped onto the owner thread), fire due
// timers, run the microtask pump, and report whether it did any work.
func (l *Loop) Poll() (didWork bool) {
	if len(l.sameThread) > 0 {
		batch := l.sameThread
		l.sameThread = nil
		for _, t := range batch {
			t()
			didWork = true
		}
	}

	if l.hasTasks.Load() {
		l.crossMu.Lock()
		batch := l.crossQueue
		l.crossQueue = nil
		l.hasTasks.Store(false)
		l.crossMu.Unlock()
		// A lost race (flag cleared, nothing queued) is tolerated: batch is
		// simply empty and the next SpawnCrossThread re-sets the flag.
		for _, t := range batch {
			t() // now !Send: runs exclusively on this, the owner, goroutine
			didWork = true
		}
	}

	now := time.Now()
	remaining := l.timers[:0]
	for _, tm := range l.timers {
		if !tm.fired && !now.Before(tm.deadline) {
			tm.fired = true
			tm.fire()
			didWork = true
			continue
		}
		remaining = append(remaining, tm)
	}
	l.timers = remaining

	if l.microtasks != nil {
		l.microtasks()
	}
	return didWork
}

// Idle reports the exit condition: no queued tasks, no pending
// async ops, no timers, and no resource declaring keep-alive.
func (l *Loop) Idle() bool {
	if len(l.sameThread) > 0 || l.hasTasks.Load() || len(l.timers) > 0 {
		return false
	}
	if atomic.LoadInt64(&l.pendingOps) > 0 {
		return false
	}
	for _, k := range l.keepAlive {
		if k.AnyKeepsAlive() {
			return false
		}
	}
	return true
}

// Run polls until Idle, blocking on the wake channel between cycles that
// did no work so the owner goroutine does not busy-spin.
func (l *Loop) Run() {
	for {
		didWork := l.Poll()
		if l.Idle() {
			return
		}
		if !didWork {
			select {
			case <-l.wake:
			case <-time.After(time.Millisecond):
			}
		}
	}
}
