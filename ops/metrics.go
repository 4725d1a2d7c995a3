package ops

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Event is one of the five dispatch lifecycle events.
type Event string

const (
	EventDispatched     Event = "Dispatched"
	EventCompleted      Event = "Completed"
	EventCompletedAsync Event = "CompletedAsync"
	EventError          Event = "Error"
	EventErrorAsync     Event = "ErrorAsync"
)

var dispatchCounter = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "kernel",
		Subsystem: "ops",
		Name:      "dispatch_total",
		Help:      "Count of op dispatch lifecycle events, labeled by op and event kind.",
	},
	[]string{"op", "event"},
)

func init() {
	prometheus.MustRegister(dispatchCounter)
}

// summary aggregates per-op counts in process, independent of whether a
// Prometheus registry is actually being scraped.
type summary struct {
	mu     sync.Mutex
	counts map[string]map[Event]uint64
}

var sum = &summary{counts: make(map[string]map[Event]uint64)}

func emit(ev Event, op, traceID string) {
	dispatchCounter.WithLabelValues(op, string(ev)).Inc()
	sum.mu.Lock()
	m, ok := sum.counts[op]
	if !ok {
		m = make(map[Event]uint64)
		sum.counts[op] = m
	}
	m[ev]++
	sum.mu.Unlock()
	_ = traceID // reserved for future span correlation; not yet surfaced
}

// Summary returns a snapshot of per-op, per-event dispatch counts.
func Summary() map[string]map[Event]uint64 {
	sum.mu.Lock()
	defer sum.mu.Unlock()
	out := make(map[string]map[Event]uint64, len(sum.counts))
	for op, m := range sum.counts {
		cp := make(map[Event]uint64, len(m))
		for ev, c := range m {
			cp[ev] = c
		}
		out[op] = cp
	}
	return out
}
