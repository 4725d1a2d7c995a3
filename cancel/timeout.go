package cancel

import (
	"time"

	"github.com/coreruntime/kernel/evloop"
)

// Timeout returns a child handle of parent that cancels itself once either
// parent cancels or d elapses, whichever comes first. Timeout is a
// cancellation driven by a single-shot timer task; periodic behavior is
// the caller's responsibility. The timer task is scheduled on l, so it
// fires on l's owner goroutine during Poll/Run like any other task.
func Timeout(l *evloop.Loop, parent *Handle, d time.Duration) *Handle {
	h := New()
	if parent != nil {
		parent.Link(h)
	}
	l.AddTimer(d, func() { h.Cancel() })
	return h
}
