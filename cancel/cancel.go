// Package cancel implements hierarchical cancellation: a monotonic,
// shareable flag with a waker list, composed with futures by borrow
// rather than ownership, with parent-to-child propagation only.
package cancel

import "sync"

// Handle is a CancelHandle: cancel() is idempotent and the
// transition pending->cancelled happens at most once.
type Handle struct {
	mu        sync.Mutex
	cancelled bool
	wakers    []func()
	children  []*Handle
}

func New() *Handle {
	return &Handle{}
}

// Cancel transitions the handle to cancelled exactly once, firing every
// registered waker and propagating to every linked child - but never to
// the parent: cancelling a parent cancels its children, never vice versa.
func (h *Handle) Cancel() {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		return
	}
	h.cancelled = true
	wakers := h.wakers
	h.wakers = nil
	children := h.children
	h.mu.Unlock()

	for _, w := range wakers {
		w()
	}
	for _, c := range children {
		c.Cancel()
	}
}

func (h *Handle) Cancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// OnCancel registers a waker to run when the handle transitions (or runs it
// immediately if the handle is already cancelled).
func (h *Handle) OnCancel(f func()) {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		f()
		return
	}
	h.wakers = append(h.wakers, f)
	h.mu.Unlock()
}

// Link makes child cancel whenever h cancels (or immediately, if h is
// already cancelled). A child handle can be cancelled independently
// without affecting h - cancellation only flows parent-to-child.
func (h *Handle) Link(child *Handle) {
	h.mu.Lock()
	if h.cancelled {
		h.mu.Unlock()
		child.Cancel()
		return
	}
	h.children = append(h.children, child)
	h.mu.Unlock()
}

// Clone returns a handle aliasing the same cancellation signal. Clones
// only need to observe the same monotonic transition, so Clone returns h
// itself rather than a deep copy; it exists to make call sites that hand
// one handle to many futures read naturally.
func (h *Handle) Clone() *Handle { return h }
