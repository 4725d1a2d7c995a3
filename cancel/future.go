package cancel

import "github.com/coreruntime/kernel/kerrors"

// Outcome is what a Cancelable resolves to: either the wrapped work's own
// result, or a cancellation, whichever happens first.
type Outcome[T any] struct {
	Value     T
	Cancelled bool
	Err       error
}

// Work is a unit of cancelable work. It must respond to stop being closed
// by returning promptly; Cancelable does not forcibly abort a running Work,
// it only arranges for the result to be discarded once the handle has
// transitioned.
type Work[T any] func(stop <-chan struct{}) (T, error)

// Cancelable runs work to completion but resolves to a Cancelled Outcome
// if h transitions before work's result would otherwise be observed. The
// composition borrows h rather than owning it, so one handle can cancel
// many futures.
func Cancelable[T any](h *Handle, work Work[T]) <-chan Outcome[T] {
	out := make(chan Outcome[T], 1)
	stop := make(chan struct{})

	settled := make(chan struct{})
	h.OnCancel(func() {
		close(stop)
		select {
		case out <- Outcome[T]{Cancelled: true}:
		default:
		}
	})

	go func() {
		v, err := work(stop)
		select {
		case <-settled:
			return
		default:
		}
		select {
		case out <- Outcome[T]{Value: v, Err: err}:
		default:
		}
	}()

	return out
}

// ErrCancelled is returned by call sites that want a plain error rather
// than an Outcome (e.g. adapting into a function returning (T, error)).
var ErrCancelled = kerrors.New(kerrors.KindCancelled, "operation cancelled")
