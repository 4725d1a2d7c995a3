package ops

import (
	"sync"

	"github.com/coreruntime/kernel/cmn/cos"
	"github.com/coreruntime/kernel/kerrors"
)

// Registry is the static op table, constructed once at runtime construction
// and never mutated afterward. Ops are registered at startup and never
// removed.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Decl
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Decl)}
}

func (r *Registry) Register(d *Decl) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[d.Name] = d
}

func (r *Registry) Lookup(name string) (*Decl, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[name]
	return d, ok
}

// DispatchSync runs a sync op to completion, trying the fast path first and
// falling back to the slow path when the fast path is ineligible or
// declines; an error the fast path stashed is returned as the op's error
// (the dispatch contract: "Sync ops: run to completion before
// returning to JS; errors surface as thrown JS exceptions").
func (r *Registry) DispatchSync(name string, rawArgs []byte) ([]byte, error) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, kerrors.New(kerrors.KindNotSupported, "unknown op %q", name)
	}
	if d.Async {
		return nil, kerrors.New(kerrors.KindNotSupported, "op %q is async; use DispatchAsync", name)
	}
	traceID := cos.GenTraceID()
	emit(EventDispatched, name, traceID)
	ctx := &OpContext{}
	if d.FastEligible() {
		if out, ok := d.Fast(ctx, rawArgs); ok && !ctx.Fallback {
			emit(EventCompleted, name, traceID)
			return out, nil
		}
		if ctx.stashedErr != nil {
			emit(EventError, name, traceID)
			return nil, ctx.stashedErr
		}
	}
	out, err := d.Slow(ctx, rawArgs)
	if err != nil {
		emit(EventError, name, traceID)
		return nil, err
	}
	emit(EventCompleted, name, traceID)
	return out, nil
}

// AsyncCompletion is how an async op's eventual result reaches the caller;
// evloop.Spawner implements the scheduling half (submitting the task that
// eventually calls this).
type AsyncCompletion func(promiseID uint64, result []byte, err error)

// DispatchAsync returns immediately after validating the op exists and
// handing the work to submit; submit is expected to arrange for complete
// to be invoked once, later, on the event-loop thread with the caller's
// promiseID, so the promise the JS side holds can be settled.
func (r *Registry) DispatchAsync(name string, promiseID uint64, rawArgs []byte, submit func(run func() ([]byte, error)), complete AsyncCompletion) error {
	d, ok := r.Lookup(name)
	if !ok {
		return kerrors.New(kerrors.KindNotSupported, "unknown op %q", name)
	}
	if !d.Async {
		return kerrors.New(kerrors.KindNotSupported, "op %q is sync; use DispatchSync", name)
	}
	traceID := cos.GenTraceID()
	emit(EventDispatched, name, traceID)
	ctx := &OpContext{PromiseID: promiseID}
	submit(func() ([]byte, error) {
		out, err := d.Slow(ctx, rawArgs)
		if err != nil {
			emit(EventErrorAsync, name, traceID)
		} else {
			emit(EventCompletedAsync, name, traceID)
		}
		complete(promiseID, out, err)
		return out, err
	})
	return nil
}
