// Package arena implements a slab-allocated, reference-counted container
// for short-lived native wrappers ops construct around engine-boundary
// values: O(1) amortized allocation from fixed-layout slabs, explicit
// two-phase reserve/complete, and lazy arena teardown while handles are
// still live (slabs are not torn down the instant the last consumer
// leaves; reclamation is driven by a live-count).
package arena

import (
	"sync"
	"sync/atomic"
)

const slabSize = 256

// node is the fixed-layout slab entry: a signature for use-after-free
// detection, a back-reference to the owning arena (so a handle can return
// its slot without consulting external state), and the payload itself.
type node[T any] struct {
	signature uint64
	back      *Arena[T]
	payload   T
	refcount  int32
	reserved  bool
}

// Arena is a slab allocator for values of type T. It is safe for concurrent
// use; callers typically own one Arena per op category.
type Arena[T any] struct {
	mu       sync.Mutex
	slabs    [][]*node[T]
	freelist []*node[T]
	liveCnt  int64
	alive    atomic.Bool
	epoch    uint64
}

func New[T any]() *Arena[T] {
	a := &Arena[T]{}
	a.alive.Store(true)
	return a
}

// OwnerHandle is a shared-owner handle into the arena. Cloning bumps the
// refcount; Release drops it and, on reaching zero, frees the slot back to
// the arena's freelist (or, if the arena itself is no longer alive,
// deallocates it outright, so a dropped arena reclaims lazily as its last
// handles disappear).
type OwnerHandle[T any] struct {
	n   *node[T]
	sig uint64
}

// WeakHandle breaks reference cycles: it does not keep the slot alive and
// must be Upgraded to access the payload, failing once the slot is freed.
type WeakHandle[T any] struct {
	n   *node[T]
	sig uint64
}

// Reservation is the in-progress half of a two-phase allocation: the slot
// exists but has no valid payload until Complete or Forget is called
// exactly once.
type Reservation[T any] struct {
	n   *node[T]
	a   *Arena[T]
	sig uint64
	one sync.Once
}

// Allocate is the one-phase convenience path: O(1) amortized, may grow the
// arena by one slab of slabSize nodes.
func (a *Arena[T]) Allocate(payload T) OwnerHandle[T] {
	r := a.Reserve()
	return r.Complete(payload)
}

// Reserve obtains a slot without writing a payload yet. The caller MUST
// call exactly one of Complete or Forget on the returned Reservation.
func (a *Arena[T]) Reserve() Reservation[T] {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := a.takeFreeLocked()
	a.liveCnt++
	n.reserved = true
	n.refcount = 0
	a.epoch++
	n.signature = a.epoch
	return Reservation[T]{n: n, a: a, sig: n.signature}
}

func (a *Arena[T]) takeFreeLocked() *node[T] {
	if l := len(a.freelist); l > 0 {
		n := a.freelist[l-1]
		a.freelist = a.freelist[:l-1]
		return n
	}
	slab := make([]*node[T], slabSize)
	for i := range slab {
		slab[i] = &node[T]{back: a}
	}
	a.slabs = append(a.slabs, slab)
	for _, n := range slab[1:] {
		a.freelist = append(a.freelist, n)
	}
	return slab[0]
}

// Complete finishes a reservation, writing payload and producing the first
// OwnerHandle for the slot (refcount starts at 1).
func (r *Reservation[T]) Complete(payload T) OwnerHandle[T] {
	var h OwnerHandle[T]
	r.one.Do(func() {
		r.n.payload = payload
		r.n.reserved = false
		r.n.refcount = 1
		h = OwnerHandle[T]{n: r.n, sig: r.sig}
	})
	return h
}

// Forget abandons the reservation, returning the slot to the freelist
// without ever having been observably allocated.
func (r *Reservation[T]) Forget() {
	r.one.Do(func() {
		r.a.mu.Lock()
		r.n.reserved = false
		r.a.liveCnt--
		r.a.freelist = append(r.a.freelist, r.n)
		r.a.mu.Unlock()
	})
}

// Clone bumps the refcount and returns a new handle aliasing the same slot.
func (h OwnerHandle[T]) Clone() OwnerHandle[T] {
	atomic.AddInt32(&h.n.refcount, 1)
	return OwnerHandle[T]{n: h.n, sig: h.sig}
}

// Weak derives a non-owning handle that must be Upgraded before use.
func (h OwnerHandle[T]) Weak() WeakHandle[T] {
	return WeakHandle[T]{n: h.n, sig: h.sig}
}

// Get returns the payload. Panics if the handle has already been Released
// by every owner (a programming error - equivalent to use-after-free).
func (h OwnerHandle[T]) Get() *T {
	if h.n.signature != h.sig {
		panic("arena: use of handle after generation mismatch (stale handle)")
	}
	return &h.n.payload
}

// Release drops one reference. When the last reference drops, the slot
// returns to the arena's freelist, or - if the arena itself was dropped
// while handles were still outstanding - is discarded for good.
func (h OwnerHandle[T]) Release() {
	if atomic.AddInt32(&h.n.refcount, -1) > 0 {
		return
	}
	a := h.n.back
	a.mu.Lock()
	defer a.mu.Unlock()
	a.epoch++
	h.n.signature = a.epoch // invalidate all outstanding weak/owner handles to this slot
	a.liveCnt--
	if a.alive.Load() {
		a.freelist = append(a.freelist, h.n)
	}
	// else: arena was dropped with live handles outstanding; this was the
	// last one, so the slot is simply abandoned (GC reclaims the node).
}

// Upgrade returns an OwnerHandle if the slot is still alive, or ok=false if
// every owner already released it.
func (w WeakHandle[T]) Upgrade() (h OwnerHandle[T], ok bool) {
	if w.n.signature != w.sig {
		return OwnerHandle[T]{}, false
	}
	for {
		cur := atomic.LoadInt32(&w.n.refcount)
		if cur <= 0 {
			return OwnerHandle[T]{}, false
		}
		if atomic.CompareAndSwapInt32(&w.n.refcount, cur, cur+1) {
			return OwnerHandle[T]{n: w.n, sig: w.sig}, true
		}
	}
}

// Drop marks the arena itself as no longer alive. Dropping with live
// handles is legal: slabs already allocated to them are not reclaimed
// until those handles Release.
func (a *Arena[T]) Drop() {
	a.alive.Store(false)
}

// LiveCount reports the number of slots currently checked out, used by
// memory-pressure housekeeping.
func (a *Arena[T]) LiveCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.liveCnt
}
