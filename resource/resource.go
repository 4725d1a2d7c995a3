// Package resource implements the process-wide resource table: a map from
// a monotonically increasing rid to a polymorphic, reference-counted
// I/O-capable value. The capability set carries blanket defaults (Read via
// ReadInto, WriteAll looping on Partial, WriteError latching state,
// SizeHint as a (lower, optional-upper) pair); the table is a shared map
// guarded by a single mutex with atomic refcounts.
package resource

import (
	"sync"
	"sync/atomic"

	"github.com/coreruntime/kernel/kerrors"
)

// WriteOutcome is the result of a single Write call: either the whole
// buffer landed (Full) or only a prefix did (Partial).
type WriteOutcome struct {
	Full     bool
	NWritten int
}

// Resource is the capability set every native handle honors. Every method has a
// blanket default via embedding DefaultResource, so a concrete resource
// only implements what it actually supports.
type Resource interface {
	Name() string
	Read(limit int) ([]byte, error)
	ReadInto(buf []byte) (int, error)
	Write(buf []byte) (WriteOutcome, error)
	WriteAll(buf []byte) error
	WriteError(err error) error
	Shutdown() error
	Close()
	BackingHandle() (uintptr, bool)
	SizeHint() (uint64, uint64, bool) // (lower, upper, hasUpper)
}

// DefaultResource supplies the blanket defaults: every method a concrete
// type does not override returns NotSupported. Types that implement
// ReadInto or Write can build Read and WriteAll from them with
// ReadViaReadInto and WriteAllVia. Embed this in concrete resource types.
type DefaultResource struct {
	latched error // set by WriteError; subsequent writes surface it
	mu      sync.Mutex
}

func (d *DefaultResource) Name() string { return "resource.DefaultResource" }

func (d *DefaultResource) checkLatched() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latched
}

// ReadViaReadInto implements Read in terms of r's ReadInto: a concrete type
// that only implements ReadInto can call it from its own Read.
func ReadViaReadInto(r Resource, limit int) ([]byte, error) {
	buf := make([]byte, limit)
	n, err := r.ReadInto(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (d *DefaultResource) Read(int) ([]byte, error) {
	return nil, kerrors.New(kerrors.KindNotSupported, "read not supported")
}

func (d *DefaultResource) ReadInto([]byte) (int, error) {
	return 0, kerrors.New(kerrors.KindNotSupported, "read not supported")
}

func (d *DefaultResource) WriteAll([]byte) error {
	return kerrors.New(kerrors.KindNotSupported, "write not supported")
}

func (d *DefaultResource) Write([]byte) (WriteOutcome, error) {
	return WriteOutcome{}, kerrors.New(kerrors.KindNotSupported, "write not supported")
}

// WriteAllVia implements the default WriteAll: loop Write until the
// cursor has advanced past the whole buffer.
func WriteAllVia(r Resource, buf []byte) error {
	for len(buf) > 0 {
		out, err := r.Write(buf)
		if err != nil {
			return err
		}
		if out.Full {
			return nil
		}
		buf = buf[out.NWritten:]
	}
	return nil
}

func (d *DefaultResource) WriteError(err error) error {
	d.mu.Lock()
	d.latched = err
	d.mu.Unlock()
	return nil
}

func (d *DefaultResource) Shutdown() error {
	return kerrors.New(kerrors.KindNotSupported, "shutdown not supported")
}

func (d *DefaultResource) Close() {}

func (d *DefaultResource) BackingHandle() (uintptr, bool) { return 0, false }

func (d *DefaultResource) SizeHint() (uint64, uint64, bool) { return 0, 0, false }

// Table is the process-wide rid -> Resource map.
type Table struct {
	mu    sync.RWMutex
	byRid map[uint32]*entry
	next  uint32
}

type entry struct {
	res      Resource
	refcount int32
}

func NewTable() *Table {
	return &Table{byRid: make(map[uint32]*entry)}
}

// Add inserts resource with a fresh monotonically increasing rid, refcount 1.
func (t *Table) Add(r Resource) (rid uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	rid = t.next
	t.byRid[rid] = &entry{res: r, refcount: 1}
	return rid
}

// Get bumps the refcount and returns the resource, or BadResource if rid
// is unknown. After Close(rid), Get returns BadResource for that rid.
func (t *Table) Get(rid uint32) (Resource, error) {
	t.mu.RLock()
	e, ok := t.byRid[rid]
	t.mu.RUnlock()
	if !ok {
		return nil, kerrors.New(kerrors.KindBadResource, "no resource with rid %d", rid)
	}
	atomic.AddInt32(&e.refcount, 1)
	return e.res, nil
}

// GetTyped does Get plus a capability downcast, returning BadResource on a
// kind mismatch.
func GetTyped[T any](t *Table, rid uint32) (T, error) {
	var zero T
	r, err := t.Get(rid)
	if err != nil {
		return zero, err
	}
	typed, ok := r.(T)
	if !ok {
		return zero, kerrors.New(kerrors.KindBadResource, "rid %d is not the expected resource kind", rid)
	}
	return typed, nil
}

// Close removes rid and calls its Close method synchronously. Futures that
// already cloned the resource via Get retain their own reference and
// continue to work until they finish or are cancelled.
func (t *Table) Close(rid uint32) error {
	t.mu.Lock()
	e, ok := t.byRid[rid]
	if !ok {
		t.mu.Unlock()
		return kerrors.New(kerrors.KindBadResource, "no resource with rid %d", rid)
	}
	delete(t.byRid, rid)
	t.mu.Unlock()
	e.res.Close()
	return nil
}

// Replace atomically swaps the resource behind rid.
func (t *Table) Replace(rid uint32, next Resource) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byRid[rid]
	if !ok {
		return kerrors.New(kerrors.KindBadResource, "no resource with rid %d", rid)
	}
	e.res = next
	return nil
}

// Len reports the number of live resources. evloop's keep-alive check does
// not use it (a resource table that is non-empty does not by itself keep the
// loop alive; individual resources opt in - see KeepAlive and AnyKeepsAlive).
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byRid)
}

// KeepAlive is implemented by resources that want a non-empty existence in
// the table to keep the event loop's poll cycle from going idle.
type KeepAlive interface {
	KeepsEventLoopAlive() bool
}

// AnyKeepsAlive scans the table for a resource that currently wants to keep
// the loop running.
func (t *Table) AnyKeepsAlive() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, e := range t.byRid {
		if ka, ok := e.res.(KeepAlive); ok && ka.KeepsEventLoopAlive() {
			return true
		}
	}
	return false
}
