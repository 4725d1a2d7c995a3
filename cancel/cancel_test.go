package cancel_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/cancel"
	"github.com/coreruntime/kernel/evloop"
)

func TestCancelIsIdempotent(t *testing.T) {
	h := cancel.New()
	calls := 0
	h.OnCancel(func() { calls++ })
	h.Cancel()
	h.Cancel()
	h.Cancel()
	require.Equal(t, 1, calls)
	require.True(t, h.Cancelled())
}

func TestOnCancelFiresImmediatelyIfAlreadyCancelled(t *testing.T) {
	h := cancel.New()
	h.Cancel()
	fired := false
	h.OnCancel(func() { fired = true })
	require.True(t, fired)
}

func TestCancelPropagatesToChildrenNotParent(t *testing.T) {
	parent := cancel.New()
	child := cancel.New()
	parent.Link(child)

	child.Cancel()
	require.True(t, child.Cancelled())
	require.False(t, parent.Cancelled())

	parent.Cancel()
	require.True(t, parent.Cancelled())
	require.True(t, child.Cancelled())
}

func TestLinkToAlreadyCancelledParentCancelsChildImmediately(t *testing.T) {
	parent := cancel.New()
	parent.Cancel()
	child := cancel.New()
	parent.Link(child)
	require.True(t, child.Cancelled())
}

func TestCancelableResolvesToCancelledOnCancel(t *testing.T) {
	h := cancel.New()
	started := make(chan struct{})
	out := cancel.Cancelable[int](h, func(stop <-chan struct{}) (int, error) {
		close(started)
		<-stop
		return 0, nil
	})
	<-started
	h.Cancel()
	res := <-out
	require.True(t, res.Cancelled)
}

func TestCancelableResolvesToValueWhenNotCancelled(t *testing.T) {
	h := cancel.New()
	out := cancel.Cancelable[int](h, func(stop <-chan struct{}) (int, error) {
		return 42, nil
	})
	res := <-out
	require.False(t, res.Cancelled)
	require.Equal(t, 42, res.Value)
}

func TestTimeoutCancelsAfterDeadline(t *testing.T) {
	l := evloop.New()
	h := cancel.Timeout(l, nil, time.Millisecond)
	require.False(t, h.Cancelled())
	time.Sleep(3 * time.Millisecond)
	l.Poll()
	require.True(t, h.Cancelled())
}

func TestTimeoutCancelsEarlyIfParentCancels(t *testing.T) {
	l := evloop.New()
	parent := cancel.New()
	h := cancel.Timeout(l, parent, time.Hour)
	parent.Cancel()
	require.True(t, h.Cancelled())
}
