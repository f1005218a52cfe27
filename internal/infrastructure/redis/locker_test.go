package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = c.Close() })
	return NewLocker(c, ttl), mr
}

func TestLocker_AcquireRelease(t *testing.T) {
	l, mr := newTestLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.True(t, mr.Exists(lockPrefix+"a@b.com"))

	unlock()
	assert.False(t, mr.Exists(lockPrefix+"a@b.com"))
}

func TestLocker_BlocksUntilContextDone(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "a@b.com")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "a@b.com")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_WaiterAcquiresAfterRelease(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)

	unlock, err := l.Lock(context.Background(), "a@b.com")
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		u, err := l.Lock(context.Background(), "a@b.com")
		if !assert.NoError(t, err) {
			return
		}
		u()
		close(acquired)
	}()

	time.Sleep(50 * time.Millisecond)
	unlock()

	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never acquired the lock")
	}
}

func TestLocker_DistinctKeysIndependent(t *testing.T) {
	l, _ := newTestLocker(t, time.Minute)

	u1, err := l.Lock(context.Background(), "a@b.com")
	require.NoError(t, err)
	defer u1()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	u2, err := l.Lock(ctx, "c@d.com")
	require.NoError(t, err)
	u2()
}

func TestLocker_StaleReleaseKeepsNewHolder(t *testing.T) {
	l, mr := newTestLocker(t, time.Second)

	stale, err := l.Lock(context.Background(), "a@b.com")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := l.Lock(context.Background(), "a@b.com")
	require.NoError(t, err)
	defer fresh()

	stale()
	assert.True(t, mr.Exists(lockPrefix+"a@b.com"))
}

func TestLocker_NotConfigured(t *testing.T) {
	_, err := NewLocker(nil, time.Second).Lock(context.Background(), "k")
	assert.EqualError(t, err, "redis locker not configured")
}
