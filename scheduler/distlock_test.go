package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestDistLock_SecondAcquireFails(t *testing.T) {
	client := newTestRedis(t)
	lock := NewDistLock(client, time.Second)

	release, ok, err := lock.Acquire(context.Background(), "task-x")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok2, err := lock.Acquire(context.Background(), "task-x")
	require.NoError(t, err)
	require.False(t, ok2, "a second acquire before release must fail")

	release()

	_, ok3, err := lock.Acquire(context.Background(), "task-x")
	require.NoError(t, err)
	require.True(t, ok3, "after release, the lock should be acquirable again")
}

func TestDistLock_ReleaseIsNoopForNonOwner(t *testing.T) {
	client := newTestRedis(t)
	lock := NewDistLock(client, time.Second)

	release1, ok, err := lock.Acquire(context.Background(), "task-y")
	require.NoError(t, err)
	require.True(t, ok)

	stale := func() { lock.releaseIfOwner(context.Background(), "agentgraph:schedlock:task-y", "not-the-real-token") }
	stale()

	_, ok2, err := lock.Acquire(context.Background(), "task-y")
	require.NoError(t, err)
	require.False(t, ok2, "a stale release must not clear someone else's lock")

	release1()
}
