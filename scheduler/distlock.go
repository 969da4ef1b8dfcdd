package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DistLock is an optional cross-process guard so a scheduled task backed
// by a Redis deployment only fires on one runtime instance at a time.
// The scheduler itself is single-process (the original runs one greenlet
// per process too); this hook exists for operators who front multiple
// engine instances with a shared Redis and want at-most-once execution of
// a given scheduled task id across them. Nothing in the core tick loop
// requires it — Scheduler works standalone without a DistLock.
type DistLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDistLock wires a lock helper against an existing Redis client.
func NewDistLock(client *redis.Client, ttl time.Duration) *DistLock {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DistLock{client: client, ttl: ttl}
}

// Acquire attempts to claim taskID for this process, returning a release
// function and true on success, or a no-op function and false if another
// process already holds it.
func (d *DistLock) Acquire(ctx context.Context, taskID string) (release func(), ok bool, err error) {
	token := uuid.NewString()
	key := "agentgraph:schedlock:" + taskID
	acquired, err := d.client.SetNX(ctx, key, token, d.ttl).Result()
	if err != nil {
		return func() {}, false, err
	}
	if !acquired {
		return func() {}, false, nil
	}
	return func() {
		d.releaseIfOwner(context.Background(), key, token)
	}, true, nil
}

// releaseIfOwner deletes the lock key only if it still holds our token,
// via a Lua script to make the check-and-delete atomic.
func (d *DistLock) releaseIfOwner(ctx context.Context, key, token string) {
	const script = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`
	d.client.Eval(ctx, script, []string{key}, token)
}
