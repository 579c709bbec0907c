package threat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRunLock(t *testing.T, ttl time.Duration) (*RedisRunLock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	lock := NewRedisRunLock(mr.Addr(), "", 0, ttl, zap.NewNop().Sugar())
	t.Cleanup(func() { _ = lock.Close() })
	require.NoError(t, lock.Ping(context.Background()))
	return lock, mr
}

func TestRedisRunLock_Exclusive(t *testing.T) {
	lock, mr := newTestRunLock(t, time.Minute)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, testOrg, "job-1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("iochunt:hunt-lock:org-1:job-1"))

	_, err = lock.Acquire(ctx, testOrg, "job-1")
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := lock.Acquire(ctx, testOrg, "job-2")
	require.NoError(t, err, "locks are per job")
	other()

	release()
	assert.False(t, mr.Exists("iochunt:hunt-lock:org-1:job-1"))

	again, err := lock.Acquire(ctx, testOrg, "job-1")
	require.NoError(t, err)
	again()
}

func TestRedisRunLock_ExpiryAndStaleRelease(t *testing.T) {
	lock, mr := newTestRunLock(t, time.Second)
	ctx := context.Background()

	stale, err := lock.Acquire(ctx, testOrg, "job-1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	fresh, err := lock.Acquire(ctx, testOrg, "job-1")
	require.NoError(t, err, "expired lock can be taken over")

	stale()
	assert.True(t, mr.Exists("iochunt:hunt-lock:org-1:job-1"), "stale holder must not release the new holder's lock")

	fresh()
	assert.False(t, mr.Exists("iochunt:hunt-lock:org-1:job-1"))
}

func TestRedisRunLock_Unreachable(t *testing.T) {
	lock := NewRedisRunLock("127.0.0.1:1", "", 0, time.Minute, zap.NewNop().Sugar())
	defer lock.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := lock.Acquire(ctx, testOrg, "job-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrLockHeld)
}

func TestNopRunLock(t *testing.T) {
	release, err := NopRunLock{}.Acquire(context.Background(), testOrg, "job-1")
	require.NoError(t, err)
	release()
}
