package threat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockHeld is returned when another process is already running the hunt
var ErrLockHeld = errors.New("hunt run lock held by another executor")

// RunLock keeps a hunt job from executing twice at once across processes
type RunLock interface {
	// Acquire takes the lock for a job. The returned func releases it.
	Acquire(ctx context.Context, orgID, jobID string) (release func(), err error)
}

// NopRunLock never contends; a single process relies on the guarded status update alone
type NopRunLock struct{}

// Acquire implements RunLock
func (NopRunLock) Acquire(ctx context.Context, orgID, jobID string) (func(), error) {
	return func() {}, nil
}

// releaseScript deletes the key only if it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisRunLock implements RunLock with SET NX PX
type RedisRunLock struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.SugaredLogger
}

// NewRedisRunLock creates a Redis-backed run lock. ttl bounds how long a crashed
// executor can block a job.
func NewRedisRunLock(addr, password string, db int, ttl time.Duration, logger *zap.SugaredLogger) *RedisRunLock {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisRunLock{client: client, ttl: ttl, prefix: "iochunt:hunt-lock:", logger: logger}
}

// Ping tests the Redis connection
func (l *RedisRunLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (l *RedisRunLock) Close() error {
	return l.client.Close()
}

// Acquire implements RunLock
func (l *RedisRunLock) Acquire(ctx context.Context, orgID, jobID string) (func(), error) {
	key := l.prefix + orgID + ":" + jobID
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire hunt lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warnw("Failed to release hunt lock", "hunt_id", jobID, "error", err)
		}
	}
	return release, nil
}
