package autoscaler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"elasticpool/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	lockTTL             = 30 * time.Second // Expiry so a crashed holder cannot block forever
	lockAcquireTimeout  = 5 * time.Second
	lockExtendInterval  = 10 * time.Second
	maxLockHoldDuration = 2 * time.Minute
)

const (
	unlockScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`
	renewScript = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("expire", KEYS[1], ARGV[2])
		else
			return 0
		end
	`
)

// LockKey returns the leader lock key of a pool
func LockKey(pool string) string {
	return "elasticpool:autoscaler:" + pool + ":lock"
}

// DistributedLock leader lock guarding a controller tick
type DistributedLock interface {
	// TryLock attempts to acquire the lock without blocking
	TryLock(ctx context.Context) (bool, error)

	// Unlock releases the lock if held
	Unlock(ctx context.Context) error

	// IsHeld reports whether this instance holds the lock
	IsHeld() bool
}

// RedisDistributedLock SET NX lock with a background renewal while held
type RedisDistributedLock struct {
	client       *redis.Client
	lockKey      string
	lockValue    string // Unique per instance so one replica never releases another's lock
	ttl          time.Duration
	isHeld       bool
	acquiredAt   time.Time
	stopRenew    chan struct{}
	renewStopped bool
	mu           sync.Mutex
}

// NewRedisDistributedLock creates a redis lock on lockKey.
// A nil client degrades to single-instance mode where TryLock always succeeds.
func NewRedisDistributedLock(client *redis.Client, lockKey string) *RedisDistributedLock {
	if lockKey == "" {
		lockKey = LockKey("default")
	}
	return &RedisDistributedLock{
		client:       client,
		lockKey:      lockKey,
		lockValue:    uuid.NewString(),
		ttl:          lockTTL,
		stopRenew:    make(chan struct{}),
		renewStopped: true,
	}
}

// TryLock attempts to acquire the lock
func (l *RedisDistributedLock) TryLock(ctx context.Context) (bool, error) {
	if l.client == nil {
		l.mu.Lock()
		l.isHeld = true
		l.mu.Unlock()
		return true, nil
	}

	acquireCtx, cancel := context.WithTimeout(ctx, lockAcquireTimeout)
	defer cancel()

	acquired, err := l.client.SetNX(acquireCtx, l.lockKey, l.lockValue, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	if !acquired {
		logger.DebugCtx(ctx, "lock %s already held by another instance", l.lockKey)
		return false, nil
	}

	l.mu.Lock()
	l.isHeld = true
	l.acquiredAt = time.Now()
	// fresh channel per acquisition so TryLock/Unlock can cycle
	l.stopRenew = make(chan struct{})
	l.renewStopped = false
	stop := l.stopRenew
	l.mu.Unlock()

	go l.renewLock(ctx, stop)

	logger.DebugCtx(ctx, "lock %s acquired", l.lockKey)
	return true, nil
}

// Unlock releases the lock
func (l *RedisDistributedLock) Unlock(ctx context.Context) error {
	l.mu.Lock()
	if !l.isHeld && (l.client == nil || l.renewStopped) {
		l.mu.Unlock()
		return nil
	}

	if l.client == nil {
		l.isHeld = false
		l.mu.Unlock()
		return nil
	}

	if !l.renewStopped {
		l.renewStopped = true
		close(l.stopRenew)
	}
	l.mu.Unlock()

	result, err := l.client.Eval(ctx, unlockScript, []string{l.lockKey}, l.lockValue).Int64()
	if err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}

	l.mu.Lock()
	l.isHeld = false
	l.mu.Unlock()

	if result == 1 {
		logger.DebugCtx(ctx, "lock %s released", l.lockKey)
	} else {
		logger.WarnCtx(ctx, "lock %s was already released or taken over", l.lockKey)
	}
	return nil
}

// IsHeld reports whether the lock is held
func (l *RedisDistributedLock) IsHeld() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isHeld
}

func (l *RedisDistributedLock) markLost() {
	l.mu.Lock()
	l.isHeld = false
	l.mu.Unlock()
}

// renewLock extends the TTL until stop is closed or the lock is lost
func (l *RedisDistributedLock) renewLock(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(lockExtendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.mu.Lock()
			held := time.Since(l.acquiredAt)
			l.mu.Unlock()

			if held > maxLockHoldDuration {
				// left for Unlock to delete
				logger.WarnCtx(ctx, "lock %s held for %.0fs, no longer renewing", l.lockKey, held.Seconds())
				l.markLost()
				return
			}

			result, err := l.client.Eval(ctx, renewScript, []string{l.lockKey}, l.lockValue, int(l.ttl.Seconds())).Int64()
			if err != nil {
				logger.WarnCtx(ctx, "failed to renew lock %s: %v", l.lockKey, err)
				l.markLost()
				return
			}
			if result == 0 {
				logger.WarnCtx(ctx, "lock %s lost", l.lockKey)
				l.markLost()
				return
			}
		}
	}
}
