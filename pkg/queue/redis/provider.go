package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	keyPrefix    = "elasticpool:queue:"
	pollInterval = 100 * time.Millisecond
)

// claimScript requeues expired leases then leases up to ARGV[3] messages.
// KEYS: pending list, lease hash, visibility zset
// ARGV: now ms, deadline ms, max, tokens...
var claimScript = redis.NewScript(`
local expired = redis.call("ZRANGEBYSCORE", KEYS[3], "-inf", ARGV[1])
for _, token in ipairs(expired) do
	local body = redis.call("HGET", KEYS[2], token)
	if body then
		redis.call("RPUSH", KEYS[1], body)
	end
	redis.call("HDEL", KEYS[2], token)
	redis.call("ZREM", KEYS[3], token)
end
local out = {}
local max = tonumber(ARGV[3])
for i = 1, max do
	local body = redis.call("RPOP", KEYS[1])
	if not body then
		break
	end
	local token = ARGV[3 + i]
	redis.call("HSET", KEYS[2], token, body)
	redis.call("ZADD", KEYS[3], ARGV[2], token)
	table.insert(out, token)
	table.insert(out, body)
end
return out
`)

// releaseScript puts a leased message back at the head of the queue
var releaseScript = redis.NewScript(`
local body = redis.call("HGET", KEYS[2], ARGV[1])
if not body then
	return 0
end
redis.call("RPUSH", KEYS[1], body)
redis.call("HDEL", KEYS[2], ARGV[1])
redis.call("ZREM", KEYS[3], ARGV[1])
return 1
`)

// RedisQueueProvider Redis queue provider implementation
// Layout: LPUSH/RPOP list for pending bodies, hash of token -> body for leases,
// sorted set of token -> visibility deadline for expiry.
type RedisQueueProvider struct {
	client     *redis.Client
	name       string
	visibility time.Duration
	now        func() time.Time
}

// NewRedisQueueProvider creates Redis queue provider
func NewRedisQueueProvider(client *redis.Client, name string, visibility time.Duration) *RedisQueueProvider {
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &RedisQueueProvider{
		client:     client,
		name:       name,
		visibility: visibility,
		now:        time.Now,
	}
}

// SetClock overrides the time source used for lease deadlines
func (p *RedisQueueProvider) SetClock(now func() time.Time) {
	p.now = now
}

func (p *RedisQueueProvider) pendingKey() string    { return keyPrefix + p.name + ":pending" }
func (p *RedisQueueProvider) leasesKey() string     { return keyPrefix + p.name + ":leases" }
func (p *RedisQueueProvider) visibilityKey() string { return keyPrefix + p.name + ":visibility" }

func (p *RedisQueueProvider) keys() []string {
	return []string{p.pendingKey(), p.leasesKey(), p.visibilityKey()}
}

// Send enqueues one message
func (p *RedisQueueProvider) Send(ctx context.Context, body string) error {
	if err := p.client.LPush(ctx, p.pendingKey(), body).Err(); err != nil {
		return fmt.Errorf("failed to send to %s: %w", p.name, err)
	}
	return nil
}

// Receive leases up to maxMessages, polling until wait elapses
func (p *RedisQueueProvider) Receive(ctx context.Context, maxMessages int, wait time.Duration) ([]*interfaces.Message, error) {
	if maxMessages <= 0 {
		maxMessages = 1
	}
	deadline := time.Now().Add(wait)

	for {
		msgs, err := p.claim(ctx, maxMessages)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 || !time.Now().Before(deadline) {
			return msgs, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func (p *RedisQueueProvider) claim(ctx context.Context, max int) ([]*interfaces.Message, error) {
	now := p.now()
	leaseDeadline := now.Add(p.visibility)

	args := make([]interface{}, 0, max+3)
	args = append(args,
		strconv.FormatInt(now.UnixMilli(), 10),
		strconv.FormatInt(leaseDeadline.UnixMilli(), 10),
		max,
	)
	for i := 0; i < max; i++ {
		args = append(args, uuid.NewString())
	}

	res, err := claimScript.Run(ctx, p.client, p.keys(), args...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to receive from %s: %w", p.name, err)
	}

	pairs, ok := res.([]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected claim reply type %T", res)
	}

	msgs := make([]*interfaces.Message, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		token, _ := pairs[i].(string)
		body, _ := pairs[i+1].(string)
		msgs = append(msgs, &interfaces.Message{
			Body:               body,
			ReceiptToken:       token,
			VisibilityDeadline: leaseDeadline,
		})
	}
	if len(msgs) > 0 {
		logger.DebugCtx(ctx, "leased %d messages from %s", len(msgs), p.name)
	}
	return msgs, nil
}

// Delete acknowledges a leased message
func (p *RedisQueueProvider) Delete(ctx context.Context, receiptToken string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, p.leasesKey(), receiptToken)
		pipe.ZRem(ctx, p.visibilityKey(), receiptToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete lease on %s: %w", p.name, err)
	}
	return nil
}

// Release makes a leased message visible again immediately
func (p *RedisQueueProvider) Release(ctx context.Context, receiptToken string) error {
	n, err := releaseScript.Run(ctx, p.client, p.keys(), receiptToken).Int()
	if err != nil {
		return fmt.Errorf("failed to release lease on %s: %w", p.name, err)
	}
	if n == 0 {
		return interfaces.ErrLeaseNotFound
	}
	return nil
}

// GetQueueStats retrieves queue statistics
func (p *RedisQueueProvider) GetQueueStats(ctx context.Context) (*interfaces.QueueStats, error) {
	pending, err := p.client.LLen(ctx, p.pendingKey()).Result()
	if err != nil {
		return nil, err
	}
	leased, err := p.client.HLen(ctx, p.leasesKey()).Result()
	if err != nil {
		return nil, err
	}
	return &interfaces.QueueStats{
		Name:         p.name,
		PendingCount: int(pending),
		LeasedCount:  int(leased),
	}, nil
}

// Close is a no-op, the shared client is closed by its owner
func (p *RedisQueueProvider) Close() error {
	return nil
}
