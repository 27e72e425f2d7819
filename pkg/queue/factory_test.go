package queue

import (
	"context"
	"testing"

	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"
	redisstore "elasticpool/pkg/store/redis"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQueueProvider_Memory(t *testing.T) {
	cfg := &config.Config{Queue: config.QueueConfig{Provider: "memory"}}
	ctx := context.Background()

	a, err := CreateQueueProvider(ctx, cfg, "factory-test", nil)
	require.NoError(t, err)
	b, err := CreateQueueProvider(ctx, cfg, "factory-test", nil)
	require.NoError(t, err)
	assert.Same(t, a, b)

	_, ok := a.(interfaces.LeaseReleaser)
	assert.True(t, ok)
}

func TestCreateQueueProvider_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisstore.WrapClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer client.Close()
	cfg := &config.Config{Queue: config.QueueConfig{Provider: "redis"}}

	q, err := CreateQueueProvider(context.Background(), cfg, "req", client)
	require.NoError(t, err)
	require.NoError(t, q.Send(context.Background(), "cat1.jpg"))

	_, err = CreateQueueProvider(context.Background(), cfg, "req", nil)
	assert.Error(t, err)
}

func TestCreateQueueProvider_Unknown(t *testing.T) {
	cfg := &config.Config{Queue: config.QueueConfig{Provider: "kafka"}}
	_, err := CreateQueueProvider(context.Background(), cfg, "req", nil)
	assert.Error(t, err)
}
