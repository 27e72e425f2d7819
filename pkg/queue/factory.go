package queue

import (
	"context"
	"fmt"
	"sync"

	"elasticpool/pkg/cloud"
	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"
	"elasticpool/pkg/queue/memory"
	"elasticpool/pkg/queue/redis"
	"elasticpool/pkg/queue/sqs"
	redisstore "elasticpool/pkg/store/redis"
)

var (
	memoryQueuesMu sync.Mutex
	memoryQueues   = map[string]*memory.MemoryQueueProvider{}
)

// CreateQueueProvider creates the provider for the named queue.
// Memory queues are shared per name within the process.
func CreateQueueProvider(ctx context.Context, cfg *config.Config, name string, redisClient *redisstore.RedisClient) (interfaces.QueueProvider, error) {
	switch cfg.Queue.Provider {
	case "redis", "":
		if redisClient == nil {
			return nil, fmt.Errorf("redis queue provider requires redis.addr")
		}
		return redis.NewRedisQueueProvider(redisClient.GetClient(), name, cfg.Queue.VisibilityTimeout), nil
	case "sqs":
		awsCfg, err := cloud.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return sqs.NewSQSQueueProvider(ctx, cloud.NewSQSClient(awsCfg, cfg.AWS.Endpoint), name, cfg.Queue.VisibilityTimeout)
	case "memory":
		memoryQueuesMu.Lock()
		defer memoryQueuesMu.Unlock()
		q, ok := memoryQueues[name]
		if !ok {
			q = memory.NewMemoryQueueProvider(name, cfg.Queue.VisibilityTimeout)
			memoryQueues[name] = q
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue provider type: %s", cfg.Queue.Provider)
	}
}
