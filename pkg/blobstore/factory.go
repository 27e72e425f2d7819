package blobstore

import (
	"context"
	"fmt"
	"sync"

	"elasticpool/pkg/blobstore/memory"
	"elasticpool/pkg/blobstore/redis"
	"elasticpool/pkg/blobstore/s3"
	"elasticpool/pkg/cloud"
	"elasticpool/pkg/config"
	"elasticpool/pkg/interfaces"
	redisstore "elasticpool/pkg/store/redis"
)

var (
	memoryStoresMu sync.Mutex
	memoryStores   = map[string]*memory.Store{}
)

// CreateBlobStore creates the store for one bucket
func CreateBlobStore(ctx context.Context, cfg *config.Config, bucket string, redisClient *redisstore.RedisClient) (interfaces.BlobStore, error) {
	switch cfg.Blob.Provider {
	case "redis", "":
		if redisClient == nil {
			return nil, fmt.Errorf("redis blob store requires redis.addr")
		}
		return redis.NewStore(redisClient.GetClient(), bucket), nil
	case "s3":
		awsCfg, err := cloud.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return s3.NewStore(cloud.NewS3Client(awsCfg, cfg.AWS.Endpoint), bucket), nil
	case "memory":
		memoryStoresMu.Lock()
		defer memoryStoresMu.Unlock()
		s, ok := memoryStores[bucket]
		if !ok {
			s = memory.NewStore()
			memoryStores[bucket] = s
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported blob provider type: %s", cfg.Blob.Provider)
	}
}
