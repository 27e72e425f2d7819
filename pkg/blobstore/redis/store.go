package redis

import (
	"context"
	"errors"
	"fmt"

	"elasticpool/pkg/interfaces"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "elasticpool:blob:"

// Store blob store keeping each bucket as a redis key namespace
type Store struct {
	redis  *redis.Client
	bucket string
}

// NewStore creates a redis blob store for bucket
func NewStore(client *redis.Client, bucket string) *Store {
	return &Store{redis: client, bucket: bucket}
}

func (s *Store) key(k string) string {
	return keyPrefix + s.bucket + ":" + k
}

// Put stores data under key with no expiry
func (s *Store) Put(ctx context.Context, key string, data []byte) error {
	if err := s.redis.Set(ctx, s.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// Get retrieves data stored under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.redis.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, interfaces.ErrBlobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", s.bucket, key, err)
	}
	return data, nil
}
