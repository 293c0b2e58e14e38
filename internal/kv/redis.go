package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// redisStore backs a key-value store with Redis.
type redisStore struct {
	client *redis.Client
}

// NewRedisStoreManager creates a manager over a Redis-backed store. The
// connection is established lazily; transient errors surface per
// operation, letting go-redis reconnect in the background.
func NewRedisStoreManager(address string) (StoreManager, error) {
	opt, err := redis.ParseURL(address)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	var once sync.Once
	var store *redisStore
	return &singleStoreManager{
		open: func(ctx context.Context) (Store, error) {
			once.Do(func() {
				store = &redisStore{client: redis.NewClient(opt)}
			})
			return store, nil
		},
		summary: fmt.Sprintf("Redis at %s", opt.Addr),
	}, nil
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, key, value, 0).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *redisStore) GetKeys(ctx context.Context) ([]string, error) {
	return s.client.Keys(ctx, "*").Result()
}
