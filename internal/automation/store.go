package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// latestKey is the Redis key holding the latest result.
const latestKey = "automation-creator:latest"

// redisPingTimeout bounds the connection check in NewRedisResultStore.
const redisPingTimeout = 5 * time.Second

// MemoryResultStore keeps the latest result in process memory.
type MemoryResultStore struct {
	mu     sync.RWMutex
	latest string
}

// NewMemoryResultStore creates an empty in-memory store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{}
}

// Save replaces the stored result.
func (s *MemoryResultStore) Save(_ context.Context, yaml string) error {
	s.mu.Lock()
	s.latest = yaml
	s.mu.Unlock()
	return nil
}

// Latest returns the stored result or ErrNoResult.
func (s *MemoryResultStore) Latest(_ context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == "" {
		return "", ErrNoResult
	}
	return s.latest, nil
}

// RedisResultStore keeps the latest result in Redis so it survives restarts
// and is shared between replicas.
type RedisResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisResultStore connects to redisURL and checks the connection.
// A zero ttl keeps the result forever.
func NewRedisResultStore(redisURL string, ttl time.Duration) (*RedisResultStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RedisResultStore{client: client, ttl: ttl}, nil
}

// Save replaces the stored result.
func (s *RedisResultStore) Save(ctx context.Context, yaml string) error {
	if err := s.client.Set(ctx, latestKey, yaml, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving latest result: %w", err)
	}
	return nil
}

// Latest returns the stored result or ErrNoResult.
func (s *RedisResultStore) Latest(ctx context.Context) (string, error) {
	v, err := s.client.Get(ctx, latestKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoResult
	}
	if err != nil {
		return "", fmt.Errorf("loading latest result: %w", err)
	}
	return v, nil
}

// Close releases the Redis connection pool.
func (s *RedisResultStore) Close() error {
	return s.client.Close()
}
