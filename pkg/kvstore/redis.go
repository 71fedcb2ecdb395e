package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix is prepended to every namespace key.
const DefaultRedisPrefix = "alps:"

// RedisStore keeps one string key per namespace.
type RedisStore struct {
	client *redis.Client
	prefix string
	owned  bool
}

// OpenRedis connects to the Redis server at url (redis://host:port/db)
// and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, prefix: DefaultRedisPrefix, owned: true}, nil
}

// NewRedisStore wraps an existing client. The caller keeps ownership of
// the client; Close does not close it.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// Load returns the document stored under namespace.
func (s *RedisStore) Load(ctx context.Context, namespace string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(namespace)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Save replaces the document. Redis SET is atomic.
func (s *RedisStore) Save(ctx context.Context, namespace string, data []byte) error {
	return s.client.Set(ctx, s.key(namespace), data, 0).Err()
}

// Delete removes the key.
func (s *RedisStore) Delete(ctx context.Context, namespace string) error {
	return s.client.Del(ctx, s.key(namespace)).Err()
}

// Health checks if the Redis connection is healthy.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client if it was opened by OpenRedis.
func (s *RedisStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) key(namespace string) string {
	return s.prefix + namespace
}
