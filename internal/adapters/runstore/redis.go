// Package runstore remembers the scrape run a scheduled trigger should resume.
package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"postsync/internal/core/domain"
)

const (
	// DefaultKeyPrefix namespaces the keys written by this store.
	DefaultKeyPrefix = "postsync"
	// DefaultPendingTTL bounds how long a forgotten run stays resumable.
	DefaultPendingTTL = 24 * time.Hour

	connectionTimeout = 5 * time.Second
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// NewRedisClient creates a Redis client and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required: %w", domain.ErrConfiguration)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisStore implements ports.RunStore with a single expiring key per account.
type RedisStore struct {
	client  *redis.Client
	account string
	prefix  string
	ttl     time.Duration
}

// NewRedisStore creates a RedisStore for the account's pending run.
func NewRedisStore(client *redis.Client, account string, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultPendingTTL
	}
	return &RedisStore{client: client, account: account, prefix: DefaultKeyPrefix, ttl: ttl}
}

func (s *RedisStore) key() string {
	return fmt.Sprintf("%s:pending-run:%s", s.prefix, s.account)
}

func (s *RedisStore) failuresKey() string {
	return fmt.Sprintf("%s:pending-failures:%s", s.prefix, s.account)
}

// Pending returns the stored run ID, or "" when none is pending.
func (s *RedisStore) Pending(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.key()).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pending run: %w", err)
	}
	return id, nil
}

// SavePending stores runID, replacing any previous one.
func (s *RedisStore) SavePending(ctx context.Context, runID string) error {
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(), runID, s.ttl)
	pipe.Del(ctx, s.failuresKey())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save pending run %s: %w", runID, err)
	}
	return nil
}

// ClearPending removes the stored run ID.
func (s *RedisStore) ClearPending(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key(), s.failuresKey()).Err(); err != nil {
		return fmt.Errorf("clear pending run: %w", err)
	}
	return nil
}

// RecordFailure increments the failure counter. It expires with the pending run.
func (s *RedisStore) RecordFailure(ctx context.Context) (int, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, s.failuresKey())
	pipe.Expire(ctx, s.failuresKey(), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("record pending run failure: %w", err)
	}
	return int(incr.Val()), nil
}
