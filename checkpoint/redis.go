package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/suviet/agent/types"
	"go.uber.org/zap"
)

// RedisConfig configures the Redis checkpoint backend.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// RedisStore persists snapshots as JSON values keyed by thread id, with
// a set tracking known threads.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisStore, error) {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "suviet:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, logger: logger}, nil
}

func (s *RedisStore) threadKey(threadID string) string {
	return s.prefix + "thread:" + threadID
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "threads"
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, threadID string) (*Snapshot, error) {
	raw, err := s.client.Get(ctx, s.threadKey(threadID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "redis get").WithCause(err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "decode snapshot").WithCause(err)
	}
	return &snap, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, threadID string, snap *Snapshot) error {
	stored := *snap
	stored.ThreadID = threadID
	stored.UpdatedAt = time.Now()

	raw, err := json.Marshal(&stored)
	if err != nil {
		return types.NewError(types.ErrCheckpointFailed, "encode snapshot").WithCause(err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.threadKey(threadID), raw, 0)
	pipe.SAdd(ctx, s.indexKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.NewError(types.ErrCheckpointFailed, "redis save").WithCause(err)
	}
	return nil
}

// ListThreads implements Store.
func (s *RedisStore) ListThreads(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, types.NewError(types.ErrCheckpointFailed, "redis list threads").WithCause(err)
	}
	return ids, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, threadID string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.threadKey(threadID))
	pipe.SRem(ctx, s.indexKey(), threadID)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.NewError(types.ErrCheckpointFailed, "redis delete").WithCause(err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }
