package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/textforge/humanizer-back/internal/domain"
)

const checkpointKeyPrefix = "humanizer:checkpoint:"

type RedisCheckpointConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisCheckpointRepository persists checkpoints in Redis so paused jobs can
// be resumed after a process restart. Checkpoints expire after TTL to keep
// abandoned pauses from accumulating.
type RedisCheckpointRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCheckpointRepository(ctx context.Context, cfg RedisCheckpointConfig) (*RedisCheckpointRepository, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCheckpointRepository{client: client, ttl: cfg.TTL}, nil
}

func (r *RedisCheckpointRepository) Close() error {
	return r.client.Close()
}

func (r *RedisCheckpointRepository) Save(ctx context.Context, state *domain.ResumableJobState) error {
	encoded, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := r.client.Set(ctx, checkpointKeyPrefix+state.JobID, encoded, r.ttl).Err(); err != nil {
		return fmt.Errorf("store checkpoint: %w", err)
	}
	return nil
}

func (r *RedisCheckpointRepository) Load(ctx context.Context, jobID string) (*domain.ResumableJobState, error) {
	raw, err := r.client.Get(ctx, checkpointKeyPrefix+jobID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	var state domain.ResumableJobState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

func (r *RedisCheckpointRepository) Delete(ctx context.Context, jobID string) error {
	removed, err := r.client.Del(ctx, checkpointKeyPrefix+jobID).Result()
	if err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}
