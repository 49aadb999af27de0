package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "humanmark:result:"

type redisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redisURL, which is either a redis:// URL or a bare
// host:port. Records expire after ttl; zero keeps them forever.
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (Repository, error) {
	client, err := connectRedis(redisURL)
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &redisRepository{client: client, ttl: ttl}, nil
}

func connectRedis(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("redis url is required")
	}
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opt, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		return redis.NewClient(opt), nil
	}
	return redis.NewClient(&redis.Options{Addr: redisURL}), nil
}

func (r *redisRepository) Save(ctx context.Context, rec Record) (*Record, error) {
	stamp(&rec)

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+rec.ID, payload, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("store result: %w", err)
	}
	return &rec, nil
}

func (r *redisRepository) Get(ctx context.Context, id string) (*Record, error) {
	payload, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load result: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	return &rec, nil
}

func (r *redisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *redisRepository) Close() error {
	return r.client.Close()
}
