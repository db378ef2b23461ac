package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hamed0406/serverwatch/internal/domain"
)

const redisKeyPrefix = "server:status:"

// Redis stores records as JSON with native key expiry.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

// OpenRedis connects using a redis:// URL and verifies the connection.
func OpenRedis(ctx context.Context, url string) (*Redis, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	c := redis.NewClient(opt)
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Ping(ctxPing).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: c}, nil
}

func (r *Redis) Close() error { return r.client.Close() }

func key(id domain.TargetID) string { return redisKeyPrefix + string(id) }

func (r *Redis) Get(ctx context.Context, id domain.TargetID) (domain.StatusRecord, bool, error) {
	b, err := r.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.StatusRecord{}, false, nil
	}
	if err != nil {
		return domain.StatusRecord{}, false, fmt.Errorf("redis get %s: %w", id, err)
	}
	var rec domain.StatusRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return domain.StatusRecord{}, false, fmt.Errorf("decode cached status %s: %w", id, err)
	}
	return rec, true, nil
}

func (r *Redis) Set(ctx context.Context, id domain.TargetID, rec domain.StatusRecord, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode status %s: %w", id, err)
	}
	if err := r.client.Set(ctx, key(id), b, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", id, err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, id domain.TargetID) error {
	if err := r.client.Del(ctx, key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", id, err)
	}
	return nil
}

var _ Cache = (*Redis)(nil)
