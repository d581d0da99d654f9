package familysync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "basket:family:"

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Set(context.Context, string, any, time.Duration) *redis.StatusCmd
	Get(context.Context, string) *redis.StringCmd
}

// RedisRemote keeps family documents as JSON strings in Redis.
type RedisRemote struct {
	store cmdable
	raw   *redis.Client
}

// NewRedisRemote connects to rawURL (redis://...) and verifies connectivity.
func NewRedisRemote(ctx context.Context, rawURL string) (*RedisRemote, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisRemote{store: raw, raw: raw}, nil
}

func familyKey(familyID string) string {
	return keyNamespace + familyID
}

func (r *RedisRemote) Push(ctx context.Context, familyID string, doc Document) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal family document: %w", err)
	}
	if err := r.store.Set(ctx, familyKey(familyID), string(payload), 0).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisRemote) Pull(ctx context.Context, familyID string) (Document, error) {
	payload, err := r.store.Get(ctx, familyKey(familyID)).Result()
	if errors.Is(err, redis.Nil) {
		return Document{}, ErrNoDocument
	}
	if err != nil {
		return Document{}, fmt.Errorf("redis get: %w", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		return Document{}, fmt.Errorf("decode family document: %w", err)
	}
	return doc, nil
}

// Ping exposes the health-check surface.
func (r *RedisRemote) Ping(ctx context.Context) error {
	return r.store.Ping(ctx).Err()
}

func (r *RedisRemote) Close() error {
	if r.raw == nil {
		return nil
	}
	return r.raw.Close()
}
