package prlinks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRegistry stores one hash per thread, field = turn id, value = URL
type RedisRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisRegistry creates a Redis-backed registry
func NewRedisRegistry(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisRegistry {
	return &RedisRegistry{
		client: client,
		prefix: prefix + "prlinks:",
		ttl:    ttl,
	}
}

func (r *RedisRegistry) key(threadID string) string {
	return r.prefix + threadID
}

func (r *RedisRegistry) SetLink(ctx context.Context, threadID, turnID, url string) error {
	if err := validate(threadID, turnID); err != nil {
		return err
	}
	key := r.key(threadID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, turnID, url)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set PR link: %w", err)
	}
	return nil
}

func (r *RedisRegistry) GetLink(ctx context.Context, threadID, turnID string) (string, bool, error) {
	if err := validate(threadID, turnID); err != nil {
		return "", false, err
	}
	url, err := r.client.HGet(ctx, r.key(threadID), turnID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get PR link: %w", err)
	}
	return url, true, nil
}

func (r *RedisRegistry) Links(ctx context.Context, threadID string) (map[string]string, error) {
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	links, err := r.client.HGetAll(ctx, r.key(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list PR links: %w", err)
	}
	if links == nil {
		links = map[string]string{}
	}
	return links, nil
}

func (r *RedisRegistry) ClearThread(ctx context.Context, threadID string) error {
	if threadID == "" {
		return ErrInvalidThread
	}
	if err := r.client.Del(ctx, r.key(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to clear PR links: %w", err)
	}
	return nil
}
