package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one hash per thread, field = path, value = content
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed ledger. A zero ttl keeps ledgers
// until they are cleared.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix + "ledger:",
		ttl:    ttl,
	}
}

// key generates the Redis key for a thread
func (s *RedisStore) key(threadID string) string {
	return s.prefix + threadID
}

func (s *RedisStore) SetActiveChanges(ctx context.Context, threadID string, changes map[string]string) error {
	if threadID == "" {
		return ErrInvalidThread
	}

	key := s.key(threadID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(changes) == 0 {
			return nil
		}
		pipe.HSet(ctx, key, changes)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set active changes: %w", err)
	}
	return nil
}

func (s *RedisStore) GetActiveChanges(ctx context.Context, threadID string) (map[string]string, error) {
	if threadID == "" {
		return nil, ErrInvalidThread
	}
	changes, err := s.client.HGetAll(ctx, s.key(threadID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get active changes: %w", err)
	}
	if changes == nil {
		changes = map[string]string{}
	}
	return changes, nil
}

func (s *RedisStore) ClearActiveChanges(ctx context.Context, threadID string) error {
	if threadID == "" {
		return ErrInvalidThread
	}
	if err := s.client.Del(ctx, s.key(threadID)).Err(); err != nil {
		return fmt.Errorf("failed to clear active changes: %w", err)
	}
	return nil
}
