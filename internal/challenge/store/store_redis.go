package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"votechain/internal/challenge"
	"votechain/pkg/platform/sentinel"
)

const keyPrefix = "vc:challenge:"

// RedisStore keeps challenges under per-voter keys with a server-side TTL.
// Take uses GETDEL so two concurrent redemptions can never both read one.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedis constructs a Redis-backed challenge store.
func NewRedis(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, c challenge.Challenge, ttl time.Duration) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+c.VoterID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, voterID string) (*challenge.Challenge, error) {
	payload, err := s.client.GetDel(ctx, keyPrefix+voterID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("take challenge: %w", err)
	}
	var c challenge.Challenge
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode challenge: %w", err)
	}
	return &c, nil
}
