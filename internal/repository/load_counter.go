package repository

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const defaultLoadKey = "triage:recipient_load"

type redisLoadCounter struct {
	client redis.Cmdable
	key    string
}

// NewRedisLoadCounter keeps recipient loads in a single Redis hash. HINCRBY is
// atomic, so concurrent adjustments for one recipient never lose updates.
func NewRedisLoadCounter(client redis.Cmdable, key string) LoadCounter {
	if key == "" {
		key = defaultLoadKey
	}
	return &redisLoadCounter{client: client, key: key}
}

func (c *redisLoadCounter) IncrementLoad(ctx context.Context, recipientID string, delta int64) error {
	return c.client.HIncrBy(ctx, c.key, recipientID, delta).Err()
}

func (c *redisLoadCounter) Load(ctx context.Context, recipientID string) (int64, error) {
	n, err := c.client.HGet(ctx, c.key, recipientID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}
