package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisLoadCounter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	counter := NewRedisLoadCounter(client, "")
	ctx := context.Background()

	n, err := counter.Load(ctx, "op-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, counter.IncrementLoad(ctx, "op-1", 1))
		}()
	}
	wg.Wait()
	require.NoError(t, counter.IncrementLoad(ctx, "op-1", -5))

	n, err = counter.Load(ctx, "op-1")
	require.NoError(t, err)
	assert.EqualValues(t, 15, n)
	assert.Equal(t, "15", mr.HGet(defaultLoadKey, "op-1"))
}

func TestRedisLoadCounter_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	err := NewRedisLoadCounter(client, "k").IncrementLoad(context.Background(), "op-1", 1)
	assert.Error(t, err)
}
