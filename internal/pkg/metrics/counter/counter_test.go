package counter

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/CourseFox/internal/pkg/env"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", env.GetEnv("CACHE_HOST", "localhost"), env.GetEnv("CACHE_PORT", "6379")),
		Password: env.GetEnv("CACHE_PASSWORD", ""),
		DB:       13,
	})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func TestCountersSnapshot(t *testing.T) {
	c := New(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, c.Incr(ctx, WebhookEnrolled))
	require.NoError(t, c.Incr(ctx, WebhookEnrolled))
	require.NoError(t, c.Incr(ctx, WebhookDuplicate))

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap[WebhookEnrolled])
	assert.Equal(t, int64(1), snap[WebhookDuplicate])
	assert.Zero(t, snap[CheckoutFailed])
}

func TestCountersCourseSales(t *testing.T) {
	c := New(newTestClient(t))
	ctx := context.Background()

	sales, err := c.CourseSales(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)

	require.NoError(t, c.AddCourseSale(ctx, 10))
	require.NoError(t, c.AddCourseSale(ctx, 10))
	require.NoError(t, c.AddCourseSale(ctx, 11))

	sales, err = c.CourseSales(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[uint]int64{10: 2, 11: 1}, sales)
}
