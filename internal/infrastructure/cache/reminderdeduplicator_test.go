package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})
	return client, mr
}

func TestReminderDeduplicator_TryMark(t *testing.T) {
	client, _ := setupTestRedis(t)
	d := NewReminderDeduplicator(client)
	ctx := context.Background()

	marked, err := d.TryMark(ctx, 7, time.Hour)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = d.TryMark(ctx, 7, time.Hour)
	require.NoError(t, err)
	assert.False(t, marked, "second mark within the window must be rejected")

	marked, err = d.TryMark(ctx, 8, time.Hour)
	require.NoError(t, err)
	assert.True(t, marked, "other entitlements are independent")
}

func TestReminderDeduplicator_WindowExpiry(t *testing.T) {
	client, mr := setupTestRedis(t)
	d := NewReminderDeduplicator(client)
	ctx := context.Background()

	marked, err := d.TryMark(ctx, 7, time.Hour)
	require.NoError(t, err)
	require.True(t, marked)

	mr.FastForward(2 * time.Hour)

	marked, err = d.TryMark(ctx, 7, time.Hour)
	require.NoError(t, err)
	assert.True(t, marked, "expired marker re-arms the reminder")
}

func TestReminderDeduplicator_Clear(t *testing.T) {
	client, _ := setupTestRedis(t)
	d := NewReminderDeduplicator(client)
	ctx := context.Background()

	marked, err := d.TryMark(ctx, 7, time.Hour)
	require.NoError(t, err)
	require.True(t, marked)

	require.NoError(t, d.Clear(ctx, 7))

	marked, err = d.TryMark(ctx, 7, time.Hour)
	require.NoError(t, err)
	assert.True(t, marked)
}
