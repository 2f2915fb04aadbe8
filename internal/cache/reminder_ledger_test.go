package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderLedger_Claim(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ledger := NewReminderLedger(client)
	ctx := context.Background()

	ok, err := ledger.Claim(ctx, "trip_start:trip-1:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ledger.Claim(ctx, "trip_start:trip-1:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok, "second claim on the same day is refused")

	ok, err = ledger.Claim(ctx, "trip_start:trip-1:2025-03-11", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, mr.Exists("reminder:trip_start:trip-1:2025-03-10"))

	require.NoError(t, ledger.Release(ctx, "trip_start:trip-1:2025-03-11"))
	assert.False(t, mr.Exists("reminder:trip_start:trip-1:2025-03-11"))

	mr.FastForward(2 * time.Hour)
	ok, err = ledger.Claim(ctx, "trip_start:trip-1:2025-03-10", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok, "claim is available again after ttl")
}

func TestReminderLedger_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	_, err = NewReminderLedger(client).Claim(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client, err := Connect(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	client.Close()

	_, err = Connect(context.Background(), "not-a-url")
	assert.ErrorContains(t, err, "failed to parse")
}
