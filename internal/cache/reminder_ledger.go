// Package cache holds Redis-backed helpers.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Connect parses a redis:// URL and verifies the server answers
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// ReminderLedger records sent reminders with SETNX so reruns on the same
// day do not message a trip twice.
type ReminderLedger struct {
	client *redis.Client
	prefix string
}

// NewReminderLedger creates a ledger storing keys under "reminder:"
func NewReminderLedger(client *redis.Client) *ReminderLedger {
	return &ReminderLedger{client: client, prefix: "reminder:"}
}

// Claim returns true when key was not already claimed within ttl
func (l *ReminderLedger) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim reminder %s: %w", key, err)
	}
	return ok, nil
}

// Release deletes a claim
func (l *ReminderLedger) Release(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to release reminder %s: %w", key, err)
	}
	return nil
}
