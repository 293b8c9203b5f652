package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// reminderKeyPrefix is the prefix for expiry-reminder deduplication keys.
const reminderKeyPrefix = "maxnet:reminder:"

// ReminderDeduplicator keeps the reminder job from messaging a subject more
// than once per expiry window across all deployment instances.
type ReminderDeduplicator struct {
	client *redis.Client
}

// NewReminderDeduplicator creates a new ReminderDeduplicator.
func NewReminderDeduplicator(client *redis.Client) *ReminderDeduplicator {
	return &ReminderDeduplicator{client: client}
}

func (d *ReminderDeduplicator) buildKey(entitlementID uint) string {
	return fmt.Sprintf("%s%d", reminderKeyPrefix, entitlementID)
}

// TryMark atomically records a reminder for the entitlement. SetNX only sets
// when no key exists, so concurrent job instances cannot both send.
func (d *ReminderDeduplicator) TryMark(ctx context.Context, entitlementID uint, ttl time.Duration) (bool, error) {
	key := d.buildKey(entitlementID)

	marked, err := d.client.SetNX(ctx, key, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder: %w", err)
	}
	return marked, nil
}

// Clear drops the reminder marker, re-arming the reminder for the
// entitlement. Used when an entitlement is renewed before it expires.
func (d *ReminderDeduplicator) Clear(ctx context.Context, entitlementID uint) error {
	if err := d.client.Del(ctx, d.buildKey(entitlementID)).Err(); err != nil {
		return fmt.Errorf("failed to clear reminder marker: %w", err)
	}
	return nil
}
