package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/joseph-ayodele/pantry-receipts/internal/entity"
)

// ResolveTier is premium iff the subscription is active and has no expiry
// or an expiry after now.
func ResolveTier(sub *entity.Subscription, now time.Time) Tier {
	if sub == nil || !sub.Active {
		return TierFree
	}
	if sub.ExpiresAt == nil || sub.ExpiresAt.After(now) {
		return TierPremium
	}
	return TierFree
}

// SubscriptionStore returns (nil, nil) when the user has no record.
type SubscriptionStore interface {
	GetSubscription(ctx context.Context, userID string) (*entity.Subscription, error)
	SaveSubscription(ctx context.Context, sub entity.Subscription) error
}

type cacheEntry struct {
	sub       *entity.Subscription
	fetchedAt time.Time
}

// SubscriptionCache keeps time-stamped subscription lookups. Entries expire
// after ttl and are dropped on every write through Save.
type SubscriptionCache struct {
	store SubscriptionStore
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewSubscriptionCache(store SubscriptionStore, ttl time.Duration, now func() time.Time) *SubscriptionCache {
	if now == nil {
		now = time.Now
	}
	return &SubscriptionCache{
		store:   store,
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

func (c *SubscriptionCache) Get(ctx context.Context, userID string) (*entity.Subscription, error) {
	now := c.now()
	c.mu.Lock()
	e, ok := c.entries[userID]
	c.mu.Unlock()
	if ok && c.ttl > 0 && now.Sub(e.fetchedAt) < c.ttl {
		return e.sub, nil
	}

	sub, err := c.store.GetSubscription(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("subscription lookup: %w", err)
	}
	c.mu.Lock()
	c.entries[userID] = cacheEntry{sub: sub, fetchedAt: now}
	c.mu.Unlock()
	return sub, nil
}

// Tier resolves the user's tier at the cache's current time.
func (c *SubscriptionCache) Tier(ctx context.Context, userID string) (Tier, error) {
	sub, err := c.Get(ctx, userID)
	if err != nil {
		return TierFree, err
	}
	return ResolveTier(sub, c.now()), nil
}

func (c *SubscriptionCache) Invalidate(userID string) {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
}

// Save writes through the store and invalidates the user's entry.
func (c *SubscriptionCache) Save(ctx context.Context, sub entity.Subscription) error {
	if sub.UpdatedAt.IsZero() {
		sub.UpdatedAt = c.now()
	}
	err := c.store.SaveSubscription(ctx, sub)
	c.Invalidate(sub.UserID)
	if err != nil {
		return fmt.Errorf("subscription save: %w", err)
	}
	return nil
}
