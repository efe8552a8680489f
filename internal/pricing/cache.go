package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// cacheTTL is how long an observed price is trusted.
const cacheTTL = 24 * time.Hour

// retentionTTL is the physical Redis expiry. It is deliberately longer than
// cacheTTL: entries expire logically first and linger, so a Get past the TTL
// is a miss while the entry still exists (passive expiry, no eager delete).
const retentionTTL = 2 * cacheTTL

// Cache is the Redis-backed price cache. Keys are directional: the price of
// MAD→BCN→MAD is not the price of BCN→MAD→BCN.
type Cache struct {
	client *redis.Client
	now    func() time.Time
}

// NewCache constructs a Cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client, now: time.Now}
}

// NewCacheWithClock constructs a Cache with an injectable clock (for tests).
func NewCacheWithClock(client *redis.Client, now func() time.Time) *Cache {
	return &Cache{client: client, now: now}
}

// entry is the stored cache record. ExpiresAt enforces the logical TTL.
type entry struct {
	Price     float64   `json:"price"`
	CachedAt  time.Time `json:"cached_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func key(origin, destination string) string {
	return "price:" + strings.ToUpper(strings.TrimSpace(origin)) +
		":" + strings.ToUpper(strings.TrimSpace(destination))
}

// Get returns the cached round-trip price for the pair. A missing key, an
// expired entry, or an unreadable entry all report a miss (false), never an
// error the caller must branch on differently.
func (c *Cache) Get(ctx context.Context, origin, destination string) (float64, bool, error) {
	val, err := c.client.Get(ctx, key(origin, destination)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("cache get for %s-%s: %w", origin, destination, err)
	}

	var e entry
	if err := json.Unmarshal([]byte(val), &e); err != nil {
		return 0, false, fmt.Errorf("unmarshaling cached price for %s-%s: %w", origin, destination, err)
	}

	if !c.now().Before(e.ExpiresAt) {
		return 0, false, nil
	}

	return e.Price, true, nil
}

// Put stores a freshly observed price, overwriting any previous entry
// wholesale. A single Redis SET keeps the write atomic per key.
func (c *Cache) Put(ctx context.Context, origin, destination string, price float64) error {
	now := c.now()
	b, err := json.Marshal(entry{
		Price:     price,
		CachedAt:  now,
		ExpiresAt: now.Add(cacheTTL),
	})
	if err != nil {
		return fmt.Errorf("marshaling price entry for %s-%s: %w", origin, destination, err)
	}

	if err := c.client.Set(ctx, key(origin, destination), b, retentionTTL).Err(); err != nil {
		return fmt.Errorf("cache set for %s-%s: %w", origin, destination, err)
	}

	return nil
}
