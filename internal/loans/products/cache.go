package products

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 10 * time.Minute

// Cache is a read-through Redis cache over the product catalog. A cache
// failure degrades to the database; it never fails the request.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewCache builds the product cache. A nil client disables caching.
func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

func cacheKey(code string) string {
	return "loan_product:" + code
}

// Get returns the cached product for code, or false on miss.
func (c *Cache) Get(ctx context.Context, code string) (Product, bool) {
	if c == nil || c.client == nil {
		return Product{}, false
	}
	raw, err := c.client.Get(ctx, cacheKey(code)).Bytes()
	if err != nil {
		if err != redis.Nil && c.logger != nil {
			c.logger.Warn("product cache read", slog.Any("error", err))
		}
		return Product{}, false
	}
	var p Product
	if err := json.Unmarshal(raw, &p); err != nil {
		return Product{}, false
	}
	return p, true
}

// Put stores a product definition with a TTL.
func (c *Cache) Put(ctx context.Context, p Product) {
	if c == nil || c.client == nil {
		return
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(p.Code), raw, cacheTTL).Err(); err != nil && c.logger != nil {
		c.logger.Warn("product cache write", slog.Any("error", err))
	}
}

// Invalidate drops a product definition after an update.
func (c *Cache) Invalidate(ctx context.Context, code string) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, cacheKey(code)).Err(); err != nil && c.logger != nil {
		c.logger.Warn("product cache invalidate", slog.Any("error", err))
	}
}
