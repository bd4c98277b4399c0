package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/atinyakov/wishkeeper/internal/models"
)

const cacheKeyPrefix = "wishlist:"

// WishlistRepository is the storage contract shared by the postgres
// repository and its cache.
type WishlistRepository interface {
	QueryByOwner(ctx context.Context, ownerID string) ([]models.Record, error)
	Create(ctx context.Context, ownerID string, p models.Product) (string, error)
	Delete(ctx context.Context, ownerID, remoteID string) error
}

// CachedWishlistRepository serves QueryByOwner from Redis and invalidates
// the owner's entry on every write. Redis failures degrade to the wrapped
// repository.
type CachedWishlistRepository struct {
	next   WishlistRepository
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewCachedWishlistRepository wraps next with a Redis read-through cache.
func NewCachedWishlistRepository(next WishlistRepository, client *redis.Client, ttl time.Duration, log *zap.Logger) *CachedWishlistRepository {
	return &CachedWishlistRepository{next: next, client: client, ttl: ttl, log: log}
}

func cacheKey(ownerID string) string {
	return cacheKeyPrefix + ownerID
}

// QueryByOwner returns the cached records of ownerID, filling the cache on a miss.
func (c *CachedWishlistRepository) QueryByOwner(ctx context.Context, ownerID string) ([]models.Record, error) {
	key := cacheKey(ownerID)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var records []models.Record
		if err := json.Unmarshal(data, &records); err == nil {
			return records, nil
		}
		c.log.Warn("drop corrupt wishlist cache entry", zap.String("owner", ownerID))
	case !errors.Is(err, redis.Nil):
		c.log.Warn("redis get wishlist", zap.String("owner", ownerID), zap.Error(err))
	}

	records, err := c.next.QueryByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(records); err == nil {
		if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.Warn("redis set wishlist", zap.String("owner", ownerID), zap.Error(err))
		}
	}
	return records, nil
}

// Create writes through to the wrapped repository and invalidates the owner's cache.
func (c *CachedWishlistRepository) Create(ctx context.Context, ownerID string, p models.Product) (string, error) {
	id, err := c.next.Create(ctx, ownerID, p)
	if err != nil {
		return "", err
	}
	c.invalidate(ctx, ownerID)
	return id, nil
}

// Delete writes through to the wrapped repository and invalidates the owner's cache.
func (c *CachedWishlistRepository) Delete(ctx context.Context, ownerID, remoteID string) error {
	if err := c.next.Delete(ctx, ownerID, remoteID); err != nil {
		return err
	}
	c.invalidate(ctx, ownerID)
	return nil
}

func (c *CachedWishlistRepository) invalidate(ctx context.Context, ownerID string) {
	if err := c.client.Del(ctx, cacheKey(ownerID)).Err(); err != nil {
		c.log.Warn("redis del wishlist", zap.String("owner", ownerID), zap.Error(err))
	}
}
