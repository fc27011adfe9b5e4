// Package cache wraps slow-changing repositories with an in-process TTL
// cache.
package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/xenking/shop-coupons/internal/domain/shop"
)

const currentShopKey = "shop:current"

var _ shop.Repository = (*ShopRepository)(nil)

// ShopRepository caches the current shop configuration for a fixed TTL.
// Lookup errors are never cached.
type ShopRepository struct {
	next  shop.Repository
	cache *gocache.Cache
}

// NewShopRepository wraps next. A non-positive ttl disables expiry.
func NewShopRepository(next shop.Repository, ttl time.Duration) *ShopRepository {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &ShopRepository{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Current returns the cached configuration, loading it on a miss.
func (r *ShopRepository) Current(ctx context.Context) (*shop.Config, error) {
	if v, ok := r.cache.Get(currentShopKey); ok {
		cfg := v.(shop.Config)
		return &cfg, nil
	}
	cfg, err := r.next.Current(ctx)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(currentShopKey, *cfg)
	return cfg, nil
}
