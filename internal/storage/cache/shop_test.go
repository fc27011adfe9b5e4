package cache

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-coupons/internal/domain/shop"
)

type countingShops struct {
	cfg   shop.Config
	err   error
	calls int
}

func (c *countingShops) Current(context.Context) (*shop.Config, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	cfg := c.cfg
	return &cfg, nil
}

func TestShopRepository_CachesHits(t *testing.T) {
	next := &countingShops{cfg: shop.Config{ID: "s1", BaseCurrency: "USD"}}
	repo := NewShopRepository(next, time.Minute)

	for range 3 {
		cfg, err := repo.Current(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "s1", cfg.ID)
	}
	assert.Equal(t, 1, next.calls)

	// Callers get copies.
	cfg, err := repo.Current(context.Background())
	require.NoError(t, err)
	cfg.BaseCurrency = "EUR"
	cfg, err = repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USD", cfg.BaseCurrency)
	assert.Equal(t, 1, next.calls)
}

func TestShopRepository_ErrorsNotCached(t *testing.T) {
	next := &countingShops{err: shop.ErrNotConfigured}
	repo := NewShopRepository(next, time.Minute)

	_, err := repo.Current(context.Background())
	require.True(t, errors.Is(err, shop.ErrNotConfigured))

	next.err = nil
	next.cfg = shop.Config{ID: "s1"}
	cfg, err := repo.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s1", cfg.ID)
	assert.Equal(t, 2, next.calls)
}

func TestShopRepository_Expires(t *testing.T) {
	next := &countingShops{cfg: shop.Config{ID: "s1"}}
	repo := NewShopRepository(next, 10*time.Millisecond)

	_, err := repo.Current(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		_, err := repo.Current(context.Background())
		return err == nil && next.calls >= 2
	}, time.Second, 5*time.Millisecond)
}
