package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-coupons/internal/domain/shop"
)

const currentShopSQL = `SELECT id, base_currency, base_currency_symbol
	FROM shop_configs
	ORDER BY created_at, id
	LIMIT 1`

var _ shop.Repository = (*ShopRepository)(nil)

// ShopRepository reads the shop configuration.
type ShopRepository struct {
	pool *pgxpool.Pool
}

// NewShopRepository returns a ShopRepository that uses the given pool.
func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

// Current returns the oldest shop configuration.
func (r *ShopRepository) Current(ctx context.Context) (*shop.Config, error) {
	var cfg shop.Config
	err := r.pool.QueryRow(ctx, currentShopSQL).Scan(&cfg.ID, &cfg.BaseCurrency, &cfg.BaseCurrencySymbol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shop.ErrNotConfigured
		}
		return nil, fmt.Errorf("loading shop config: %w", err)
	}
	return &cfg, nil
}
