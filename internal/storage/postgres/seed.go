package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
)

const (
	upsertShopSQL = `INSERT INTO shop_configs (id, base_currency, base_currency_symbol)
	VALUES ($1, $2, $3)
	ON CONFLICT (id) DO UPDATE
	SET base_currency = EXCLUDED.base_currency,
		base_currency_symbol = EXCLUDED.base_currency_symbol`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (id) DO UPDATE
	SET title = EXCLUDED.title, code = EXCLUDED.code, type = EXCLUDED.type,
		discount = EXCLUDED.discount, minimum_spend = EXCLUDED.minimum_spend,
		max_customer_uses = EXCLUDED.max_customer_uses, expiry = EXCLUDED.expiry,
		updated_at = EXCLUDED.updated_at`

	upsertOrderSQL = `INSERT INTO orders (id, customer_id, subtotal, coupon_code, payment_status, created_at)
	VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE
	SET customer_id = EXCLUDED.customer_id, subtotal = EXCLUDED.subtotal,
		coupon_code = EXCLUDED.coupon_code, payment_status = EXCLUDED.payment_status`

	upsertModificationSQL = `INSERT INTO order_modifications
		(id, order_id, kind, price, currency, description, coupon_id, sort_order, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
	ON CONFLICT (id) DO UPDATE
	SET kind = EXCLUDED.kind, price = EXCLUDED.price, currency = EXCLUDED.currency,
		description = EXCLUDED.description, coupon_id = EXCLUDED.coupon_id`

	upsertAPIKeySQL = `INSERT INTO api_keys (id, key_hash, name, scopes, active)
	VALUES ($1, $2, $3, $4, TRUE)
	ON CONFLICT (id) DO UPDATE
	SET key_hash = EXCLUDED.key_hash, name = EXCLUDED.name, scopes = EXCLUDED.scopes, active = TRUE`

	listCouponCodesSQL = `SELECT DISTINCT code FROM coupons`

	couponCodeExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE code = $1)`
)

// sortOrders mirrors the display order of modification lines.
var sortOrders = map[order.ModificationKind]int{
	order.KindShipping: 100,
	order.KindTax:      150,
	order.KindFee:      170,
	order.KindCoupon:   couponSortOrder,
}

// Seeder writes fixture and bulk data. Upserts are keyed by ID so reruns
// converge on the same state.
type Seeder struct {
	pool *pgxpool.Pool
}

// NewSeeder returns a Seeder that uses the given pool.
func NewSeeder(pool *pgxpool.Pool) *Seeder {
	return &Seeder{pool: pool}
}

// UpsertShop writes a shop configuration.
func (s *Seeder) UpsertShop(ctx context.Context, cfg shop.Config) error {
	if _, err := s.pool.Exec(ctx, upsertShopSQL, cfg.ID, cfg.BaseCurrency, cfg.BaseCurrencySymbol); err != nil {
		return fmt.Errorf("upserting shop %q: %w", cfg.ID, err)
	}
	return nil
}

// UpsertCoupon writes a coupon.
func (s *Seeder) UpsertCoupon(ctx context.Context, c coupon.Coupon) error {
	_, err := s.pool.Exec(ctx, upsertCouponSQL,
		c.ID, c.ShopConfigID, c.Title, c.Code, string(c.Type), c.Discount, c.MinimumSpend,
		c.MaxCustomerUses, c.Expiry, orNow(c.CreatedAt), orNow(c.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.ID, err)
	}
	return nil
}

// UpsertOrder writes an order and its modifications in one transaction.
func (s *Seeder) UpsertOrder(ctx context.Context, o order.Order) error {
	status := o.PaymentStatus
	if status == "" {
		status = order.PaymentPending
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, upsertOrderSQL,
			o.ID, o.CustomerID, o.Subtotal, o.CouponCode, string(status), orNow(o.CreatedAt),
		)
		if err != nil {
			return fmt.Errorf("upserting order %q: %w", o.ID, err)
		}
		for _, m := range o.Modifications {
			_, err := tx.Exec(ctx, upsertModificationSQL,
				m.ID, o.ID, string(m.Kind), m.Price, m.Currency, m.Description, m.CouponID,
				sortOrders[m.Kind], orNow(m.CreatedAt),
			)
			if err != nil {
				return fmt.Errorf("upserting modification %q: %w", m.ID, err)
			}
		}
		return nil
	})
}

// UpsertAPIKey writes an active API key.
func (s *Seeder) UpsertAPIKey(ctx context.Context, k auth.APIKeyInfo) error {
	if _, err := s.pool.Exec(ctx, upsertAPIKeySQL, k.ID, k.KeyHash, k.Name, k.Scopes); err != nil {
		return fmt.Errorf("upserting api key %q: %w", k.ID, err)
	}
	return nil
}

// CouponCodes returns every distinct coupon code currently stored.
func (s *Seeder) CouponCodes(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupon codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scanning coupon codes: %w", err)
	}
	return codes, nil
}

// CouponCodeExists reports whether any coupon uses code.
func (s *Seeder) CouponCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, couponCodeExistsSQL, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking coupon code %q: %w", code, err)
	}
	return exists, nil
}

// CopyCoupons bulk inserts coupons with COPY inside a transaction and returns
// the number of rows written.
func (s *Seeder) CopyCoupons(ctx context.Context, coupons []coupon.Coupon) (int64, error) {
	var n int64
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = tx.CopyFrom(ctx,
			pgx.Identifier{"coupons"},
			[]string{
				"id", "shop_config_id", "title", "code", "type", "discount", "minimum_spend",
				"max_customer_uses", "expiry", "created_at", "updated_at",
			},
			pgx.CopyFromSlice(len(coupons), func(i int) ([]any, error) {
				c := coupons[i]
				return []any{
					c.ID, c.ShopConfigID, c.Title, c.Code, string(c.Type), c.Discount, c.MinimumSpend,
					c.MaxCustomerUses, c.Expiry, orNow(c.CreatedAt), orNow(c.UpdatedAt),
				}, nil
			}),
		)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("copying coupons: %w", err)
	}
	return n, nil
}

func orNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
