package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
)

const couponColumns = `id, shop_config_id, title, code, type, discount, minimum_spend,
	max_customer_uses, expiry, created_at, updated_at`

const (
	getCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	createCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateCouponSQL = `UPDATE coupons
	SET title = $2, code = $3, type = $4, discount = $5, minimum_spend = $6,
		max_customer_uses = $7, expiry = $8, updated_at = $9
	WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindFirst returns the oldest coupon matching f. Returns coupon.ErrNotFound
// when nothing matches.
func (r *CouponRepository) FindFirst(ctx context.Context, f coupon.Filter) (*coupon.Coupon, error) {
	where, args := couponWhere(f)
	sql := `SELECT ` + couponColumns + ` FROM coupons` + where + ` ORDER BY created_at, id LIMIT 1`

	c, err := scanCoupon(r.pool.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon: %w", err)
	}
	return c, nil
}

// List returns every coupon matching f in creation order.
func (r *CouponRepository) List(ctx context.Context, f coupon.Filter) ([]coupon.Coupon, error) {
	where, args := couponWhere(f)
	sql := `SELECT ` + couponColumns + ` FROM coupons` + where + ` ORDER BY created_at, id`

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return out, nil
}

// Get returns the coupon with the given ID or coupon.ErrCouponMissing.
func (r *CouponRepository) Get(ctx context.Context, id string) (*coupon.Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, getCouponSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCouponMissing
		}
		return nil, fmt.Errorf("getting coupon %q: %w", id, err)
	}
	return c, nil
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, createCouponSQL,
		c.ID, c.ShopConfigID, c.Title, c.Code, string(c.Type), c.Discount, c.MinimumSpend,
		c.MaxCustomerUses, c.Expiry, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.ID, err)
	}
	return nil
}

// Update writes the editable fields of c.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		c.ID, c.Title, c.Code, string(c.Type), c.Discount, c.MinimumSpend,
		c.MaxCustomerUses, c.Expiry, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponMissing
	}
	return nil
}

// Delete removes a coupon. Recorded modifications keep their rows with a
// NULL coupon reference.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrCouponMissing
	}
	return nil
}

func couponWhere(f coupon.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if f.ShopConfigID != "" {
		add("shop_config_id = ?", f.ShopConfigID)
	}
	if f.Code != "" {
		add("code = ?", f.Code)
	}
	if !f.ExpiresOnOrAfter.IsZero() {
		add("expiry >= ?::date", coupon.DateOf(f.ExpiresOnOrAfter))
	}
	if f.Spend != nil {
		add("minimum_spend <= ?", *f.Spend)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var (
		c   coupon.Coupon
		typ string
	)
	err := row.Scan(
		&c.ID, &c.ShopConfigID, &c.Title, &c.Code, &typ, &c.Discount, &c.MinimumSpend,
		&c.MaxCustomerUses, &c.Expiry, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Type = coupon.DiscountType(typ)
	c.Expiry = coupon.DateOf(c.Expiry)
	return &c, nil
}
