package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
)

const (
	getOrderSQL = `SELECT id, COALESCE(customer_id, ''), subtotal, coupon_code, payment_status, created_at
	FROM orders WHERE id = $1`

	listModificationsSQL = `SELECT id, order_id, kind, price, currency, description,
		COALESCE(coupon_id, ''), created_at
	FROM order_modifications
	WHERE order_id = $1
	ORDER BY sort_order, created_at, id`

	setCouponCodeSQL = `UPDATE orders SET coupon_code = $2 WHERE id = $1`

	createModificationSQL = `INSERT INTO order_modifications
		(id, order_id, kind, price, currency, description, coupon_id, sort_order, created_at)
	VALUES ($1, $2, 'coupon', $3, $4, $5, $6, $7, $8)`

	countPaidUsesSQL = `SELECT count(*)
	FROM order_modifications m
	JOIN orders o ON o.id = m.order_id
	WHERE m.coupon_id = $1
		AND o.customer_id = $2
		AND o.payment_status = 'Paid'`
)

// couponSortOrder places coupon lines after shipping, tax and fees.
const couponSortOrder = 200

var (
	_ order.Repository              = (*OrderRepository)(nil)
	_ coupon.ModificationRepository = (*ModificationRepository)(nil)
)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Get loads an order and its modifications.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := r.pool.QueryRow(ctx, getOrderSQL, id).Scan(
		&o.ID, &o.CustomerID, &o.Subtotal, &o.CouponCode, &status, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o.PaymentStatus = order.PaymentStatus(status)

	rows, err := r.pool.Query(ctx, listModificationsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing modifications of %q: %w", id, err)
	}
	o.Modifications, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Modification, error) {
		var (
			m    order.Modification
			kind string
		)
		err := row.Scan(&m.ID, &m.OrderID, &kind, &m.Price, &m.Currency, &m.Description, &m.CouponID, &m.CreatedAt)
		m.Kind = order.ModificationKind(kind)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning modifications of %q: %w", id, err)
	}
	return &o, nil
}

// SetCouponCode stores the submitted coupon code on the order.
func (r *OrderRepository) SetCouponCode(ctx context.Context, id, code string) error {
	tag, err := r.pool.Exec(ctx, setCouponCodeSQL, id, code)
	if err != nil {
		return fmt.Errorf("setting coupon code on %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ModificationRepository records coupon modifications in PostgreSQL.
type ModificationRepository struct {
	pool *pgxpool.Pool
}

// NewModificationRepository returns a ModificationRepository that uses the
// given pool.
func NewModificationRepository(pool *pgxpool.Pool) *ModificationRepository {
	return &ModificationRepository{pool: pool}
}

// Create inserts a coupon modification line.
func (r *ModificationRepository) Create(ctx context.Context, m *coupon.Modification) error {
	_, err := r.pool.Exec(ctx, createModificationSQL,
		m.ID, m.OrderID, m.Price, m.Currency, m.Description, m.CouponID, couponSortOrder, m.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err, "order_modifications_order_id_fkey") {
			return order.ErrNotFound
		}
		return fmt.Errorf("creating modification on %q: %w", m.OrderID, err)
	}
	return nil
}

// CountPaidUses counts the customer's paid orders carrying the coupon.
func (r *ModificationRepository) CountPaidUses(ctx context.Context, couponID, customerID string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, countPaidUsesSQL, couponID, customerID).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting uses of coupon %q: %w", couponID, err)
	}
	return n, nil
}
