// Package checkout ties orders, the shop configuration and coupons together
// for the checkout flow: checking a submitted code, applying it and
// reporting the order summary.
package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
)

// Service orchestrates coupon use during checkout.
type Service struct {
	orders    order.Repository
	shops     shop.Repository
	coupons   coupon.Repository
	validator *coupon.Validator
	applier   *coupon.Applier
}

// NewService creates a checkout Service.
func NewService(
	orders order.Repository,
	shops shop.Repository,
	coupons coupon.Repository,
	v *coupon.Validator,
	a *coupon.Applier,
) *Service {
	return &Service{
		orders:    orders,
		shops:     shops,
		coupons:   coupons,
		validator: v,
		applier:   a,
	}
}

// ApplyResult is the outcome of a successful ApplyCoupon.
type ApplyResult struct {
	Modification *coupon.Modification
	// Order is reloaded after the modification was recorded.
	Order *order.Order
}

// Summary reports the money values of an order for display.
type Summary struct {
	Order          *order.Order
	ReferenceTotal decimal.Decimal
	// CouponAmount is positive; zero when no coupon is applied.
	CouponAmount decimal.Decimal
	// DiscountPercent is set only for percentage coupons.
	DiscountPercent *decimal.Decimal
	Total           decimal.Decimal
	Currency        string
	Symbol          string
}

// CheckCoupon reports whether code would be accepted for the order without
// recording anything.
func (s *Service) CheckCoupon(ctx context.Context, orderID, code string) (*coupon.Coupon, error) {
	if strings.TrimSpace(code) == "" {
		return nil, coupon.ErrInvalidInput
	}
	co, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.validator.Validate(ctx, co, code)
}

// ApplyCoupon validates code and records the coupon modification on the
// order. An empty code falls back to the code stored on the order; a new
// one is stored on the order once the coupon has been applied. A rejected
// code leaves the order untouched.
func (s *Service) ApplyCoupon(ctx context.Context, orderID, code string) (*ApplyResult, error) {
	co, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	if code == "" {
		code = co.Order.CouponCode
	}

	m, err := s.applier.Apply(ctx, co, code)
	if err != nil {
		return nil, err
	}

	if code != co.Order.CouponCode {
		if err := s.orders.SetCouponCode(ctx, orderID, code); err != nil {
			return nil, fmt.Errorf("store coupon code: %w", err)
		}
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	return &ApplyResult{Modification: m, Order: o}, nil
}

// Summary returns the order with its coupon and total amounts.
func (s *Service) Summary(ctx context.Context, orderID string) (*Summary, error) {
	co, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	o := co.Order

	sum := &Summary{
		Order:          o,
		ReferenceTotal: o.ReferenceTotal(),
		CouponAmount:   o.CouponAmount(),
		Total:          o.Total(),
		Currency:       co.Shop.BaseCurrency,
		Symbol:         co.Shop.BaseCurrencySymbol,
	}
	sum.DiscountPercent, err = s.discountPercent(ctx, o)
	if err != nil {
		return nil, err
	}
	return sum, nil
}

func (s *Service) discountPercent(ctx context.Context, o *order.Order) (*decimal.Decimal, error) {
	m, ok := o.CouponModification()
	if !ok || m.CouponID == "" {
		return nil, nil
	}
	c, err := s.coupons.Get(ctx, m.CouponID)
	if err != nil {
		if errors.Is(err, coupon.ErrCouponMissing) {
			return nil, nil
		}
		return nil, fmt.Errorf("load applied coupon: %w", err)
	}
	if c.Type != coupon.DiscountPercentage {
		return nil, nil
	}
	pct := c.Discount
	return &pct, nil
}

func (s *Service) load(ctx context.Context, orderID string) (coupon.Checkout, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return coupon.Checkout{}, err
	}
	cfg, err := s.shops.Current(ctx)
	if err != nil {
		return coupon.Checkout{}, err
	}
	return coupon.NewCheckout(o, *cfg), nil
}
