package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage takes a percentage off the order's reference total.
	DiscountPercentage DiscountType = "Percentage"
	// DiscountFlat takes a fixed amount off, capped at the reference total.
	DiscountFlat DiscountType = "Flat"
)

// Valid reports whether t is a known discount type.
func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFlat
}

var (
	// ErrInvalidInput is returned when a blank coupon code is submitted.
	ErrInvalidInput = errors.New("coupon code is required")
	// ErrNotFound is returned when no coupon matches the code, is unexpired
	// and has a minimum spend the order satisfies.
	ErrNotFound = errors.New("coupon is invalid or expired")
	// ErrUsageLimitExceeded is returned when the customer has already used the
	// coupon the maximum permitted number of times.
	ErrUsageLimitExceeded = errors.New("coupon usage limit exceeded")
	// ErrCouponMissing is returned by ID based lookups for unknown coupons.
	ErrCouponMissing = errors.New("coupon not found")
)

// IsRejection reports whether err is a user-facing coupon rejection rather
// than an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUsageLimitExceeded)
}

// Coupon is a discount rule identified by its code.
type Coupon struct {
	ID           string
	ShopConfigID string
	Title        string
	Code         string
	Type         DiscountType
	// Discount is percentage points for DiscountPercentage and a currency
	// amount for DiscountFlat.
	Discount     decimal.Decimal
	MinimumSpend decimal.Decimal
	// MaxCustomerUses of zero means unlimited.
	MaxCustomerUses int
	// Expiry is a calendar date at UTC midnight. The coupon is valid on it.
	Expiry    time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Label is the text shown on the order line created by the coupon.
func (c *Coupon) Label() string {
	return c.Title
}

// Summary describes the discount for listings, e.g. "15%" or "20.00".
func (c *Coupon) Summary() string {
	if c.Type == DiscountPercentage {
		return c.Discount.String() + "%"
	}
	return c.Discount.StringFixed(2)
}

// Modification is an applied coupon recorded against an order.
type Modification struct {
	ID       string
	CouponID string
	OrderID  string
	// Price is the negated discount amount.
	Price       decimal.Decimal
	Currency    string
	Description string
	CreatedAt   time.Time
}

// OrderModification converts m into the generic order line form.
func (m *Modification) OrderModification() order.Modification {
	return order.Modification{
		ID:          m.ID,
		OrderID:     m.OrderID,
		Kind:        order.KindCoupon,
		Price:       m.Price,
		Currency:    m.Currency,
		Description: m.Description,
		CouponID:    m.CouponID,
		CreatedAt:   m.CreatedAt,
	}
}

// Checkout is the request-scoped state a coupon is evaluated against.
type Checkout struct {
	Order *order.Order
	// CustomerID is empty when the shopper is not signed in.
	CustomerID string
	Shop       shop.Config
}

// NewCheckout builds a Checkout for the order's own customer.
func NewCheckout(o *order.Order, cfg shop.Config) Checkout {
	return Checkout{Order: o, CustomerID: o.CustomerID, Shop: cfg}
}

// Filter narrows coupon lookups. Zero fields do not constrain the result.
type Filter struct {
	ShopConfigID string
	Code         string
	// ExpiresOnOrAfter keeps coupons whose Expiry is on or after this date.
	ExpiresOnOrAfter time.Time
	// Spend keeps coupons whose MinimumSpend does not exceed it.
	Spend *decimal.Decimal
}

// Matches reports whether c satisfies every set field of f.
func (f Filter) Matches(c *Coupon) bool {
	if f.ShopConfigID != "" && c.ShopConfigID != f.ShopConfigID {
		return false
	}
	if f.Code != "" && c.Code != f.Code {
		return false
	}
	if !f.ExpiresOnOrAfter.IsZero() && DateOf(c.Expiry).Before(DateOf(f.ExpiresOnOrAfter)) {
		return false
	}
	if f.Spend != nil && c.MinimumSpend.GreaterThan(*f.Spend) {
		return false
	}
	return true
}

// DateOf truncates t to its calendar date at UTC midnight.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Repository provides persistence for coupon rules.
type Repository interface {
	// FindFirst returns the first coupon matching f or ErrNotFound.
	FindFirst(ctx context.Context, f Filter) (*Coupon, error)
	List(ctx context.Context, f Filter) ([]Coupon, error)
	// Get, Update and Delete return ErrCouponMissing for unknown IDs.
	Get(ctx context.Context, id string) (*Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id string) error
}

// ModificationRepository records coupon applications and counts prior uses.
type ModificationRepository interface {
	Create(ctx context.Context, m *Modification) error
	// CountPaidUses counts modifications of the coupon on paid orders that
	// belong to the customer.
	CountPaidUses(ctx context.Context, couponID, customerID string) (int, error)
}
