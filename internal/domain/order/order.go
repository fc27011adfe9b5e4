package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
)

// ModificationKind classifies a line-item adjustment on an order.
type ModificationKind string

const (
	KindShipping ModificationKind = "shipping"
	KindTax      ModificationKind = "tax"
	KindFee      ModificationKind = "fee"
	KindCoupon   ModificationKind = "coupon"
)

// Modification is a fee or discount attached to an order. Price is signed:
// discounts are negative.
type Modification struct {
	ID          string
	OrderID     string
	Kind        ModificationKind
	Price       decimal.Decimal
	Currency    string
	Description string
	// CouponID is set only for KindCoupon.
	CouponID  string
	CreatedAt time.Time
}

// Order is the checkout order a coupon is evaluated against. It is owned by
// the surrounding shop; this service only reads it and records coupon
// modifications.
type Order struct {
	ID string
	// CustomerID is empty for guest checkouts.
	CustomerID    string
	Subtotal      decimal.Decimal
	CouponCode    string
	PaymentStatus PaymentStatus
	Modifications []Modification
	CreatedAt     time.Time
}

// ReferenceTotal is the subtotal plus every non-coupon modification: the
// order total before a coupon is applied.
func (o *Order) ReferenceTotal() decimal.Decimal {
	return o.Subtotal.Add(sumPrices(o.Modifications, func(m Modification) bool {
		return m.Kind != KindCoupon
	}))
}

// SpendTotal is the amount compared against a coupon's minimum spend. It
// matches ReferenceTotal but leaves shipping out.
func (o *Order) SpendTotal() decimal.Decimal {
	return o.Subtotal.Add(sumPrices(o.Modifications, func(m Modification) bool {
		return m.Kind != KindCoupon && m.Kind != KindShipping
	}))
}

// Total is the subtotal with every modification applied, rounded to cents.
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal.Add(sumPrices(o.Modifications, nil)).Round(2)
}

// CouponModification returns the first coupon modification on the order.
func (o *Order) CouponModification() (Modification, bool) {
	return lo.Find(o.Modifications, func(m Modification) bool {
		return m.Kind == KindCoupon
	})
}

// CouponAmount is the amount deducted by the order's coupon, expressed as a
// positive value. Zero when no coupon has been applied.
func (o *Order) CouponAmount() decimal.Decimal {
	m, ok := o.CouponModification()
	if !ok {
		return decimal.Zero
	}
	return m.Price.Abs()
}

func sumPrices(mods []Modification, keep func(Modification) bool) decimal.Decimal {
	if keep != nil {
		mods = lo.Filter(mods, func(m Modification, _ int) bool { return keep(m) })
	}
	return lo.Reduce(mods, func(sum decimal.Decimal, m Modification, _ int) decimal.Decimal {
		return sum.Add(m.Price)
	}, decimal.Zero)
}

// Repository defines the order operations the coupon service depends on.
type Repository interface {
	// Get returns the order with its modifications loaded.
	Get(ctx context.Context, id string) (*Order, error)
	// SetCouponCode stores the code submitted at checkout on the order.
	SetCouponCode(ctx context.Context, id, code string) error
}
