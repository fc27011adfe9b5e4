package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DiscountAmount calculates the amount the coupon takes off an order whose
// total before the coupon is referenceTotal. The result is never negative
// and is rounded half-up to cents.
func DiscountAmount(c *Coupon, referenceTotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch c.Type {
	case DiscountPercentage:
		amount = referenceTotal.Mul(c.Discount).Div(hundred)
	case DiscountFlat:
		amount = decimal.Min(c.Discount, referenceTotal)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.Type)
	}
	return floorAtZero(amount).Round(2), nil
}

// Price is the signed adjustment the coupon makes to the checkout's order,
// in the shop's base currency.
func (c *Coupon) Price(co Checkout) (Money, error) {
	amount, err := DiscountAmount(c, co.Order.ReferenceTotal())
	if err != nil {
		return Money{}, err
	}
	return Money{
		Amount:   amount.Neg(),
		Currency: co.Shop.BaseCurrency,
		Symbol:   co.Shop.BaseCurrencySymbol,
	}, nil
}

// Money is an amount in a single currency.
type Money struct {
	Amount   decimal.Decimal
	Currency string
	Symbol   string
}

// Nice formats the amount for display, e.g. "-$10.00".
func (m Money) Nice() string {
	if m.Amount.IsNegative() {
		return "-" + m.Symbol + m.Amount.Abs().StringFixed(2)
	}
	return m.Symbol + m.Amount.StringFixed(2)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
