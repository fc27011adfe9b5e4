package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Validator decides whether a submitted code yields a coupon for a checkout.
type Validator struct {
	coupons Repository
	mods    ModificationRepository
	loc     *time.Location
	now     func() time.Time
}

// NewValidator creates a Validator. Expiry is judged against the current
// date in loc; a nil loc means UTC.
func NewValidator(coupons Repository, mods ModificationRepository, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.UTC
	}
	return &Validator{coupons: coupons, mods: mods, loc: loc, now: time.Now}
}

// Validate returns the coupon matching code for the checkout. Rejections are
// ErrInvalidInput, ErrNotFound and ErrUsageLimitExceeded; any other error
// comes from storage.
func (v *Validator) Validate(ctx context.Context, co Checkout, code string) (*Coupon, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrInvalidInput
	}
	lg := zctx.From(ctx).With(zap.String("coupon_code", code), zap.String("order_id", co.Order.ID))

	spend := co.Order.SpendTotal()
	c, err := v.coupons.FindFirst(ctx, Filter{
		Code:             code,
		ExpiresOnOrAfter: v.today(),
		Spend:            &spend,
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			lg.Debug("Coupon not applicable", zap.String("spend", spend.String()))
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}

	if c.MaxCustomerUses > 0 {
		used, err := v.priorUses(ctx, c, co.CustomerID)
		if err != nil {
			return nil, err
		}
		if used >= c.MaxCustomerUses {
			lg.Debug("Coupon usage limit reached",
				zap.Int("used", used),
				zap.Int("max", c.MaxCustomerUses),
			)
			return nil, ErrUsageLimitExceeded
		}
	}

	return c, nil
}

// priorUses counts the customer's paid orders carrying the coupon. Guests
// have no history.
func (v *Validator) priorUses(ctx context.Context, c *Coupon, customerID string) (int, error) {
	if customerID == "" {
		return 0, nil
	}
	n, err := v.mods.CountPaidUses(ctx, c.ID, customerID)
	if err != nil {
		return 0, errors.Wrap(err, "count coupon uses")
	}
	return n, nil
}

func (v *Validator) today() time.Time {
	return DateOf(v.now().In(v.loc))
}
