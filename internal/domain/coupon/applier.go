package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/xenking/shop-coupons/internal/domain/coupon"

// Applier validates a code and records the resulting coupon modification.
type Applier struct {
	validator *Validator
	mods      ModificationRepository

	tracer  trace.Tracer
	applied metric.Int64Counter

	now   func() time.Time
	newID func() string
}

// NewApplier creates an Applier reporting spans and counters to the given
// providers.
func NewApplier(v *Validator, mods ModificationRepository, tp trace.TracerProvider, mp metric.MeterProvider) (*Applier, error) {
	applied, err := mp.Meter(instrumentationName).Int64Counter("coupon.applications",
		metric.WithDescription("Coupon application attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applications counter")
	}
	return &Applier{
		validator: v,
		mods:      mods,
		tracer:    tp.Tracer(instrumentationName),
		applied:   applied,
		now:       time.Now,
		newID:     uuid.NewString,
	}, nil
}

// Apply validates code and, on success, stores a modification whose price is
// the negated discount. Applying twice records two modifications.
func (a *Applier) Apply(ctx context.Context, co Checkout, code string) (_ *Modification, rerr error) {
	ctx, span := a.tracer.Start(ctx, "coupon.Apply",
		trace.WithAttributes(attribute.String("order.id", co.Order.ID)),
	)
	defer func() {
		a.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("result", resultOf(rerr))))
		if rerr != nil && !IsRejection(rerr) {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	c, err := a.validator.Validate(ctx, co, code)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("coupon.id", c.ID))

	price, err := c.Price(co)
	if err != nil {
		return nil, err
	}

	m := &Modification{
		ID:          a.newID(),
		CouponID:    c.ID,
		OrderID:     co.Order.ID,
		Price:       price.Amount,
		Currency:    price.Currency,
		Description: c.Label(),
		CreatedAt:   a.now().UTC(),
	}
	if err := a.mods.Create(ctx, m); err != nil {
		return nil, errors.Wrap(err, "record coupon modification")
	}

	zctx.From(ctx).Info("Coupon applied",
		zap.String("order_id", m.OrderID),
		zap.String("coupon_id", m.CouponID),
		zap.String("price", price.Nice()),
	)
	return m, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "applied"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUsageLimitExceeded):
		return "usage_limit"
	default:
		return "error"
	}
}
