package checkout_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/shop-coupons/internal/domain/checkout"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
	"github.com/xenking/shop-coupons/internal/storage/memory"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// farExpiry keeps fixtures valid regardless of when the tests run.
var farExpiry = time.Date(2999, 12, 31, 0, 0, 0, 0, time.UTC)

func newService(t *testing.T, s *memory.Store) *checkout.Service {
	t.Helper()
	v := coupon.NewValidator(s.Coupons(), s.Modifications(), time.UTC)
	a, err := coupon.NewApplier(v, s.Modifications(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	return checkout.NewService(s.Orders(), s.Shops(), s.Coupons(), v, a)
}

func seed(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	require.NoError(t, s.AddShop(shop.Config{ID: "shop", BaseCurrency: "USD", BaseCurrencySymbol: "$"}))
	require.NoError(t, s.AddCoupon(coupon.Coupon{
		ID: "c-save10", ShopConfigID: "shop", Title: "10% off", Code: "SAVE10",
		Type: coupon.DiscountPercentage, Discount: d("10"), MinimumSpend: d("50"),
		MaxCustomerUses: 2, Expiry: farExpiry,
	}))
	require.NoError(t, s.AddCoupon(coupon.Coupon{
		ID: "c-flat20", ShopConfigID: "shop", Title: "$20 off", Code: "FLAT20",
		Type: coupon.DiscountFlat, Discount: d("20"), MinimumSpend: d("0"),
		Expiry: farExpiry,
	}))
	require.NoError(t, s.AddOrder(order.Order{
		ID: "o-100", CustomerID: "alice", Subtotal: d("100.00"), PaymentStatus: order.PaymentPending,
	}))
	require.NoError(t, s.AddOrder(order.Order{
		ID: "o-15", Subtotal: d("15.00"), PaymentStatus: order.PaymentPending,
	}))
	return s
}

func TestCheckCoupon(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	svc := newService(t, s)

	c, err := svc.CheckCoupon(ctx, "o-100", "SAVE10")
	require.NoError(t, err)
	assert.Equal(t, "c-save10", c.ID)

	_, err = svc.CheckCoupon(ctx, "o-100", "")
	require.ErrorIs(t, err, coupon.ErrInvalidInput)

	_, err = svc.CheckCoupon(ctx, "o-15", "SAVE10")
	require.ErrorIs(t, err, coupon.ErrNotFound, "below minimum spend")

	_, err = svc.CheckCoupon(ctx, "missing", "SAVE10")
	require.ErrorIs(t, err, order.ErrNotFound)

	o, err := s.Orders().Get(ctx, "o-100")
	require.NoError(t, err)
	assert.Empty(t, o.Modifications, "check must not record anything")
	assert.Empty(t, o.CouponCode)
}

func TestApplyCoupon(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	svc := newService(t, s)

	res, err := svc.ApplyCoupon(ctx, "o-100", " SAVE10 ")
	require.NoError(t, err)
	assert.True(t, d("-10.00").Equal(res.Modification.Price), "got %s", res.Modification.Price)
	assert.Equal(t, "SAVE10", res.Order.CouponCode)
	require.Len(t, res.Order.Modifications, 1)
	assert.True(t, d("90.00").Equal(res.Order.Total()))

	res, err = svc.ApplyCoupon(ctx, "o-15", "FLAT20")
	require.NoError(t, err)
	assert.True(t, d("-15.00").Equal(res.Modification.Price), "got %s", res.Modification.Price)
	assert.True(t, decimal.Zero.Equal(res.Order.Total()))
}

func TestApplyCoupon_FallsBackToStoredCode(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	require.NoError(t, s.Orders().SetCouponCode(ctx, "o-15", "FLAT20"))
	svc := newService(t, s)

	res, err := svc.ApplyCoupon(ctx, "o-15", "")
	require.NoError(t, err)
	assert.Equal(t, "c-flat20", res.Modification.CouponID)

	_, err = svc.ApplyCoupon(ctx, "o-100", "")
	require.ErrorIs(t, err, coupon.ErrInvalidInput)
}

func TestApplyCoupon_RejectionLeavesOrderUntouched(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	require.NoError(t, s.Orders().SetCouponCode(ctx, "o-15", "FLAT20"))
	svc := newService(t, s)

	tests := []struct {
		name     string
		orderID  string
		code     string
		wantErr  error
		wantCode string
	}{
		{name: "unknown code", orderID: "o-100", code: "BOGUS", wantErr: coupon.ErrNotFound, wantCode: ""},
		{name: "below minimum spend", orderID: "o-15", code: "SAVE10", wantErr: coupon.ErrNotFound, wantCode: "FLAT20"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ApplyCoupon(ctx, tt.orderID, tt.code)
			require.ErrorIs(t, err, tt.wantErr)

			o, err := s.Orders().Get(ctx, tt.orderID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, o.CouponCode)
			assert.Empty(t, o.Modifications)
		})
	}
}

func TestApplyCoupon_Twice(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	svc := newService(t, s)

	_, err := svc.ApplyCoupon(ctx, "o-100", "SAVE10")
	require.NoError(t, err)
	res, err := svc.ApplyCoupon(ctx, "o-100", "SAVE10")
	require.NoError(t, err)

	assert.Len(t, res.Order.Modifications, 2)
	assert.True(t, d("80.00").Equal(res.Order.Total()))
}

func TestApplyCoupon_UsageLimit(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	svc := newService(t, s)

	for _, id := range []string{"past-1", "past-2"} {
		require.NoError(t, s.AddOrder(order.Order{
			ID: id, CustomerID: "alice", Subtotal: d("100"), PaymentStatus: order.PaymentPending,
		}))
		_, err := svc.ApplyCoupon(ctx, id, "SAVE10")
		require.NoError(t, err)
	}

	// Unpaid orders do not count.
	_, err := svc.CheckCoupon(ctx, "o-100", "SAVE10")
	require.NoError(t, err)

	require.NoError(t, s.SetPaymentStatus("past-1", order.PaymentPaid))
	require.NoError(t, s.SetPaymentStatus("past-2", order.PaymentPaid))

	_, err = svc.ApplyCoupon(ctx, "o-100", "SAVE10")
	require.ErrorIs(t, err, coupon.ErrUsageLimitExceeded)

	o, err := s.Orders().Get(ctx, "o-100")
	require.NoError(t, err)
	assert.Empty(t, o.Modifications)
}

func TestApplyCoupon_UnknownCode(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	svc := newService(t, s)

	_, err := svc.ApplyCoupon(ctx, "o-100", "BOGUS")
	require.ErrorIs(t, err, coupon.ErrNotFound)

	o, err := s.Orders().Get(ctx, "o-100")
	require.NoError(t, err)
	assert.Empty(t, o.Modifications)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	s := seed(t)
	svc := newService(t, s)

	sum, err := svc.Summary(ctx, "o-100")
	require.NoError(t, err)
	assert.True(t, sum.CouponAmount.IsZero())
	assert.Nil(t, sum.DiscountPercent)

	_, err = svc.ApplyCoupon(ctx, "o-100", "SAVE10")
	require.NoError(t, err)

	sum, err = svc.Summary(ctx, "o-100")
	require.NoError(t, err)
	assert.True(t, d("10").Equal(sum.CouponAmount))
	require.NotNil(t, sum.DiscountPercent)
	assert.True(t, d("10").Equal(*sum.DiscountPercent))
	assert.True(t, d("100").Equal(sum.ReferenceTotal))
	assert.True(t, d("90").Equal(sum.Total))
	assert.Equal(t, "USD", sum.Currency)

	_, err = svc.ApplyCoupon(ctx, "o-15", "FLAT20")
	require.NoError(t, err)
	sum, err = svc.Summary(ctx, "o-15")
	require.NoError(t, err)
	assert.Nil(t, sum.DiscountPercent, "flat coupons report no percentage")

	require.NoError(t, s.Coupons().Delete(ctx, "c-save10"))
	sum, err = svc.Summary(ctx, "o-100")
	require.NoError(t, err)
	assert.Nil(t, sum.DiscountPercent)
	assert.True(t, d("10").Equal(sum.CouponAmount), "recorded amount survives coupon deletion")
}

func TestNoShopConfigured(t *testing.T) {
	s := memory.NewStore()
	require.NoError(t, s.AddOrder(order.Order{ID: "o"}))
	svc := newService(t, s)

	_, err := svc.ApplyCoupon(context.Background(), "o", "X")
	require.True(t, errors.Is(err, shop.ErrNotConfigured))
}
