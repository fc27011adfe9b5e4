package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestShopRepository(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	_, err := s.Shops().Current(ctx)
	require.ErrorIs(t, err, shop.ErrNotConfigured)

	require.NoError(t, s.AddShop(shop.Config{ID: "first", BaseCurrency: "NZD"}))
	require.NoError(t, s.AddShop(shop.Config{ID: "second", BaseCurrency: "USD"}))

	cfg, err := s.Shops().Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.ID)
}

func TestCouponRepository(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repo := s.Coupons()

	expiry := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	for _, c := range []coupon.Coupon{
		{ID: "a", Code: "DUP", MinimumSpend: d("100"), Expiry: expiry},
		{ID: "b", Code: "DUP", MinimumSpend: d("10"), Expiry: expiry},
		{ID: "c", Code: "DUP", MinimumSpend: d("0"), Expiry: expiry},
	} {
		require.NoError(t, repo.Create(ctx, &c))
	}

	spend := d("50")
	got, err := repo.FindFirst(ctx, coupon.Filter{Code: "DUP", Spend: &spend})
	require.NoError(t, err)
	assert.Equal(t, "b", got.ID)

	_, err = repo.FindFirst(ctx, coupon.Filter{Code: "OTHER"})
	require.ErrorIs(t, err, coupon.ErrNotFound)

	dup := coupon.Coupon{ID: "a"}
	require.ErrorIs(t, repo.Create(ctx, &dup), errExists)

	got.Title = "Updated"
	require.NoError(t, repo.Update(ctx, got))
	reloaded, err := repo.Get(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, "Updated", reloaded.Title)

	require.ErrorIs(t, repo.Update(ctx, &coupon.Coupon{ID: "zzz"}), coupon.ErrCouponMissing)

	require.NoError(t, repo.Delete(ctx, "a"))
	list, err := repo.List(ctx, coupon.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	require.ErrorIs(t, repo.Delete(ctx, "a"), coupon.ErrCouponMissing)
	_, err = repo.Get(ctx, "a")
	require.ErrorIs(t, err, coupon.ErrCouponMissing)
}

func TestOrderRepository(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.AddOrder(order.Order{
		ID:       "o1",
		Subtotal: d("40"),
		Modifications: []order.Modification{
			{ID: "ship", Kind: order.KindShipping, Price: d("5")},
		},
	}))

	mods := s.Modifications()
	require.NoError(t, mods.Create(ctx, &coupon.Modification{
		ID: "cpn", CouponID: "c1", OrderID: "o1", Price: d("-4.50"),
	}))
	require.ErrorIs(t, mods.Create(ctx, &coupon.Modification{ID: "x", OrderID: "missing"}), order.ErrNotFound)

	o, err := s.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	require.Len(t, o.Modifications, 2)
	assert.Equal(t, "o1", o.Modifications[0].OrderID)
	assert.Equal(t, order.KindCoupon, o.Modifications[1].Kind)
	assert.True(t, d("40.50").Equal(o.Total()))

	require.NoError(t, s.Orders().SetCouponCode(ctx, "o1", "SAVE10"))
	o, err = s.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "SAVE10", o.CouponCode)

	_, err = s.Orders().Get(ctx, "missing")
	require.ErrorIs(t, err, order.ErrNotFound)
	require.ErrorIs(t, s.Orders().SetCouponCode(ctx, "missing", "X"), order.ErrNotFound)
}

func TestCountPaidUses(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	orders := []order.Order{
		{ID: "paid-1", CustomerID: "alice", PaymentStatus: order.PaymentPaid},
		{ID: "paid-2", CustomerID: "alice", PaymentStatus: order.PaymentPaid},
		{ID: "pending", CustomerID: "alice", PaymentStatus: order.PaymentPending},
		{ID: "bob-paid", CustomerID: "bob", PaymentStatus: order.PaymentPaid},
	}
	for _, o := range orders {
		require.NoError(t, s.AddOrder(o))
		require.NoError(t, s.Modifications().Create(ctx, &coupon.Modification{
			ID: "m-" + o.ID, CouponID: "c1", OrderID: o.ID, Price: d("-1"),
		}))
	}
	require.NoError(t, s.Modifications().Create(ctx, &coupon.Modification{
		ID: "other-coupon", CouponID: "c2", OrderID: "paid-1", Price: d("-1"),
	}))

	n, err := s.Modifications().CountPaidUses(ctx, "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.SetPaymentStatus("pending", order.PaymentPaid))
	n, err = s.Modifications().CountPaidUses(ctx, "c1", "alice")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.Modifications().CountPaidUses(ctx, "c1", "carol")
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.Coupons().Create(ctx, &coupon.Coupon{ID: "c1"}))
	require.NoError(t, s.Coupons().Delete(ctx, "c1"))
	n, err = s.Modifications().CountPaidUses(ctx, "c1", "alice")
	require.NoError(t, err)
	assert.Zero(t, n, "deleted coupon no longer referenced")
}

func TestAPIKeyRepository(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.AddAPIKey(auth.APIKeyInfo{ID: "k1", KeyHash: "abc", Scopes: []string{auth.ScopeEditCoupons}}))

	k, err := s.APIKeys().FindByHash(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, "k1", k.ID)

	_, err = s.APIKeys().FindByHash(ctx, "nope")
	require.ErrorIs(t, err, auth.ErrKeyNotFound)
}

func TestConcurrentModificationCreate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.AddOrder(order.Order{ID: "o1"}))

	const workers = 16
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Modifications().Create(ctx, &coupon.Modification{
				ID: string(rune('a' + i)), OrderID: "o1", CouponID: "c1", Price: d("-1"),
			})
		}()
	}
	wg.Wait()

	o, err := s.Orders().Get(ctx, "o1")
	require.NoError(t, err)
	assert.Len(t, o.Modifications, workers)
}
