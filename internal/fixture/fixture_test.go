package fixture

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-coupons/db"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/storage/memory"
)

var now = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

func TestParseEmbedded(t *testing.T) {
	set, err := ParseBytes(db.Fixtures, now)
	require.NoError(t, err)

	assert.Equal(t, "USD", set.Shop.BaseCurrency)
	require.NotEmpty(t, set.Coupons)
	require.NotEmpty(t, set.Orders)

	for i := 1; i < len(set.Coupons); i++ {
		assert.True(t, set.Coupons[i-1].CreatedAt.Before(set.Coupons[i].CreatedAt))
	}
	for _, c := range set.Coupons {
		assert.Equal(t, set.Shop.ID, c.ShopConfigID)
		assert.Equal(t, coupon.DateOf(c.Expiry), c.Expiry)
	}
}

func TestLoadIntoMemory(t *testing.T) {
	set, err := ParseBytes(db.Fixtures, now)
	require.NoError(t, err)

	store := memory.NewStore()
	require.NoError(t, set.Load(store))

	ctx := context.Background()
	o, err := store.Orders().Get(ctx, "order-alice-paid-1")
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)

	c, err := store.Coupons().FindFirst(ctx, coupon.Filter{Code: "WELCOME25"})
	require.NoError(t, err)
	uses, err := store.Modifications().CountPaidUses(ctx, c.ID, "customer-alice")
	require.NoError(t, err)
	assert.Equal(t, 1, uses)

	require.Error(t, set.Load(store), "loading twice collides on IDs")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "not json", doc: "{", want: "decode fixtures"},
		{name: "missing shop", doc: `{"shop":{}}`, want: "shop id is required"},
		{
			name: "bad type",
			doc:  `{"shop":{"id":"s"},"coupons":[{"id":"c","type":"BOGO","discount":"1","minimumSpend":"0","expiry":"2030-01-01"}]}`,
			want: "unknown type",
		},
		{
			name: "bad expiry",
			doc:  `{"shop":{"id":"s"},"coupons":[{"id":"c","type":"Flat","discount":"1","minimumSpend":"0","expiry":"31/12/2030"}]}`,
			want: "parse expiry",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.doc), now)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
