package main

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
)

func rowsOf(codes ...string) []coupon.Coupon {
	rows := make([]coupon.Coupon, len(codes))
	for i, c := range codes {
		rows[i] = coupon.Coupon{Code: c, Title: "row " + c}
	}
	return rows
}

func TestScreener(t *testing.T) {
	stored := map[string]bool{"OLD1": true, "OLD2": true}
	var lookups []string
	sc := newScreener([]string{"OLD1", "OLD2"}, func(_ context.Context, code string) (bool, error) {
		lookups = append(lookups, code)
		return stored[code], nil
	})

	fresh, err := sc.screen(context.Background(), rowsOf("NEW1", "OLD1", "NEW2", "NEW1", "OLD2"))
	require.NoError(t, err)

	codes := make([]string, 0, len(fresh))
	for _, r := range fresh {
		codes = append(codes, r.Code)
	}
	assert.Equal(t, []string{"NEW1", "NEW2"}, codes)
	assert.Equal(t, "row NEW1", fresh[0].Title, "first occurrence wins")
	assert.Contains(t, lookups, "OLD1")
	assert.Contains(t, lookups, "OLD2")
}

func TestScreenerFalsePositive(t *testing.T) {
	// A code present in the filter but not in storage is a false positive.
	sc := newScreener([]string{"GONE"}, func(context.Context, string) (bool, error) {
		return false, nil
	})
	fresh, err := sc.screen(context.Background(), rowsOf("GONE"))
	require.NoError(t, err)
	assert.Len(t, fresh, 1)
	assert.Equal(t, 1, sc.falsePositives)
}

func TestScreenerLookupError(t *testing.T) {
	boom := errors.New("boom")
	sc := newScreener([]string{"X"}, func(context.Context, string) (bool, error) {
		return false, boom
	})
	_, err := sc.screen(context.Background(), rowsOf("X"))
	require.ErrorIs(t, err, boom)
}
