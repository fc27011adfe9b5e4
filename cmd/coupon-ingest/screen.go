package main

import (
	"context"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
)

const (
	minBloomCapacity = 10_000
	bloomFPR         = 0.001
)

// screener drops rows whose code is already stored or repeated in the
// input. The bloom filter holds the stored codes; a hit is confirmed with
// exists since the filter admits false positives.
type screener struct {
	filter *bloom.BloomFilter
	exists func(ctx context.Context, code string) (bool, error)
	seen   map[string]struct{}

	falsePositives int
}

func newScreener(stored []string, exists func(ctx context.Context, code string) (bool, error)) *screener {
	filter := bloom.NewWithEstimates(uint(max(len(stored), minBloomCapacity)), bloomFPR)
	for _, code := range stored {
		filter.AddString(code)
	}
	return &screener{
		filter: filter,
		exists: exists,
		seen:   make(map[string]struct{}),
	}
}

// screen returns the rows with new codes, keeping input order.
func (s *screener) screen(ctx context.Context, rows []coupon.Coupon) ([]coupon.Coupon, error) {
	fresh := make([]coupon.Coupon, 0, len(rows))
	for _, c := range rows {
		ok, err := s.keep(ctx, c.Code)
		if err != nil {
			return nil, err
		}
		if ok {
			fresh = append(fresh, c)
		}
	}
	return fresh, nil
}

func (s *screener) keep(ctx context.Context, code string) (bool, error) {
	if _, dup := s.seen[code]; dup {
		return false, nil
	}
	if s.filter.TestString(code) {
		stored, err := s.exists(ctx, code)
		if err != nil {
			return false, errors.Wrapf(err, "check code %s", code)
		}
		if stored {
			return false, nil
		}
		s.falsePositives++
	}
	s.seen[code] = struct{}{}
	return true, nil
}
