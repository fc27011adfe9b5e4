package main

import (
	"context"
	"encoding/csv"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
)

const (
	numColumns  = 7
	expiryDay   = "2006-01-02"
	maxCodeLen  = 64
	maxTitleLen = 255
)

var hundred = decimal.NewFromInt(100)

// parseFiles parses every file concurrently and returns the rows in file
// order.
func parseFiles(ctx context.Context, files []string) ([]coupon.Coupon, error) {
	results := make([][]coupon.Coupon, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			rows, err := parseFile(ctx, f)
			if err != nil {
				return err
			}
			slog.Info("file parsed", slog.String("file", f), slog.Int("rows", len(rows)))
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []coupon.Coupon
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

func parseFile(ctx context.Context, path string) ([]coupon.Coupon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	rows, err := parseCSV(ctx, gz)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return rows, nil
}

// parseCSV reads coupon rows, skipping a leading header and blank lines.
func parseCSV(ctx context.Context, r io.Reader) ([]coupon.Coupon, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numColumns
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	var rows []coupon.Coupon
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		if line == 1 && strings.EqualFold(rec[0], "code") {
			continue
		}
		c, err := parseRecord(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		rows = append(rows, c)
	}
}

func parseRecord(rec []string) (coupon.Coupon, error) {
	c := coupon.Coupon{
		Code:  strings.TrimSpace(rec[0]),
		Title: strings.TrimSpace(rec[1]),
		Type:  coupon.DiscountType(strings.TrimSpace(rec[2])),
	}
	switch {
	case c.Code == "":
		return c, errors.New("code is required")
	case len(c.Code) > maxCodeLen:
		return c, errors.Errorf("code longer than %d characters", maxCodeLen)
	case c.Title == "":
		return c, errors.New("title is required")
	case len(c.Title) > maxTitleLen:
		return c, errors.Errorf("title longer than %d characters", maxTitleLen)
	case !c.Type.Valid():
		return c, errors.Errorf("unknown discount type %q", rec[2])
	}

	var err error
	if c.Discount, err = parseAmount(rec[3]); err != nil {
		return c, errors.Wrap(err, "discount")
	}
	if c.Type == coupon.DiscountPercentage && c.Discount.GreaterThan(hundred) {
		return c, errors.New("discount: percentage above 100")
	}
	if c.MinimumSpend, err = parseAmount(rec[4]); err != nil {
		return c, errors.Wrap(err, "minimum_spend")
	}

	uses := strings.TrimSpace(rec[5])
	if uses != "" {
		if c.MaxCustomerUses, err = strconv.Atoi(uses); err != nil || c.MaxCustomerUses < 0 {
			return c, errors.Errorf("max_customer_uses: invalid value %q", rec[5])
		}
	}

	expiry, err := time.Parse(expiryDay, strings.TrimSpace(rec[6]))
	if err != nil {
		return c, errors.Wrap(err, "expiry")
	}
	c.Expiry = coupon.DateOf(expiry)
	return c, nil
}

// parseAmount parses a non-negative decimal; blank means zero.
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.Errorf("negative value %s", s)
	}
	return d.Round(2), nil
}
