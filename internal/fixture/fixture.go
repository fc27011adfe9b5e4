// Package fixture decodes the JSON demo data set shared by seed-db and the
// in-memory storage mode.
package fixture

import (
	"bytes"
	"encoding/json"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
	"github.com/xenking/shop-coupons/internal/storage/memory"
)

const dateLayout = "2006-01-02"

// Set is a decoded fixture file.
type Set struct {
	Shop    shop.Config
	Coupons []coupon.Coupon
	Orders  []order.Order
}

type fileJSON struct {
	Shop struct {
		ID                 string `json:"id"`
		BaseCurrency       string `json:"baseCurrency"`
		BaseCurrencySymbol string `json:"baseCurrencySymbol"`
	} `json:"shop"`
	Coupons []couponJSON `json:"coupons"`
	Orders  []orderJSON  `json:"orders"`
}

type couponJSON struct {
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Code            string          `json:"code"`
	Type            string          `json:"type"`
	Discount        decimal.Decimal `json:"discount"`
	MinimumSpend    decimal.Decimal `json:"minimumSpend"`
	MaxCustomerUses int             `json:"maxCustomerUses"`
	Expiry          string          `json:"expiry"`
}

type orderJSON struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customerId"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	CouponCode    string          `json:"couponCode"`
	PaymentStatus string          `json:"paymentStatus"`
	Modifications []struct {
		ID          string          `json:"id"`
		Kind        string          `json:"kind"`
		Price       decimal.Decimal `json:"price"`
		Currency    string          `json:"currency"`
		Description string          `json:"description"`
		CouponID    string          `json:"couponId"`
	} `json:"modifications"`
}

// Parse decodes a fixture document. now stamps creation times, offset by a
// second per row so insertion order survives a created_at sort.
func Parse(r io.Reader, now time.Time) (*Set, error) {
	var f fileJSON
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, errors.Wrap(err, "decode fixtures")
	}
	if f.Shop.ID == "" {
		return nil, errors.New("fixtures: shop id is required")
	}

	set := &Set{Shop: shop.Config{
		ID:                 f.Shop.ID,
		BaseCurrency:       f.Shop.BaseCurrency,
		BaseCurrencySymbol: f.Shop.BaseCurrencySymbol,
	}}

	stamp := now.UTC()
	next := func() time.Time {
		stamp = stamp.Add(time.Second)
		return stamp
	}

	for _, c := range f.Coupons {
		typ := coupon.DiscountType(c.Type)
		if !typ.Valid() {
			return nil, errors.Errorf("coupon %s: unknown type %q", c.ID, c.Type)
		}
		expiry, err := time.Parse(dateLayout, c.Expiry)
		if err != nil {
			return nil, errors.Wrapf(err, "coupon %s: parse expiry", c.ID)
		}
		created := next()
		set.Coupons = append(set.Coupons, coupon.Coupon{
			ID:              c.ID,
			ShopConfigID:    set.Shop.ID,
			Title:           c.Title,
			Code:            c.Code,
			Type:            typ,
			Discount:        c.Discount,
			MinimumSpend:    c.MinimumSpend,
			MaxCustomerUses: c.MaxCustomerUses,
			Expiry:          expiry,
			CreatedAt:       created,
			UpdatedAt:       created,
		})
	}

	for _, o := range f.Orders {
		status := order.PaymentStatus(o.PaymentStatus)
		if status == "" {
			status = order.PaymentPending
		}
		ord := order.Order{
			ID:            o.ID,
			CustomerID:    o.CustomerID,
			Subtotal:      o.Subtotal,
			CouponCode:    o.CouponCode,
			PaymentStatus: status,
			CreatedAt:     next(),
		}
		for _, m := range o.Modifications {
			ord.Modifications = append(ord.Modifications, order.Modification{
				ID:          m.ID,
				OrderID:     o.ID,
				Kind:        order.ModificationKind(m.Kind),
				Price:       m.Price,
				Currency:    m.Currency,
				Description: m.Description,
				CouponID:    m.CouponID,
				CreatedAt:   next(),
			})
		}
		set.Orders = append(set.Orders, ord)
	}

	return set, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(data []byte, now time.Time) (*Set, error) {
	return Parse(bytes.NewReader(data), now)
}

// Load fills an in-memory store with the set.
func (s *Set) Load(store *memory.Store) error {
	if err := store.AddShop(s.Shop); err != nil {
		return err
	}
	for _, c := range s.Coupons {
		if err := store.AddCoupon(c); err != nil {
			return err
		}
	}
	for _, o := range s.Orders {
		if err := store.AddOrder(o); err != nil {
			return err
		}
	}
	return nil
}
