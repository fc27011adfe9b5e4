// Package memory provides in-process implementations of the domain
// repositories. It backs the server when no database is configured and
// doubles as the storage layer in service tests.
package memory

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/samber/lo"

	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
)

// Store holds every table. Repository views share it so cross-table queries
// like paid-use counting see a consistent picture.
type Store struct {
	shops   *table[shop.Config]
	coupons *table[coupon.Coupon]
	orders  *table[order.Order]
	mods    *table[order.Modification]
	keys    *table[auth.APIKeyInfo]
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		shops:   newTable[shop.Config](),
		coupons: newTable[coupon.Coupon](),
		orders:  newTable[order.Order](),
		mods:    newTable[order.Modification](),
		keys:    newTable[auth.APIKeyInfo](),
	}
}

// AddShop stores a shop configuration.
func (s *Store) AddShop(cfg shop.Config) error {
	return wrapInsert(s.shops.insert(cfg.ID, cfg), "shop", cfg.ID)
}

// AddOrder stores an order together with its modifications.
func (s *Store) AddOrder(o order.Order) error {
	mods := o.Modifications
	o.Modifications = nil
	if err := s.orders.insert(o.ID, o); err != nil {
		return wrapInsert(err, "order", o.ID)
	}
	for _, m := range mods {
		m.OrderID = o.ID
		if err := s.mods.insert(m.ID, m); err != nil {
			return wrapInsert(err, "modification", m.ID)
		}
	}
	return nil
}

// AddCoupon stores a coupon.
func (s *Store) AddCoupon(c coupon.Coupon) error {
	return wrapInsert(s.coupons.insert(c.ID, c), "coupon", c.ID)
}

// AddAPIKey stores an API key.
func (s *Store) AddAPIKey(k auth.APIKeyInfo) error {
	return wrapInsert(s.keys.insert(k.KeyHash, k), "api key", k.ID)
}

// SetPaymentStatus changes the payment state of a stored order.
func (s *Store) SetPaymentStatus(orderID string, status order.PaymentStatus) error {
	if !s.orders.update(orderID, func(o *order.Order) { o.PaymentStatus = status }) {
		return order.ErrNotFound
	}
	return nil
}

// Shops returns the shop configuration repository.
func (s *Store) Shops() *ShopRepository { return &ShopRepository{s: s} }

// Coupons returns the coupon repository.
func (s *Store) Coupons() *CouponRepository { return &CouponRepository{s: s} }

// Modifications returns the coupon modification repository.
func (s *Store) Modifications() *ModificationRepository { return &ModificationRepository{s: s} }

// Orders returns the order repository.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// APIKeys returns the API key repository.
func (s *Store) APIKeys() *APIKeyRepository { return &APIKeyRepository{s: s} }

// Ping always succeeds; it lets the store stand in for a database in
// readiness checks.
func (s *Store) Ping(context.Context) error { return nil }

func wrapInsert(err error, kind, id string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "insert %s %q", kind, id)
}

var (
	_ shop.Repository               = (*ShopRepository)(nil)
	_ coupon.Repository             = (*CouponRepository)(nil)
	_ coupon.ModificationRepository = (*ModificationRepository)(nil)
	_ order.Repository              = (*OrderRepository)(nil)
	_ auth.Repository               = (*APIKeyRepository)(nil)
)

// ShopRepository serves the first stored shop configuration.
type ShopRepository struct{ s *Store }

func (r *ShopRepository) Current(context.Context) (*shop.Config, error) {
	var found *shop.Config
	r.s.shops.each(func(cfg shop.Config) bool {
		found = &cfg
		return false
	})
	if found == nil {
		return nil, shop.ErrNotConfigured
	}
	return found, nil
}

// CouponRepository stores coupons in insertion order.
type CouponRepository struct{ s *Store }

func (r *CouponRepository) FindFirst(_ context.Context, f coupon.Filter) (*coupon.Coupon, error) {
	var found *coupon.Coupon
	r.s.coupons.each(func(c coupon.Coupon) bool {
		if f.Matches(&c) {
			found = &c
			return false
		}
		return true
	})
	if found == nil {
		return nil, coupon.ErrNotFound
	}
	return found, nil
}

func (r *CouponRepository) List(_ context.Context, f coupon.Filter) ([]coupon.Coupon, error) {
	return r.s.coupons.filter(func(c coupon.Coupon) bool { return f.Matches(&c) }), nil
}

func (r *CouponRepository) Get(_ context.Context, id string) (*coupon.Coupon, error) {
	c, ok := r.s.coupons.get(id)
	if !ok {
		return nil, coupon.ErrCouponMissing
	}
	return &c, nil
}

func (r *CouponRepository) Create(_ context.Context, c *coupon.Coupon) error {
	return wrapInsert(r.s.coupons.insert(c.ID, *c), "coupon", c.ID)
}

func (r *CouponRepository) Update(_ context.Context, c *coupon.Coupon) error {
	if !r.s.coupons.update(c.ID, func(stored *coupon.Coupon) { *stored = *c }) {
		return coupon.ErrCouponMissing
	}
	return nil
}

// Delete removes the coupon and detaches it from recorded modifications,
// which keep their price and description.
func (r *CouponRepository) Delete(_ context.Context, id string) error {
	if !r.s.coupons.remove(id) {
		return coupon.ErrCouponMissing
	}
	r.s.mods.updateAll(func(m *order.Modification) {
		if m.CouponID == id {
			m.CouponID = ""
		}
	})
	return nil
}

// ModificationRepository records coupon modifications on orders.
type ModificationRepository struct{ s *Store }

func (r *ModificationRepository) Create(_ context.Context, m *coupon.Modification) error {
	if _, ok := r.s.orders.get(m.OrderID); !ok {
		return order.ErrNotFound
	}
	return wrapInsert(r.s.mods.insert(m.ID, m.OrderModification()), "modification", m.ID)
}

func (r *ModificationRepository) CountPaidUses(_ context.Context, couponID, customerID string) (int, error) {
	paid := lo.SliceToMap(
		r.s.orders.filter(func(o order.Order) bool {
			return o.CustomerID == customerID && o.PaymentStatus == order.PaymentPaid
		}),
		func(o order.Order) (string, struct{}) { return o.ID, struct{}{} },
	)
	if len(paid) == 0 {
		return 0, nil
	}
	uses := r.s.mods.filter(func(m order.Modification) bool {
		_, ok := paid[m.OrderID]
		return ok && m.Kind == order.KindCoupon && m.CouponID == couponID
	})
	return len(uses), nil
}

// OrderRepository reads orders with their modifications.
type OrderRepository struct{ s *Store }

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Order, error) {
	o, ok := r.s.orders.get(id)
	if !ok {
		return nil, order.ErrNotFound
	}
	o.Modifications = r.s.mods.filter(func(m order.Modification) bool { return m.OrderID == id })
	return &o, nil
}

func (r *OrderRepository) SetCouponCode(_ context.Context, id, code string) error {
	if !r.s.orders.update(id, func(o *order.Order) { o.CouponCode = code }) {
		return order.ErrNotFound
	}
	return nil
}

// APIKeyRepository looks up API keys by hash.
type APIKeyRepository struct{ s *Store }

func (r *APIKeyRepository) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	k, ok := r.s.keys.get(hash)
	if !ok {
		return nil, auth.ErrKeyNotFound
	}
	return &k, nil
}
