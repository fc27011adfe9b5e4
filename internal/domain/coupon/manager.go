package coupon

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/shop-coupons/internal/domain/shop"
)

// Input is the editable part of a coupon as submitted by an administrator.
type Input struct {
	Title           string          `validate:"required,max=255"`
	Code            string          `validate:"required,max=64"`
	Type            DiscountType    `validate:"required,oneof=Percentage Flat"`
	Discount        decimal.Decimal `validate:"gte=0"`
	MinimumSpend    decimal.Decimal `validate:"gte=0"`
	MaxCustomerUses int             `validate:"gte=0"`
	Expiry          time.Time       `validate:"required"`
}

// ValidationError lists the rejected fields of an Input with a reason each.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "invalid coupon: " + strings.Join(parts, "; ")
}

// Manager implements administrative coupon maintenance.
type Manager struct {
	coupons  Repository
	shops    shop.Repository
	validate *validator.Validate

	now   func() time.Time
	newID func() string
}

// NewManager creates a Manager.
func NewManager(coupons Repository, shops shop.Repository) *Manager {
	v := validator.New()
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterStructValidation(validateInput, Input{})
	return &Manager{
		coupons:  coupons,
		shops:    shops,
		validate: v,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// List returns the current shop's coupons in creation order.
func (m *Manager) List(ctx context.Context) ([]Coupon, error) {
	cfg, err := m.shops.Current(ctx)
	if err != nil {
		return nil, err
	}
	return m.coupons.List(ctx, Filter{ShopConfigID: cfg.ID})
}

// Get returns the coupon with the given ID.
func (m *Manager) Get(ctx context.Context, id string) (*Coupon, error) {
	return m.coupons.Get(ctx, id)
}

// Create validates in and stores it as a new coupon of the current shop.
func (m *Manager) Create(ctx context.Context, in Input) (*Coupon, error) {
	in = normalize(in)
	if err := m.check(in); err != nil {
		return nil, err
	}
	cfg, err := m.shops.Current(ctx)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC()
	c := &Coupon{
		ID:           m.newID(),
		ShopConfigID: cfg.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	assign(c, in)
	if err := m.coupons.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create coupon: %w", err)
	}
	return c, nil
}

// Update replaces the editable fields of an existing coupon.
func (m *Manager) Update(ctx context.Context, id string, in Input) (*Coupon, error) {
	in = normalize(in)
	if err := m.check(in); err != nil {
		return nil, err
	}
	c, err := m.coupons.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	assign(c, in)
	c.UpdatedAt = m.now().UTC()
	if err := m.coupons.Update(ctx, c); err != nil {
		return nil, fmt.Errorf("update coupon: %w", err)
	}
	return c, nil
}

// Delete removes a coupon. Modifications already recorded keep their price
// and description.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.coupons.Delete(ctx, id)
}

func (m *Manager) check(in Input) error {
	err := m.validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate coupon")
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return &ValidationError{Fields: fields}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "gte":
		return "must not be negative"
	case "percentage":
		return "must not exceed 100 for percentage coupons"
	default:
		return "is invalid"
	}
}

func validateInput(sl validator.StructLevel) {
	in := sl.Current().Interface().(Input)
	if in.Type == DiscountPercentage && in.Discount.GreaterThan(hundred) {
		sl.ReportError(in.Discount, "Discount", "Discount", "percentage", "")
	}
}

func decimalValue(v reflect.Value) any {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		f, _ := d.Float64()
		return f
	}
	return nil
}

func normalize(in Input) Input {
	in.Title = strings.TrimSpace(in.Title)
	in.Code = strings.TrimSpace(in.Code)
	if !in.Expiry.IsZero() {
		in.Expiry = DateOf(in.Expiry)
	}
	return in
}

func assign(c *Coupon, in Input) {
	c.Title = in.Title
	c.Code = in.Code
	c.Type = in.Type
	c.Discount = in.Discount.Round(2)
	c.MinimumSpend = in.MinimumSpend.Round(2)
	c.MaxCustomerUses = in.MaxCustomerUses
	c.Expiry = in.Expiry
}
