// Package shop holds the shop-wide configuration that owns coupons and
// provides the base currency for money values.
package shop

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotConfigured is returned when no shop configuration exists yet.
var ErrNotConfigured = errors.New("shop is not configured")

// Config is the shop-wide configuration aggregate.
type Config struct {
	ID                 string
	BaseCurrency       string
	BaseCurrencySymbol string
}

// Repository provides access to the current shop configuration.
type Repository interface {
	// Current returns the first (and in practice only) configuration.
	Current(ctx context.Context) (*Config, error)
}
