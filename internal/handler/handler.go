// Package handler exposes the checkout and coupon administration use-cases
// over HTTP.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/internal/domain/checkout"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/pkg/httpmiddleware"
)

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// APIKeyPepper is the HMAC key used to hash presented API keys.
	APIKeyPepper string
	// CouponLimiter throttles coupon check/apply calls per order. Nil
	// disables per-order limiting.
	CouponLimiter *httpmiddleware.Limiter
}

// Handler serves the checkout and admin JSON endpoints.
type Handler struct {
	checkout *checkout.Service
	coupons  *coupon.Manager
	apikeys  auth.Repository
	pepper   []byte
	limiter  *httpmiddleware.Limiter
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	checkoutService *checkout.Service,
	coupons *coupon.Manager,
	apikeys auth.Repository,
) *Handler {
	return &Handler{
		checkout: checkoutService,
		coupons:  coupons,
		apikeys:  apikeys,
		pepper:   []byte(cfg.APIKeyPepper),
		limiter:  cfg.CouponLimiter,
	}
}

// Mount registers the API routes under /api on r.
func (h *Handler) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/checkout/orders/{orderID}", func(r chi.Router) {
			r.Get("/", h.OrderSummary)
			r.Group(func(r chi.Router) {
				if h.limiter != nil {
					r.Use(h.limiter.Middleware(orderKey))
				}
				r.Post("/coupon/check", h.CheckCoupon)
				r.Post("/coupon", h.ApplyCoupon)
			})
		})

		r.Route("/admin/coupons", func(r chi.Router) {
			r.Use(h.Authenticate)
			r.Get("/", h.ListCoupons)
			r.Get("/{couponID}", h.GetCoupon)
			r.Group(func(r chi.Router) {
				r.Use(RequireScope(auth.ScopeEditCoupons))
				r.Post("/", h.CreateCoupon)
				r.Put("/{couponID}", h.UpdateCoupon)
				r.Delete("/{couponID}", h.DeleteCoupon)
			})
		})
	})
}

// Router returns a chi router with the API routes mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httpmiddleware.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	h.Mount(r)
	return r
}

func orderKey(r *http.Request) string {
	return chi.URLParam(r, "orderID")
}
