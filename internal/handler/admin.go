package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// ListCoupons returns the shop's coupons, expired ones included.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	list, err := h.coupons.List(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var e jx.Encoder
	e.ArrStart()
	for i := range list {
		encodeCoupon(&e, &list[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// GetCoupon returns a single coupon.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Get(r.Context(), chi.URLParam(r, "couponID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeCoupon(&e, c)
	writeJSON(w, http.StatusOK, &e)
}

// CreateCoupon adds a coupon to the current shop.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCouponInput(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := h.coupons.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Coupon created",
		zap.String("coupon_id", c.ID),
		zap.String("code", c.Code),
	)
	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+c.ID)
	var e jx.Encoder
	encodeCoupon(&e, c)
	writeJSON(w, http.StatusCreated, &e)
}

// UpdateCoupon replaces the editable fields of a coupon.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCouponInput(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	c, err := h.coupons.Update(r.Context(), chi.URLParam(r, "couponID"), in)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Coupon updated", zap.String("coupon_id", c.ID))
	var e jx.Encoder
	encodeCoupon(&e, c)
	writeJSON(w, http.StatusOK, &e)
}

// DeleteCoupon removes a coupon. Recorded modifications are kept.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "couponID")
	if err := h.coupons.Delete(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	zctx.From(r.Context()).Info("Coupon deleted", zap.String("coupon_id", id))
	w.WriteHeader(http.StatusNoContent)
}
