package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-coupons/internal/domain/checkout"
	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
)

// Messages shown by the checkout form's coupon check.
const (
	msgEnterCode   = "Please enter a coupon code."
	msgInvalidCode = "Coupon is invalid or expired."
	msgAdded       = "Coupon added."
	msgCheckFailed = "Coupon could not be checked, please try again."
)

// CheckCoupon answers the checkout form's "check coupon" action with
// {"errorMessage": ...}. Nothing is recorded.
func (h *Handler) CheckCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := readCouponCode(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	_, err = h.checkout.CheckCoupon(r.Context(), chi.URLParam(r, "orderID"), code)
	switch {
	case err == nil:
		writeCheckMessage(w, http.StatusOK, msgAdded)
	case errors.Is(err, coupon.ErrInvalidInput):
		writeCheckMessage(w, http.StatusOK, msgEnterCode)
	case coupon.IsRejection(err):
		writeCheckMessage(w, http.StatusOK, msgInvalidCode)
	case errors.Is(err, order.ErrNotFound):
		writeDomainError(w, r, err)
	default:
		zctx.From(r.Context()).Error("Coupon check failed", zap.Error(err))
		writeCheckMessage(w, http.StatusInternalServerError, msgCheckFailed)
	}
}

func writeCheckMessage(w http.ResponseWriter, status int, msg string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("errorMessage")
	e.Str(msg)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// ApplyCoupon records the coupon modification on the order and returns it
// together with the updated order totals.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	code, err := readCouponCode(w, r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	orderID := chi.URLParam(r, "orderID")
	res, err := h.checkout.ApplyCoupon(r.Context(), orderID, code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	sum, err := h.checkout.Summary(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("modification")
	encodeModification(&e, res.Modification, sum.Symbol)
	e.FieldStart("order")
	encodeSummary(&e, sum)
	e.ObjEnd()
	writeJSON(w, http.StatusCreated, &e)
}

// OrderSummary returns the order totals including any coupon discount.
func (h *Handler) OrderSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.checkout.Summary(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	var e jx.Encoder
	encodeSummary(&e, sum)
	writeJSON(w, http.StatusOK, &e)
}

func encodeSummary(e *jx.Encoder, s *checkout.Summary) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(s.Order.ID)
	e.FieldStart("couponCode")
	e.Str(s.Order.CouponCode)
	e.FieldStart("subtotal")
	e.Str(s.Order.Subtotal.StringFixed(2))
	e.FieldStart("referenceTotal")
	e.Str(s.ReferenceTotal.StringFixed(2))
	e.FieldStart("couponAmount")
	e.Str(s.CouponAmount.StringFixed(2))
	e.FieldStart("discountPercent")
	if s.DiscountPercent != nil {
		e.Str(s.DiscountPercent.String())
	} else {
		e.Null()
	}
	e.FieldStart("total")
	e.Str(s.Total.StringFixed(2))
	e.FieldStart("currency")
	e.Str(s.Currency)
	e.FieldStart("symbol")
	e.Str(s.Symbol)
	e.FieldStart("modifications")
	encodeOrderLines(e, s.Order.Modifications)
	e.ObjEnd()
}
