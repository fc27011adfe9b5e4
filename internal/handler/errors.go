package handler

import (
	"net/http"
	"sort"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-coupons/internal/domain/coupon"
	"github.com/xenking/shop-coupons/internal/domain/order"
	"github.com/xenking/shop-coupons/internal/domain/shop"
	"github.com/xenking/shop-coupons/pkg/httpmiddleware"
)

// writeDomainError maps domain errors to API error responses. Anything
// unrecognized is logged and answered with 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *coupon.ValidationError
	switch {
	case errors.As(err, &verr):
		writeValidationError(w, verr)
	case errors.Is(err, errBadBody):
		httpmiddleware.WriteError(w, http.StatusBadRequest, err.Error())
	case coupon.IsRejection(err):
		httpmiddleware.WriteError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrNotFound), errors.Is(err, coupon.ErrCouponMissing):
		httpmiddleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, shop.ErrNotConfigured):
		httpmiddleware.WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeValidationError(w http.ResponseWriter, verr *coupon.ValidationError) {
	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(http.StatusUnprocessableEntity)
	e.FieldStart("message")
	e.Str(verr.Error())
	e.FieldStart("fields")
	e.ObjStart()
	for _, name := range names {
		e.FieldStart(name)
		e.Str(verr.Fields[name])
	}
	e.ObjEnd()
	e.ObjEnd()
	writeJSON(w, http.StatusUnprocessableEntity, &e)
}
