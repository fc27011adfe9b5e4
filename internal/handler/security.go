package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/shop-coupons/internal/domain/auth"
	"github.com/xenking/shop-coupons/pkg/httpmiddleware"
)

// APIKeyHeader carries the raw API key on admin requests.
const APIKeyHeader = "api_key"

// Authenticate resolves the API key presented in the api_key header and
// stores it in the request context. Unknown keys get 401.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(APIKeyHeader)
		if raw == "" {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "api key required")
			return
		}

		hash := auth.HashKey(h.pepper, raw)
		info, err := h.apikeys.FindByHash(r.Context(), hash)
		if err != nil {
			if !errors.Is(err, auth.ErrKeyNotFound) {
				zctx.From(r.Context()).Error("API key lookup failed", zap.Error(err))
				httpmiddleware.WriteError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		// The repository matched on the hash already; compare again in
		// constant time in case it returned a different row.
		if subtle.ConstantTimeCompare([]byte(hash), []byte(info.KeyHash)) != 1 {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := zctx.With(auth.WithKey(r.Context(), info), zap.String("api_key_id", info.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireScope rejects authenticated requests whose key lacks scope with
// 403. It must run after Authenticate.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := auth.KeyFrom(r.Context())
			if !ok {
				httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			if !key.HasScope(scope) {
				httpmiddleware.WriteError(w, http.StatusForbidden, "missing scope "+scope)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
