package ops

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	pkgerrors "github.com/printhub/vendor-ledger/pkg/errors"
	"github.com/printhub/vendor-ledger/pkg/logger"
)

const requestIDHeader = "X-Request-Id"

type errorResponse struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

// RequestID propagates or mints X-Request-Id and attaches it to the log context.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)
			next.ServeHTTP(w, r.WithContext(logg.WithRequestID(r.Context(), reqID)))
		})
	}
}

func Recoverer(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("panic: %v", rec)
					ctx := logg.WithField(r.Context(), "path", r.URL.Path)
					logg.Error(ctx, "ops.panic_recovered", err)
					meta := pkgerrors.MetadataFor(pkgerrors.CodeInternal)
					writeJSON(w, meta.HTTPStatus, errorResponse{Code: pkgerrors.CodeInternal, Message: meta.PublicMessage})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
