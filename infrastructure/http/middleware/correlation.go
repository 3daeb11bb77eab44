package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/fixora/tollgate/infrastructure/service/logger"
)

const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDMiddleware ensures every request/response carries a correlation ID
// and puts it on the request context for the logger.
func CorrelationIDMiddleware(header string) func(http.Handler) http.Handler {
	if header == "" {
		header = CorrelationIDHeader
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := r.Header.Get(header)
			if cid == "" || len(cid) > 128 {
				cid = uuid.NewString()
			}
			w.Header().Set(header, cid)
			ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, cid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
