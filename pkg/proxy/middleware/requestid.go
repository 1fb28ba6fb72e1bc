// Package middleware contains the HTTP middleware chain wrapped around
// the proxy router: request IDs, access logging and panic recovery.
package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"streamcdn/edge/pkg/telemetry/logging"
)

// RequestIDHeader is the HTTP header for request ID.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a unique ID, honoring one the client
// already sent. The ID goes into the context (where the logger picks it
// up) and into the response headers for correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), requestID)
		w.Header().Set(RequestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID extracts the request ID from the context. Returns the
// empty string if not set.
func GetRequestID(ctx context.Context) string {
	return logging.GetRequestID(ctx)
}
