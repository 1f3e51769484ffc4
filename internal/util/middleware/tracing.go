package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/api/key"
	"go.opentelemetry.io/otel/api/trace"

	"github.com/imageflow/cascade/internal/util/tracing"
)

// Trace wraps the frontend's mux router with a root span per request,
// named after the request path; providerName is a fixed label attached to
// the span's start event.
func Trace(providerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, span := tracing.PrepareRequest(r, tracing.Name(), r.URL.Path)
			defer func() {
				span.End(trace.WithEndTime(time.Now()))
			}()
			span.AddEventWithTimestamp(
				r.Context(),
				time.Now(),
				"Starting Parent Span",
				key.String("providerName", providerName),
				key.String("path", r.URL.Path),
			)

			next.ServeHTTP(w, r)
		})
	}
}
