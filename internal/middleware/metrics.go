// AngelaMos | 2026
// metrics.go

package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/reportriser/backend/internal/core"
)

// Metrics records request latency labelled by the matched chi route
// pattern, so path parameters do not explode label cardinality.
func Metrics(m *core.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := rctx.RoutePattern(); p != "" {
					route = p
				}
			}

			m.HTTPRequestLatency.
				WithLabelValues(r.Method, route, strconv.Itoa(rw.status)).
				Observe(time.Since(start).Seconds())
		})
	}
}
