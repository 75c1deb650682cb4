package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
	"github.com/3leaps/swiftfs/internal/observability"
)

// Instrument records request counts and latency per route pattern and
// logs each request at debug level.
func Instrument(m *observability.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := routePattern(r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			elapsed := time.Since(start)

			if m != nil {
				m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
				m.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
			}
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", elapsed),
				zap.String("request_id", apperrors.RequestIDFrom(r)),
			)
		})
	}
}

// routePattern keeps label cardinality bounded: unmatched paths share one
// label.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
