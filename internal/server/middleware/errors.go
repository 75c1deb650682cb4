// Package middleware provides HTTP middleware for the swiftfs server.
package middleware

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
	"github.com/3leaps/swiftfs/internal/observability"
)

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse = apperrors.HTTPErrorResponse

// Recovery turns a panic in next into a 500 JSON response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := apperrors.RequestIDFrom(r)
			observability.CLILogger.Error("panic in handler",
				zap.Any("panic", rec),
				zap.String("path", r.URL.Path),
				zap.String("request_id", requestID),
			)

			writeErrorResponse(w, apperrors.HTTPError{
				Code:      apperrors.CodeInternal,
				Message:   fmt.Sprintf("panic: %v", rec),
				Details:   map[string]any{"method": r.Method, "path": r.URL.Path},
				RequestID: requestID,
			}, http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}

// ErrorHandler is Recovery under the name used in router setup.
func ErrorHandler(next http.Handler) http.Handler {
	return Recovery(next)
}

func writeErrorResponse(w http.ResponseWriter, body apperrors.HTTPError, status int) {
	apperrors.WriteError(w, status, body)
}
