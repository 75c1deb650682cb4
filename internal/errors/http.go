// Package errors maps domain errors to HTTP responses.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/3leaps/swiftfs/pkg/listing"
	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/storage"
)

// Error codes used in HTTP error bodies.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeAccessDenied       = "ACCESS_DENIED"
	CodeThrottled          = "THROTTLED"
	CodeNotSupported       = "NOT_SUPPORTED"
	CodeBadGateway         = "BAD_GATEWAY"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternal           = "INTERNAL_ERROR"
)

// ErrBadRequest marks errors caused by invalid request input.
var ErrBadRequest = errors.New("bad request")

// HTTPErrorResponse is the JSON body of every error response.
type HTTPErrorResponse struct {
	Error HTTPError `json:"error"`
}

// HTTPError describes a failed request.
type HTTPError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// Classify returns the HTTP status and error code for err.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest, CodeBadRequest
	case provider.IsNotFound(err), provider.IsContainerNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return http.StatusForbidden, CodeAccessDenied
	case provider.IsThrottled(err):
		return http.StatusTooManyRequests, CodeThrottled
	case storage.IsNotSupported(err):
		return http.StatusNotImplemented, CodeNotSupported
	case errors.Is(err, listing.ErrMalformedEntry):
		return http.StatusBadGateway, CodeBadGateway
	case provider.IsProviderUnavailable(err):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	}
	return http.StatusInternalServerError, CodeInternal
}

// RespondWithError writes err as a JSON error body with the status
// chosen by Classify.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Classify(err)
	WriteError(w, status, HTTPError{
		Code:      code,
		Message:   err.Error(),
		RequestID: RequestIDFrom(r),
	})
}

// WriteError writes body with the given status.
func WriteError(w http.ResponseWriter, status int, body HTTPError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: body})
}

// NotFoundHandler responds 404 with a JSON body.
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, HTTPError{
		Code:      CodeNotFound,
		Message:   "no route for " + r.URL.Path,
		RequestID: RequestIDFrom(r),
	})
}

// MethodNotAllowedHandler responds 405 with a JSON body.
func MethodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusMethodNotAllowed, HTTPError{
		Code:      CodeMethodNotAllowed,
		Message:   "method " + r.Method + " not allowed for " + r.URL.Path,
		RequestID: RequestIDFrom(r),
	})
}
