package handlers

import (
	"net/http"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
)

// httpErrorResponder writes error responses for every handler in this
// package. Tests swap it to observe errors.
var httpErrorResponder = apperrors.RespondWithError

// SetHTTPErrorResponder replaces the error responder. Nil restores the
// default.
func SetHTTPErrorResponder(fn func(http.ResponseWriter, *http.Request, error)) {
	if fn == nil {
		ResetHTTPErrorResponder()
		return
	}
	httpErrorResponder = fn
}

// ResetHTTPErrorResponder restores the default error responder.
func ResetHTTPErrorResponder() {
	httpErrorResponder = apperrors.RespondWithError
}

func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	httpErrorResponder(w, r, err)
}
