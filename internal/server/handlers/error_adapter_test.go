package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
	"github.com/3leaps/swiftfs/pkg/provider"
)

func TestSetHTTPErrorResponder(t *testing.T) {
	t.Cleanup(ResetHTTPErrorResponder)

	var captured error
	SetHTTPErrorResponder(func(w http.ResponseWriter, _ *http.Request, err error) {
		captured = err
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/test", nil), assert.AnError)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, assert.AnError, captured)
}

func TestSetHTTPErrorResponderNilRestoresDefault(t *testing.T) {
	t.Cleanup(ResetHTTPErrorResponder)

	SetHTTPErrorResponder(func(w http.ResponseWriter, _ *http.Request, _ error) {
		w.WriteHeader(http.StatusTeapot)
	})
	SetHTTPErrorResponder(nil)

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/test", nil), provider.ErrNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), apperrors.CodeNotFound)
}

func TestResetHTTPErrorResponder(t *testing.T) {
	called := false
	SetHTTPErrorResponder(func(http.ResponseWriter, *http.Request, error) { called = true })
	ResetHTTPErrorResponder()

	rec := httptest.NewRecorder()
	respondWithError(rec, httptest.NewRequest(http.MethodGet, "/test", nil), provider.ErrThrottled)

	assert.False(t, called)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
