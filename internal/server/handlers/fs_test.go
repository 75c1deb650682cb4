package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/swiftfs/pkg/crawler"
	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/provider/memory"
	"github.com/3leaps/swiftfs/pkg/storage"
)

// deniedProvider fails every listing.
type deniedProvider struct {
	provider.Provider
}

func (deniedProvider) List(context.Context, provider.ListOptions) (provider.ObjectIterator, error) {
	return nil, provider.ErrAccessDenied
}

func newTestFS(t *testing.T, p provider.Provider) *FS {
	t.Helper()
	adapter, err := storage.New(p, storage.Config{})
	require.NoError(t, err)
	return NewFS(adapter, "memory", crawler.DefaultConfig(), nil, nil)
}

func TestFSCheckHealth(t *testing.T) {
	ctx := context.Background()

	empty := newTestFS(t, memory.New("empty"))
	assert.NoError(t, empty.CheckHealth(ctx))

	p := memory.New("full")
	require.NoError(t, p.PutObject(ctx, "a.txt", strings.NewReader("x"), 1, provider.PutOptions{}))
	assert.NoError(t, newTestFS(t, p).CheckHealth(ctx))

	denied := newTestFS(t, deniedProvider{Provider: memory.New("x")})
	assert.ErrorIs(t, denied.CheckHealth(ctx), provider.ErrAccessDenied)
}

func TestFSListRootErrorBecomesRecord(t *testing.T) {
	fs := newTestFS(t, deniedProvider{Provider: memory.New("x")})

	rec := httptest.NewRecorder()
	fs.List(rec, httptest.NewRequest(http.MethodGet, "/v1/list?path=private", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"type":"swiftfs.error.v1"`)
	assert.Contains(t, body, `"code":"ACCESS_DENIED"`)
	assert.Contains(t, body, `"type":"swiftfs.summary.v1"`)
}

func TestQueryBool(t *testing.T) {
	v, err := queryBool("", "deep")
	require.NoError(t, err)
	assert.False(t, v)

	v, err = queryBool("1", "deep")
	require.NoError(t, err)
	assert.True(t, v)

	_, err = queryBool("sure", "deep")
	assert.ErrorContains(t, err, "deep must be a boolean")
}
