package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/internal/server/handlers"
	"github.com/3leaps/swiftfs/pkg/crawler"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/provider/memory"
	"github.com/3leaps/swiftfs/pkg/storage"
)

func newFS(t *testing.T, metrics *observability.Metrics) *handlers.FS {
	t.Helper()
	ctx := context.Background()
	clock := func() time.Time { return time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC) }
	p := memory.New("test", memory.WithClock(clock))
	for _, key := range []string{"photos/2024/a.jpg", "photos/2024/b.png", "photos/readme.txt"} {
		require.NoError(t, p.PutObject(ctx, key, strings.NewReader("data"), 4, provider.PutOptions{}))
	}
	adapter, err := storage.New(p, storage.Config{})
	require.NoError(t, err)
	return handlers.NewFS(adapter, "memory", crawler.DefaultConfig(), metrics, nil)
}

func decodeRecords(t *testing.T, body string) []output.Record {
	t.Helper()
	var records []output.Record
	sc := bufio.NewScanner(strings.NewReader(body))
	for sc.Scan() {
		var rec output.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	return records
}

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "NOT_FOUND", body.Error.Code)
	assert.NotEmpty(t, body.Error.RequestID)
}

func TestServer_Port(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"default port", 8080},
		{"custom port", 9000},
		{"zero port", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := New("127.0.0.1", tt.port)
			assert.Equal(t, tt.port, srv.Port())
		})
	}
}

func TestServer_Addr(t *testing.T) {
	assert.Equal(t, "127.0.0.1:8080", New("127.0.0.1", 8080).Addr())
	assert.Equal(t, "[::1]:9000", New("::1", 9000).Addr())
}

func TestServer_Handler(t *testing.T) {
	assert.NotNil(t, New("127.0.0.1", 8080).Handler())
}

func TestServer_MethodNotAllowed(t *testing.T) {
	srv := New("127.0.0.1", 0)

	req := httptest.NewRequest(http.MethodPost, "/version", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	var body apperrors.HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body.Error.Code)
}

func TestServer_RoutesRegistered(t *testing.T) {
	handlers.InitHealthManager("test")

	srv := New("127.0.0.1", 0)

	endpoints := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/health", http.StatusOK},
		{"GET", "/health/live", http.StatusOK},
		{"GET", "/health/ready", http.StatusOK},
		{"GET", "/health/startup", http.StatusOK},
		{"GET", "/version", http.StatusOK},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)
			assert.Equal(t, ep.want, rec.Code, "endpoint %s %s should return %d", ep.method, ep.path, ep.want)
		})
	}
}

func TestServer_FSRoutesAbsentWithoutAdapter(t *testing.T) {
	srv := New("127.0.0.1", 0)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/list", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_List(t *testing.T) {
	srv := New("127.0.0.1", 0, WithFS(newFS(t, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/list?path=photos", nil)
	req.Header.Set("X-Request-ID", "job-42")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	records := decodeRecords(t, rec.Body.String())
	require.Len(t, records, 3)

	var paths []string
	for _, r := range records[:2] {
		assert.Equal(t, output.TypeEntry, r.Type)
		assert.Equal(t, "job-42", r.JobID)
		assert.Equal(t, "memory", r.Provider)
		var e output.EntryRecord
		require.NoError(t, json.Unmarshal(r.Data, &e))
		paths = append(paths, string(e.Kind)+":"+e.Path)
	}
	assert.ElementsMatch(t, []string{"directory:photos/2024", "file:photos/readme.txt"}, paths)
	assert.Equal(t, output.TypeSummary, records[2].Type)
}

func TestServer_ListDeepWithInclude(t *testing.T) {
	srv := New("127.0.0.1", 0, WithFS(newFS(t, nil)))

	req := httptest.NewRequest(http.MethodGet, "/v1/list?deep=true&include=**/*.jpg", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	records := decodeRecords(t, rec.Body.String())
	require.Len(t, records, 2)

	var e output.EntryRecord
	require.NoError(t, json.Unmarshal(records[0].Data, &e))
	assert.Equal(t, "photos/2024/a.jpg", e.Path)

	var sum output.SummaryRecord
	require.NoError(t, json.Unmarshal(records[1].Data, &sum))
	assert.Equal(t, int64(1), sum.Files)
	assert.Equal(t, int64(0), sum.Directories)
}

func TestServer_ListBadRequest(t *testing.T) {
	srv := New("127.0.0.1", 0, WithFS(newFS(t, nil)))

	for _, target := range []string{"/v1/list?deep=maybe", "/v1/list?include=[", "/v1/list?hidden=2x"} {
		t.Run(target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, apperrors.CodeBadRequest, body.Error.Code)
		})
	}
}

func TestServer_Stat(t *testing.T) {
	srv := New("127.0.0.1", 0, WithFS(newFS(t, nil)))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/stat?path=photos/readme.txt", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var e output.EntryRecord
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&e))
	assert.Equal(t, "file", string(e.Kind))
	assert.Equal(t, "photos/readme.txt", e.Path)
	require.NotNil(t, e.Size)
	assert.Equal(t, uint64(4), *e.Size)
}

func TestServer_StatErrors(t *testing.T) {
	srv := New("127.0.0.1", 0, WithFS(newFS(t, nil)))

	tests := []struct {
		target string
		status int
		code   string
	}{
		{"/v1/stat", http.StatusBadRequest, apperrors.CodeBadRequest},
		{"/v1/stat?path=missing.txt", http.StatusNotFound, apperrors.CodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.status, rec.Code)
			var body apperrors.HTTPErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	m := observability.NewMetrics()
	srv := New("127.0.0.1", 0, WithFS(newFS(t, m)), WithMetrics(m))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/list?deep=true", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `swiftfs_list_entries_total{kind="file"} 3`)
	assert.Contains(t, body, `swiftfs_list_entries_total{kind="directory"} 2`)
	assert.Contains(t, body, `swiftfs_http_requests_total{route="/v1/list",status="200"} 1`)
}

func TestServer_ShutdownBeforeListen(t *testing.T) {
	srv := New("127.0.0.1", 0)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
