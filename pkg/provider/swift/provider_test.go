package swift

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/provider/swift/swifttest"
)

func newTestProvider(t *testing.T, srv *swifttest.Server, cfg Config) *Provider {
	t.Helper()
	if cfg.Container == "" {
		cfg.Container = "media"
	}
	p, err := NewWithAccount(srv.Account(t), cfg)
	require.NoError(t, err)
	return p
}

func listKeys(t *testing.T, p *Provider, opts provider.ListOptions) []string {
	t.Helper()
	it, err := p.List(context.Background(), opts)
	require.NoError(t, err)
	objs, err := provider.Collect(it)
	require.NoError(t, err)
	keys := make([]string, 0, len(objs))
	for _, o := range objs {
		keys = append(keys, o.Key)
	}
	return keys
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "empty container", config: Config{}, wantErr: "container name is required"},
		{name: "negative page size", config: Config{Container: "c", PageSize: -1}, wantErr: "page size must not be negative"},
		{name: "valid minimal config", config: Config{Container: "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_Defaults(t *testing.T) {
	cfg := Config{Container: "media"}
	assert.Equal(t, "OS_", cfg.envPrefix())
	assert.Equal(t, "media", cfg.segmentContainer())

	cfg = Config{Container: "media", EnvPrefix: "SWIFTFS_OS_", SegmentContainer: "media_segments"}
	assert.Equal(t, "SWIFTFS_OS_", cfg.envPrefix())
	assert.Equal(t, "media_segments", cfg.segmentContainer())
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "Container", Message: "container name is required"}
	assert.Equal(t, "swift config: Container: container name is required", err.Error())
}

func TestNew_ValidationError(t *testing.T) {
	_, err := New(context.Background(), Config{})
	require.Error(t, err)

	var configErr *ConfigError
	assert.True(t, errors.As(err, &configErr))
}

func TestNewWithAccount_CreatesContainers(t *testing.T) {
	srv := swifttest.NewServer(t)
	newTestProvider(t, srv, Config{Container: "media", SegmentContainer: "media_segments", CreateContainer: true})

	assert.Empty(t, srv.Keys("media"))
	assert.Contains(t, srv.Requests(), "PUT media/?")
	assert.Contains(t, srv.Requests(), "PUT media_segments/?")
}

func TestProvider_ListRecursive(t *testing.T) {
	srv := swifttest.NewServer(t)
	for _, k := range []string{"a/b/c.txt", "a/d.txt", "a/e/", "z.txt"} {
		srv.PutObject("media", k, []byte("x"), "text/plain")
	}
	p := newTestProvider(t, srv, Config{})

	assert.Equal(t, []string{"a/b/c.txt", "a/d.txt", "a/e/", "z.txt"}, listKeys(t, p, provider.ListOptions{}))
	assert.Equal(t, []string{"a/b/c.txt", "a/d.txt", "a/e/"}, listKeys(t, p, provider.ListOptions{Prefix: "a/"}))
}

func TestProvider_ListPaginates(t *testing.T) {
	srv := swifttest.NewServer(t)
	for _, k := range []string{"k1", "k2", "k3", "k4", "k5"} {
		srv.PutObject("media", k, []byte("x"), "text/plain")
	}
	p := newTestProvider(t, srv, Config{PageSize: 2})

	assert.Equal(t, []string{"k1", "k2", "k3", "k4", "k5"}, listKeys(t, p, provider.ListOptions{}))

	var gets int
	for _, r := range srv.Requests() {
		if strings.HasPrefix(r, "GET media/") {
			gets++
		}
	}
	// Three full or partial pages plus the empty page that ends the listing.
	assert.Equal(t, 4, gets)
}

func TestProvider_ListDelimiter(t *testing.T) {
	srv := swifttest.NewServer(t)
	for _, k := range []string{"a/b/c.txt", "a/b/d.txt", "a/e.txt", "a/f/", "g.txt"} {
		srv.PutObject("media", k, []byte("x"), "text/plain")
	}
	p := newTestProvider(t, srv, Config{PageSize: 1})

	assert.Equal(t, []string{"a/", "g.txt"}, listKeys(t, p, provider.ListOptions{Delimiter: "/"}))
	assert.Equal(t, []string{"a/b/", "a/e.txt", "a/f/"}, listKeys(t, p, provider.ListOptions{Prefix: "a/", Delimiter: "/"}))
}

func TestProvider_ListMetadata(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.PutObject("media", "doc.html", []byte("<p>hi</p>"), "text/html; charset=UTF-8")
	p := newTestProvider(t, srv, Config{})

	it, err := p.List(context.Background(), provider.ListOptions{})
	require.NoError(t, err)
	obj, err := it.Next()
	require.NoError(t, err)

	assert.Equal(t, "doc.html", obj.Key)
	assert.Equal(t, uint64(9), obj.Size)
	assert.Equal(t, "text/html; charset=UTF-8", obj.ContentType)
	assert.NotEmpty(t, obj.ETag)
	assert.False(t, obj.LastModified.IsZero())

	_, err = it.Next()
	assert.Equal(t, io.EOF, err)
}

func TestProvider_ListMissingContainer(t *testing.T) {
	srv := swifttest.NewServer(t)
	p := newTestProvider(t, srv, Config{Container: "nope"})

	it, err := p.List(context.Background(), provider.ListOptions{})
	require.NoError(t, err)
	_, err = it.Next()
	assert.True(t, provider.IsContainerNotFound(err))
}

func TestProvider_HeadAndGet(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.PutObject("media", "a/b.txt", []byte("hello"), "text/plain")
	p := newTestProvider(t, srv, Config{})
	ctx := context.Background()

	meta, err := p.Head(ctx, "a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, "a/b.txt", meta.Key)
	assert.Equal(t, uint64(5), meta.Size)
	assert.Equal(t, "text/plain", meta.ContentType)
	assert.False(t, meta.LastModified.IsZero())

	body, n, err := p.GetObject(ctx, "a/b.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, int64(5), n)
	assert.Equal(t, "hello", string(data))

	_, err = p.Head(ctx, "missing")
	assert.True(t, provider.IsNotFound(err))
	_, _, err = p.GetObject(ctx, "missing")
	assert.True(t, provider.IsNotFound(err))
}

func TestProvider_GetObjectSingleRequest(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.CreateContainer("media")
	srv.PutObject("media", "a/b.txt", []byte("hello"), "text/plain")
	p := newTestProvider(t, srv, Config{})

	before := len(srv.Requests())
	body, n, err := p.GetObject(context.Background(), "a/b.txt")
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, int64(5), n)
	assert.Equal(t, []string{"GET media/a/b.txt?"}, srv.Requests()[before:])
}

func TestProvider_PutObject(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.CreateContainer("media")
	p := newTestProvider(t, srv, Config{})
	ctx := context.Background()

	err := p.PutObject(ctx, "docs/readme.md", strings.NewReader("# hi"), 4, provider.PutOptions{
		ContentType: "text/markdown",
		DeleteAfter: time.Hour,
	})
	require.NoError(t, err)

	obj := srv.GetObject("media", "docs/readme.md")
	require.NotNil(t, obj)
	assert.Equal(t, "# hi", string(obj.Data))
	assert.Equal(t, "text/markdown", obj.ContentType)
	assert.WithinDuration(t, time.Now().Add(time.Hour), obj.DeleteAt, time.Minute)
}

func TestProvider_PutObjectDeleteAt(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.CreateContainer("media")
	p := newTestProvider(t, srv, Config{})

	at := time.Now().Add(24 * time.Hour).Truncate(time.Second)
	require.NoError(t, p.PutObject(context.Background(), "tmp", bytes.NewReader([]byte("x")), -1, provider.PutOptions{DeleteAt: at}))

	obj := srv.GetObject("media", "tmp")
	require.NotNil(t, obj)
	assert.True(t, at.Equal(obj.DeleteAt))
}

func TestProvider_PutLargeObject(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.CreateContainer("media")
	srv.CreateContainer("media_segments")
	p := newTestProvider(t, srv, Config{SegmentContainer: "media_segments"})

	payload := "0123456789"
	err := p.PutLargeObject(context.Background(), "big.bin", strings.NewReader(payload), provider.LargeObjectOptions{
		PutOptions:  provider.PutOptions{ContentType: "application/x-test"},
		SegmentSize: 4,
	})
	require.NoError(t, err)

	obj := srv.GetObject("media", "big.bin")
	require.NotNil(t, obj)
	assert.Equal(t, payload, string(obj.Data))
	assert.Len(t, srv.Keys("media_segments"), 3)
}

func TestProvider_DeleteAndCopy(t *testing.T) {
	srv := swifttest.NewServer(t)
	srv.PutObject("media", "src.txt", []byte("payload"), "text/plain")
	p := newTestProvider(t, srv, Config{})
	ctx := context.Background()

	require.NoError(t, p.CopyObject(ctx, "src.txt", "dst/copy.txt"))
	assert.Equal(t, []string{"dst/copy.txt", "src.txt"}, srv.Keys("media"))

	require.NoError(t, p.DeleteObject(ctx, "src.txt"))
	assert.Equal(t, []string{"dst/copy.txt"}, srv.Keys("media"))

	assert.True(t, provider.IsNotFound(p.DeleteObject(ctx, "src.txt")))
	assert.True(t, provider.IsNotFound(p.CopyObject(ctx, "src.txt", "x")))
}

func TestProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		status   int
		expected error
	}{
		{http.StatusUnauthorized, provider.ErrInvalidCredentials},
		{http.StatusForbidden, provider.ErrAccessDenied},
		{http.StatusTooManyRequests, provider.ErrThrottled},
		{498, provider.ErrThrottled},
		{http.StatusServiceUnavailable, provider.ErrProviderUnavailable},
		{http.StatusInternalServerError, provider.ErrProviderUnavailable},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := swifttest.NewServer(t)
			srv.PutObject("media", "obj", []byte("x"), "text/plain")
			srv.FailPath("media/obj", tt.status)
			p := newTestProvider(t, srv, Config{})

			_, err := p.Head(context.Background(), "obj")
			assert.ErrorIs(t, err, tt.expected)

			var provErr *provider.ProviderError
			require.True(t, errors.As(err, &provErr))
			assert.Equal(t, provider.ProviderSwift, provErr.Provider)
			assert.Equal(t, "media", provErr.Container)
			assert.Equal(t, "obj", provErr.Key)
		})
	}
}

func TestSentinelFor_NonStatusError(t *testing.T) {
	assert.Nil(t, sentinelFor(errors.New("dial tcp: connection refused")))
	assert.Nil(t, sentinelFor(nil))
}

func TestUserMetadata(t *testing.T) {
	got := userMetadata(map[string]string{
		"X-Object-Meta-Author": "ada",
		"Content-Type":         "text/plain",
	})
	assert.Equal(t, map[string]string{"author": "ada"}, got)
	assert.Nil(t, userMetadata(map[string]string{"Etag": "x"}))
}

func TestClampPageSize(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		def      int
		expected int
	}{
		{"zero uses provider default", 0, DefaultPageSize, DefaultPageSize},
		{"negative uses provider default", -1, 50, 50},
		{"within limit unchanged", 500, DefaultPageSize, 500},
		{"over limit clamped", 20000, DefaultPageSize, MaxPageSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clampPageSize(tt.input, tt.def))
		})
	}
}
