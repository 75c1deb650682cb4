package swift

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gophercloud/gophercloud"
	"github.com/gophercloud/gophercloud/openstack"
	"github.com/gophercloud/utils/openstack/clientconfig"
	"github.com/majewsky/schwift"
	"github.com/majewsky/schwift/gopherschwift"

	"github.com/3leaps/swiftfs/pkg/provider"
)

// DefaultUserAgent is sent to Swift unless Config.UserAgent overrides it.
const DefaultUserAgent = "swiftfs"

// Provider implements provider.Provider for an OpenStack Swift container.
type Provider struct {
	account          *schwift.Account
	container        *schwift.Container
	segmentContainer string
	pageSize         int
}

// Ensure Provider implements the interfaces.
var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.ObjectGetter      = (*Provider)(nil)
	_ provider.ObjectPutter      = (*Provider)(nil)
	_ provider.ObjectDeleter     = (*Provider)(nil)
	_ provider.ObjectCopier      = (*Provider)(nil)
	_ provider.LargeObjectPutter = (*Provider)(nil)
)

// New authenticates against Keystone and opens the configured container.
//
// Credentials come from the OpenStack client environment selected by
// cfg.EnvPrefix. Tokens are refreshed automatically when they expire.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ao, err := clientconfig.AuthOptions(&clientconfig.ClientOpts{EnvPrefix: cfg.envPrefix()})
	if err != nil {
		return nil, newError("New", cfg.Container, "", fmt.Errorf("cannot find OpenStack credentials: %w", err))
	}
	ao.AllowReauth = true

	pc, err := openstack.NewClient(ao.IdentityEndpoint)
	if err != nil {
		return nil, newError("New", cfg.Container, "", err)
	}
	pc.Context = ctx
	if err := openstack.Authenticate(pc, *ao); err != nil {
		return nil, newError("New", cfg.Container, "", fmt.Errorf("%w: %v", provider.ErrInvalidCredentials, err))
	}

	client, err := openstack.NewObjectStorageV1(pc, gophercloud.EndpointOpts{
		Region:       cfg.Region,
		Availability: gophercloud.Availability(cfg.Interface),
	})
	if err != nil {
		return nil, newError("New", cfg.Container, "", fmt.Errorf("cannot find Swift in Keystone catalog: %w", err))
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	account, err := gopherschwift.Wrap(client, &gopherschwift.Options{UserAgent: userAgent})
	if err != nil {
		return nil, newError("New", cfg.Container, "", err)
	}

	return NewWithAccount(account, cfg)
}

// NewWithAccount opens the configured container on an existing account.
func NewWithAccount(account *schwift.Account, cfg Config) (*Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		account:          account,
		container:        account.Container(cfg.Container),
		segmentContainer: cfg.segmentContainer(),
		pageSize:         clampPageSize(cfg.PageSize, DefaultPageSize),
	}

	if cfg.CreateContainer {
		for _, name := range []string{cfg.Container, p.segmentContainer} {
			if _, err := account.Container(name).EnsureExists(); err != nil {
				return nil, p.wrapError("EnsureExists", "", err)
			}
		}
	}
	return p, nil
}

// List enumerates the container with Swift's marker-based paging.
//
// Pseudo-directories reported by a delimited listing surface as entries whose
// key is the subdir name (ending in the delimiter).
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (provider.ObjectIterator, error) {
	iter := p.container.Objects()
	iter.Prefix = opts.Prefix
	iter.Delimiter = opts.Delimiter
	iter.Options = &schwift.RequestOptions{Context: ctx}
	limit := clampPageSize(opts.PageSize, p.pageSize)

	return provider.NewPageIterator(ctx, func(ctx context.Context) ([]provider.ObjectSummary, bool, error) {
		infos, err := iter.NextPageDetailed(limit)
		if err != nil {
			return nil, false, p.wrapListError(opts.Prefix, err)
		}
		page := make([]provider.ObjectSummary, 0, len(infos))
		for _, info := range infos {
			page = append(page, summaryOf(info))
		}
		return page, len(infos) > 0, nil
	}), nil
}

func summaryOf(info schwift.ObjectInfo) provider.ObjectSummary {
	if info.SubDirectory != "" {
		return provider.ObjectSummary{Key: info.SubDirectory}
	}
	return provider.ObjectSummary{
		Key:          info.Object.Name(),
		Size:         info.SizeBytes,
		ContentType:  info.ContentType,
		ETag:         info.Etag,
		LastModified: info.LastModified,
	}
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	hdr, err := p.container.Object(key).Headers()
	if err != nil {
		return nil, p.wrapError("Head", key, err)
	}

	meta := &provider.ObjectMeta{
		ObjectSummary: provider.ObjectSummary{
			Key:          key,
			Size:         hdr.SizeBytes().Get(),
			ContentType:  hdr.ContentType().Get(),
			ETag:         strings.Trim(hdr.Etag().Get(), `"`),
			LastModified: hdr.UpdatedAt().Get(),
		},
		Metadata: userMetadata(hdr.Headers),
	}
	return meta, nil
}

// userMetadata extracts X-Object-Meta-* headers, keyed by lower-cased suffix.
func userMetadata(h schwift.Headers) map[string]string {
	const metaPrefix = "x-object-meta-"
	var out map[string]string
	for k, v := range h {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, metaPrefix) {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[strings.TrimPrefix(lk, metaPrefix)] = v
	}
	return out
}

// GetObject downloads an object as a stream. The returned length is -1 when
// Swift did not report a Content-Length.
//
// The length is read from the GET response headers, which Download caches on
// obj; Headers does not issue a HEAD while that cache is set.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	obj := p.container.Object(key)
	body, err := obj.Download(&schwift.RequestOptions{Context: ctx}).AsReadCloser()
	if err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	length := int64(-1)
	if hdr, err := obj.Headers(); err == nil && hdr.SizeBytes().Exists() {
		length = int64(hdr.SizeBytes().Get())
	}
	return body, length, nil
}

// PutObject uploads an object with a single PUT.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts provider.PutOptions) error {
	hdr := objectHeaders(opts)
	if contentLength >= 0 {
		hdr.SizeBytes().Set(uint64(contentLength))
	}
	ropts := hdr.ToOpts()
	ropts.Context = ctx

	if err := p.container.Object(key).Upload(body, nil, ropts); err != nil {
		return p.wrapError("PutObject", key, err)
	}
	return nil
}

// PutLargeObject uploads body as a static large object: segments of
// opts.SegmentSize bytes go to the segment container, then the manifest is
// written under key.
func (p *Provider) PutLargeObject(ctx context.Context, key string, body io.Reader, opts provider.LargeObjectOptions) error {
	segName := opts.SegmentContainer
	if segName == "" {
		segName = p.segmentContainer
	}

	lo, err := p.container.Object(key).AsNewLargeObject(
		schwift.SegmentingOptions{
			Strategy:         schwift.StaticLargeObject,
			SegmentContainer: p.account.Container(segName),
		},
		&schwift.TruncateOptions{DeleteSegments: false},
	)
	if err != nil {
		return p.wrapError("PutLargeObject", key, err)
	}

	if err := lo.Append(body, opts.SegmentSize, &schwift.RequestOptions{Context: ctx}); err != nil {
		return p.wrapError("PutLargeObject", key, err)
	}

	ropts := objectHeaders(opts.PutOptions).ToOpts()
	ropts.Context = ctx
	if err := lo.WriteManifest(ropts); err != nil {
		return p.wrapError("PutLargeObject", key, err)
	}
	return nil
}

// DeleteObject deletes an object.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	err := p.container.Object(key).Delete(nil, &schwift.RequestOptions{Context: ctx})
	if err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	return nil
}

// CopyObject performs a server-side COPY within the container.
func (p *Provider) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	src := p.container.Object(srcKey)
	dst := p.container.Object(dstKey)
	if err := src.CopyTo(dst, nil, &schwift.RequestOptions{Context: ctx}); err != nil {
		return p.wrapError("CopyObject", srcKey, err)
	}
	return nil
}

// Close releases any resources held by the provider.
// Swift connections are owned by the HTTP client, so this is a no-op.
func (p *Provider) Close() error {
	return nil
}

// ContainerName returns the name of the container this provider operates on.
func (p *Provider) ContainerName() string {
	return p.container.Name()
}

func objectHeaders(opts provider.PutOptions) schwift.ObjectHeaders {
	hdr := schwift.NewObjectHeaders()
	if opts.ContentType != "" {
		hdr.ContentType().Set(opts.ContentType)
	}
	if !opts.DeleteAt.IsZero() {
		hdr.Set("X-Delete-At", strconv.FormatInt(opts.DeleteAt.Unix(), 10))
	}
	if opts.DeleteAfter > 0 {
		secs := int64(opts.DeleteAfter.Seconds())
		if secs < 1 {
			secs = 1
		}
		hdr.Set("X-Delete-After", strconv.FormatInt(secs, 10))
	}
	return hdr
}

func newError(op, container, key string, err error) error {
	return &provider.ProviderError{
		Op:        op,
		Provider:  provider.ProviderSwift,
		Container: container,
		Key:       key,
		Err:       err,
	}
}

// wrapListError maps a 404 on a container listing to ErrContainerNotFound.
func (p *Provider) wrapListError(prefix string, err error) error {
	if schwift.Is(err, http.StatusNotFound) {
		return newError("List", p.container.Name(), prefix, provider.ErrContainerNotFound)
	}
	return p.wrapError("List", prefix, err)
}

// wrapError converts Swift errors to provider errors with appropriate sentinel errors.
func (p *Provider) wrapError(op, key string, err error) error {
	if sentinel := sentinelFor(err); sentinel != nil {
		err = sentinel
	}
	return newError(op, p.container.Name(), key, err)
}

// sentinelFor maps Swift response status codes to provider sentinels.
// It returns nil when no sentinel applies.
func sentinelFor(err error) error {
	var statusErr schwift.UnexpectedStatusCodeError
	if !errors.As(err, &statusErr) || statusErr.ActualResponse == nil {
		return nil
	}
	switch statusErr.ActualResponse.StatusCode {
	case http.StatusNotFound:
		return provider.ErrNotFound
	case http.StatusUnauthorized:
		return provider.ErrInvalidCredentials
	case http.StatusForbidden:
		return provider.ErrAccessDenied
	case http.StatusTooManyRequests, 498:
		return provider.ErrThrottled
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusInternalServerError:
		return provider.ErrProviderUnavailable
	}
	return nil
}

// clampPageSize applies defaults and limits to page size values.
func clampPageSize(requested, providerDefault int) int {
	if requested <= 0 {
		requested = providerDefault
	}
	if requested > MaxPageSize {
		return MaxPageSize
	}
	return requested
}
