// Package memory implements an in-process flat object store.
//
// It backs mem:// URIs and serves as the reference provider in tests: keys
// are kept sorted, delimiter grouping is emulated, and every operation is
// safe for concurrent use.
package memory

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/3leaps/swiftfs/pkg/provider"
)

// Provider is an in-memory provider.Provider.
type Provider struct {
	name string
	now  func() time.Time

	mu      sync.RWMutex
	objects map[string]*object
}

type object struct {
	data        []byte
	contentType string
	modified    time.Time
	deleteAt    time.Time
}

var (
	_ provider.Provider          = (*Provider)(nil)
	_ provider.ObjectGetter      = (*Provider)(nil)
	_ provider.ObjectPutter      = (*Provider)(nil)
	_ provider.ObjectDeleter     = (*Provider)(nil)
	_ provider.ObjectCopier      = (*Provider)(nil)
	_ provider.LargeObjectPutter = (*Provider)(nil)
)

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the time source used for modification times and expiry.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// New returns an empty store. name is used as the container name in errors.
func New(name string, opts ...Option) *Provider {
	p := &Provider{
		name:    name,
		now:     time.Now,
		objects: make(map[string]*object),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var (
	registryMu sync.Mutex
	registry   = map[string]*Provider{}
)

// Named returns the process-wide store registered under name, creating it on
// first use. mem:// URIs with the same name share one store.
func Named(name string) *Provider {
	registryMu.Lock()
	defer registryMu.Unlock()
	p, ok := registry[name]
	if !ok {
		p = New(name)
		registry[name] = p
	}
	return p
}

// List returns the live objects under opts.Prefix in key order.
func (p *Provider) List(ctx context.Context, opts provider.ListOptions) (provider.ObjectIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.wrapError("List", opts.Prefix, err)
	}

	p.mu.RLock()
	now := p.now()
	matched := make([]provider.ObjectSummary, 0)
	for key, obj := range p.objects {
		if !strings.HasPrefix(key, opts.Prefix) || obj.expired(now) {
			continue
		}
		matched = append(matched, obj.summary(key))
	}
	p.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Key < matched[j].Key })
	return provider.NewSliceIterator(provider.GroupByDelimiter(matched, opts.Prefix, opts.Delimiter)), nil
}

// Head returns metadata for a single object.
func (p *Provider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, p.wrapError("Head", key, err)
	}
	obj, ok := p.lookup(key)
	if !ok {
		return nil, p.wrapError("Head", key, provider.ErrNotFound)
	}
	return &provider.ObjectMeta{ObjectSummary: obj.summary(key)}, nil
}

// GetObject returns a reader over a copy of the object's data.
func (p *Provider) GetObject(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, p.wrapError("GetObject", key, err)
	}
	obj, ok := p.lookup(key)
	if !ok {
		return nil, 0, p.wrapError("GetObject", key, provider.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), nil
}

// PutObject stores body under key, replacing any existing object.
func (p *Provider) PutObject(ctx context.Context, key string, body io.Reader, _ int64, opts provider.PutOptions) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return p.wrapError("PutObject", key, err)
	}
	if err := ctx.Err(); err != nil {
		return p.wrapError("PutObject", key, err)
	}

	now := p.now()
	obj := &object{
		data:        data,
		contentType: opts.ContentType,
		modified:    now,
		deleteAt:    opts.DeleteAt,
	}
	if obj.contentType == "" {
		obj.contentType = "application/octet-stream"
	}
	if opts.DeleteAfter > 0 {
		obj.deleteAt = now.Add(opts.DeleteAfter)
	}

	p.mu.Lock()
	p.objects[key] = obj
	p.mu.Unlock()
	return nil
}

// PutLargeObject stores body as a single object. Segmentation has no
// meaning in memory, so the options other than PutOptions are ignored.
func (p *Provider) PutLargeObject(ctx context.Context, key string, body io.Reader, opts provider.LargeObjectOptions) error {
	return p.PutObject(ctx, key, body, -1, opts.PutOptions)
}

// DeleteObject removes key. Deleting a missing object returns ErrNotFound.
func (p *Provider) DeleteObject(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return p.wrapError("DeleteObject", key, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	obj, ok := p.objects[key]
	if !ok || obj.expired(p.now()) {
		return p.wrapError("DeleteObject", key, provider.ErrNotFound)
	}
	delete(p.objects, key)
	return nil
}

// CopyObject duplicates srcKey to dstKey.
func (p *Provider) CopyObject(ctx context.Context, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return p.wrapError("CopyObject", srcKey, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	src, ok := p.objects[srcKey]
	if !ok || src.expired(p.now()) {
		return p.wrapError("CopyObject", srcKey, provider.ErrNotFound)
	}
	cp := *src
	cp.data = append([]byte(nil), src.data...)
	cp.modified = p.now()
	p.objects[dstKey] = &cp
	return nil
}

// Close is a no-op.
func (p *Provider) Close() error { return nil }

// Len returns the number of live objects.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	now := p.now()
	n := 0
	for _, obj := range p.objects {
		if !obj.expired(now) {
			n++
		}
	}
	return n
}

func (p *Provider) lookup(key string) (*object, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	obj, ok := p.objects[key]
	if !ok || obj.expired(p.now()) {
		return nil, false
	}
	return obj, true
}

func (p *Provider) wrapError(op, key string, err error) error {
	return &provider.ProviderError{
		Op:        op,
		Provider:  provider.ProviderMemory,
		Container: p.name,
		Key:       key,
		Err:       err,
	}
}

func (o *object) expired(now time.Time) bool {
	return !o.deleteAt.IsZero() && !now.Before(o.deleteAt)
}

func (o *object) summary(key string) provider.ObjectSummary {
	return provider.ObjectSummary{
		Key:          key,
		Size:         uint64(len(o.data)),
		ContentType:  o.contentType,
		LastModified: o.modified,
	}
}
