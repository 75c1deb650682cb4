// Package storage exposes a filesystem-style API over a flat object store.
//
// Every logical path passes through a pathprefix.Prefixer before it reaches
// the provider, and listings are produced by the listing package. Operations
// that have no counterpart in an object store (explicit directories,
// visibility) fail with ErrNotSupported.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/swiftfs/pkg/listing"
	"github.com/3leaps/swiftfs/pkg/pathprefix"
	"github.com/3leaps/swiftfs/pkg/provider"
)

// sniffLen is how many leading bytes are inspected for content detection.
const sniffLen = 3072

// Adapter implements file operations on top of a provider.
//
// Adapter is safe for concurrent use when its provider is.
type Adapter struct {
	provider provider.Provider
	prefixer pathprefix.Prefixer
	lister   *listing.Lister
	cfg      Config
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger for the adapter and its lister.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New returns an Adapter over p. Zero-valued Config fields take their
// defaults from DefaultConfig.
func New(p provider.Provider, cfg Config, opts ...Option) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	a := &Adapter{
		provider: p,
		prefixer: pathprefix.New(cfg.Prefix),
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.DeleteRateLimit > 0 {
		a.limiter = rate.NewLimiter(rate.Limit(cfg.DeleteRateLimit), 1)
	}
	a.lister = listing.New(p, a.prefixer,
		listing.WithLogger(a.logger),
		listing.WithPageSize(cfg.PageSize),
	)
	return a, nil
}

// Prefixer returns the path translation in effect.
func (a *Adapter) Prefixer() pathprefix.Prefixer {
	return a.prefixer
}

// Provider returns the underlying provider.
func (a *Adapter) Provider() provider.Provider {
	return a.provider
}

// Close releases the underlying provider.
func (a *Adapter) Close() error {
	return a.provider.Close()
}

// Write stores data at path.
func (a *Adapter) Write(ctx context.Context, path string, data []byte, opts WriteOptions) error {
	opts.Size = int64(len(data))
	return a.WriteStream(ctx, path, bytes.NewReader(data), opts)
}

// WriteStream stores the contents of r at path.
//
// Bodies larger than Config.LargeObjectThreshold are uploaded in segments
// when the provider supports it. Bodies of unknown length are spooled first
// so the size is known before the upload starts.
func (a *Adapter) WriteStream(ctx context.Context, path string, r io.Reader, opts WriteOptions) error {
	putter, ok := a.provider.(provider.ObjectPutter)
	if !ok {
		return &OperationError{Op: OpWrite, Path: path, Reason: "provider is read-only", Err: ErrNotSupported}
	}
	key := a.prefixer.PrefixPath(path)

	size := opts.Size
	if size <= 0 {
		size = sizeOf(r)
	}
	if size < 0 {
		body, err := spool(r, -1, a.cfg.SpoolMemoryBytes)
		if err != nil {
			return &OperationError{Op: OpWrite, Path: path, Err: err}
		}
		defer func() { _ = body.Close() }()
		r, size = body.reader, body.size
	}

	putOpts := provider.PutOptions{
		ContentType: opts.ContentType,
		DeleteAt:    opts.DeleteAt,
		DeleteAfter: opts.DeleteAfter,
	}
	if putOpts.ContentType == "" && opts.DetectContentType {
		ct, body, err := detectContentType(r)
		if err != nil {
			return &OperationError{Op: OpWrite, Path: path, Err: err}
		}
		putOpts.ContentType, r = ct, body
	}

	var err error
	if lo, ok := a.provider.(provider.LargeObjectPutter); ok && size > a.cfg.LargeObjectThreshold {
		a.logger.Debug("uploading large object",
			zap.String("key", key),
			zap.Int64("size", size),
			zap.Int64("segment_size", a.cfg.SegmentSize),
		)
		err = lo.PutLargeObject(ctx, key, r, provider.LargeObjectOptions{
			PutOptions:       putOpts,
			SegmentSize:      a.cfg.SegmentSize,
			SegmentContainer: a.cfg.SegmentContainer,
		})
	} else {
		err = putter.PutObject(ctx, key, r, size, putOpts)
	}
	if err != nil {
		return &OperationError{Op: OpWrite, Path: path, Err: err}
	}
	return nil
}

// detectContentType sniffs the head of r and returns a reader that still
// yields the full body.
func detectContentType(r io.Reader) (string, io.Reader, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	return mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), r), nil
}

// Read returns the contents of the file at path.
func (a *Adapter) Read(ctx context.Context, path string) ([]byte, error) {
	body, err := a.ReadStream(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = body.Close() }()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &OperationError{Op: OpRead, Path: path, Err: err}
	}
	return data, nil
}

// ReadStream opens the file at path for reading. The caller closes it.
func (a *Adapter) ReadStream(ctx context.Context, path string) (io.ReadCloser, error) {
	getter, ok := a.provider.(provider.ObjectGetter)
	if !ok {
		return nil, &OperationError{Op: OpRead, Path: path, Reason: "provider cannot download objects", Err: ErrNotSupported}
	}
	body, _, err := getter.GetObject(ctx, a.prefixer.PrefixPath(path))
	if err != nil {
		return nil, &OperationError{Op: OpRead, Path: path, Err: err}
	}
	return body, nil
}

// Delete removes the file at path.
func (a *Adapter) Delete(ctx context.Context, path string) error {
	deleter, ok := a.provider.(provider.ObjectDeleter)
	if !ok {
		return &OperationError{Op: OpDelete, Path: path, Reason: "provider is read-only", Err: ErrNotSupported}
	}
	key := a.prefixer.PrefixPath(path)
	if err := deleter.DeleteObject(ctx, key); err != nil {
		return &OperationError{Op: OpDelete, Path: path, Err: err}
	}
	a.logger.Debug("deleted object", zap.String("key", key))
	return nil
}

// DeleteDirectory removes every object under path, including a marker
// object for path itself. The root is refused with ErrDeleteRoot.
//
// All keys are enumerated before the first deletion. Objects that vanish
// concurrently are ignored; other per-object failures are collected and
// returned together once every key has been attempted.
func (a *Adapter) DeleteDirectory(ctx context.Context, path string) error {
	dir := strings.TrimRight(strings.TrimSpace(path), pathprefix.Separator) + pathprefix.Separator
	if dir == pathprefix.Separator {
		return &OperationError{Op: OpDeleteDirectory, Path: path, Reason: ErrDeleteRoot.Error(), Err: ErrDeleteRoot}
	}

	deleter, ok := a.provider.(provider.ObjectDeleter)
	if !ok {
		return &OperationError{Op: OpDeleteDirectory, Path: path, Reason: "provider is read-only", Err: ErrNotSupported}
	}

	it, err := a.provider.List(ctx, provider.ListOptions{
		Prefix:   a.prefixer.PrefixPath(dir),
		PageSize: a.cfg.PageSize,
	})
	if err != nil {
		return &OperationError{Op: OpDeleteDirectory, Path: path, Err: err}
	}
	objects, err := provider.Collect(it)
	if err != nil {
		return &OperationError{Op: OpDeleteDirectory, Path: path, Err: err}
	}

	var result *multierror.Error
	for _, obj := range objects {
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				result = multierror.Append(result, err)
				break
			}
		}
		if err := deleter.DeleteObject(ctx, obj.Key); err != nil {
			if provider.IsNotFound(err) {
				continue
			}
			result = multierror.Append(result, fmt.Errorf("%s: %w", obj.Key, err))
			continue
		}
		a.logger.Debug("deleted object", zap.String("key", obj.Key))
	}

	if err := result.ErrorOrNil(); err != nil {
		a.logger.Warn("directory deletion incomplete",
			zap.String("path", path),
			zap.Int("objects", len(objects)),
			zap.Int("failures", len(result.Errors)),
		)
		return &OperationError{Op: OpDeleteDirectory, Path: path, Err: err}
	}
	return nil
}

// CreateDirectory always fails: directories exist only through the keys
// beneath them.
func (a *Adapter) CreateDirectory(_ context.Context, path string) error {
	return &OperationError{Op: OpCreateDirectory, Path: path, Reason: ErrNotSupported.Error(), Err: ErrNotSupported}
}

// FileExists reports whether an object is stored at path.
func (a *Adapter) FileExists(ctx context.Context, path string) (bool, error) {
	_, err := a.provider.Head(ctx, a.prefixer.PrefixPath(path))
	switch {
	case err == nil:
		return true, nil
	case provider.IsNotFound(err):
		return false, nil
	default:
		return false, &OperationError{Op: OpFileExists, Path: path, Err: err}
	}
}

// DirectoryExists reports whether any key, including a marker object, lies
// under path.
func (a *Adapter) DirectoryExists(ctx context.Context, path string) (bool, error) {
	it, err := a.provider.List(ctx, provider.ListOptions{
		Prefix:    a.prefixer.PrefixDirectoryPath(path),
		Delimiter: pathprefix.Separator,
		PageSize:  1,
	})
	if err != nil {
		return false, &OperationError{Op: OpDirectoryExists, Path: path, Err: err}
	}
	if _, err := it.Next(); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, &OperationError{Op: OpDirectoryExists, Path: path, Err: err}
	}
	return true, nil
}

// ListContents lists the directory at path, recursively when deep is set.
//
// Failures while iterating are returned by the iterator as the provider
// reported them.
func (a *Adapter) ListContents(ctx context.Context, path string, deep bool) (*listing.Iterator, error) {
	it, err := a.lister.List(ctx, path, deep)
	if err != nil {
		return nil, &OperationError{Op: OpListContents, Path: path, Err: err}
	}
	return it, nil
}

// Stat returns the normalized entry for the object at path.
func (a *Adapter) Stat(ctx context.Context, path string) (listing.Entry, error) {
	return a.stat(ctx, path, "")
}

func (a *Adapter) stat(ctx context.Context, path, attribute string) (listing.Entry, error) {
	key := a.prefixer.PrefixPath(path)
	meta, err := a.provider.Head(ctx, key)
	if err != nil {
		return nil, &OperationError{Op: OpRetrieveMetadata, Path: path, Reason: reasonFor(attribute, err), Err: err}
	}
	summary := meta.ObjectSummary
	summary.Key = key
	return listing.Normalize(summary, a.prefixer), nil
}

func reasonFor(attribute string, err error) string {
	if attribute == "" {
		return ""
	}
	return attribute + ": " + err.Error()
}

// FileSize returns the size in bytes of the file at path.
func (a *Adapter) FileSize(ctx context.Context, path string) (uint64, error) {
	f, err := a.fileAttributes(ctx, path, "file size")
	if err != nil {
		return 0, err
	}
	return f.Size(), nil
}

// MimeType returns the primary media type of the file at path.
func (a *Adapter) MimeType(ctx context.Context, path string) (string, error) {
	f, err := a.fileAttributes(ctx, path, "mime type")
	if err != nil {
		return "", err
	}
	if f.MimeType() == "" {
		return "", &OperationError{Op: OpRetrieveMetadata, Path: path, Reason: "mime type: unknown", Err: provider.ErrNotFound}
	}
	return f.MimeType(), nil
}

// LastModified returns the modification time of the file at path.
func (a *Adapter) LastModified(ctx context.Context, path string) (time.Time, error) {
	f, err := a.fileAttributes(ctx, path, "last modified")
	if err != nil {
		return time.Time{}, err
	}
	t, ok := f.LastModified()
	if !ok {
		return time.Time{}, &OperationError{Op: OpRetrieveMetadata, Path: path, Reason: "last modified: unknown", Err: provider.ErrNotFound}
	}
	return t, nil
}

func (a *Adapter) fileAttributes(ctx context.Context, path, attribute string) (listing.File, error) {
	e, err := a.stat(ctx, path, attribute)
	if err != nil {
		return listing.File{}, err
	}
	f, ok := e.(listing.File)
	if !ok {
		return listing.File{}, &OperationError{Op: OpRetrieveMetadata, Path: path, Reason: attribute + ": not a file", Err: provider.ErrNotFound}
	}
	return f, nil
}

// Visibility always fails: object ACLs are managed per container.
func (a *Adapter) Visibility(_ context.Context, path string) (string, error) {
	return "", &OperationError{Op: OpRetrieveVisibility, Path: path, Reason: ErrNotSupported.Error(), Err: ErrNotSupported}
}

// SetVisibility always fails: object ACLs are managed per container.
func (a *Adapter) SetVisibility(_ context.Context, path, _ string) error {
	return &OperationError{Op: OpSetVisibility, Path: path, Reason: ErrNotSupported.Error(), Err: ErrNotSupported}
}

// Copy duplicates the file at src to dst. Providers with server-side copy
// do it without transferring data; otherwise the object is downloaded and
// uploaded again.
func (a *Adapter) Copy(ctx context.Context, src, dst string) error {
	if err := a.copyObject(ctx, a.prefixer.PrefixPath(src), a.prefixer.PrefixPath(dst)); err != nil {
		return &OperationError{Op: OpCopy, Path: src, Destination: dst, Err: err}
	}
	return nil
}

func (a *Adapter) copyObject(ctx context.Context, srcKey, dstKey string) error {
	if copier, ok := a.provider.(provider.ObjectCopier); ok {
		return copier.CopyObject(ctx, srcKey, dstKey)
	}

	getter, ok := a.provider.(provider.ObjectGetter)
	if !ok {
		return fmt.Errorf("provider does not support GetObject: %w", ErrNotSupported)
	}
	putter, ok := a.provider.(provider.ObjectPutter)
	if !ok {
		return fmt.Errorf("provider does not support PutObject: %w", ErrNotSupported)
	}

	var contentType string
	if meta, err := a.provider.Head(ctx, srcKey); err == nil {
		contentType = meta.ContentType
	}

	rc, size, err := getter.GetObject(ctx, srcKey)
	if err != nil {
		return err
	}
	body, err := spool(rc, size, a.cfg.SpoolMemoryBytes)
	_ = rc.Close()
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	return putter.PutObject(ctx, dstKey, body.reader, body.size, provider.PutOptions{ContentType: contentType})
}

// Move relocates the file at src to dst by copying then deleting the source.
func (a *Adapter) Move(ctx context.Context, src, dst string) error {
	deleter, ok := a.provider.(provider.ObjectDeleter)
	if !ok {
		return &OperationError{Op: OpMove, Path: src, Destination: dst, Reason: "provider is read-only", Err: ErrNotSupported}
	}
	srcKey := a.prefixer.PrefixPath(src)
	if err := a.copyObject(ctx, srcKey, a.prefixer.PrefixPath(dst)); err != nil {
		return &OperationError{Op: OpMove, Path: src, Destination: dst, Err: err}
	}
	if err := deleter.DeleteObject(ctx, srcKey); err != nil {
		return &OperationError{Op: OpMove, Path: src, Destination: dst, Err: err}
	}
	a.logger.Debug("moved object", zap.String("from", src), zap.String("to", dst))
	return nil
}
