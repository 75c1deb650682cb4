// Package listing presents a flat object store as a directory tree.
//
// A shallow listing relies on the provider's delimiter grouping and maps each
// raw entry to exactly one Entry. A deep listing enumerates every key under
// the query path and inserts a Directory for each ancestor segment that is
// implied by a key but not stored as a marker object. Every directory is
// emitted once per listing, right before the first entry beneath it.
//
// Paths in entries are relative to the prefixer's base, so a deep listing
// of "a" over the key "a/b/c.txt" yields Directory("a/b") then
// File("a/b/c.txt").
package listing

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/pkg/pathprefix"
	"github.com/3leaps/swiftfs/pkg/provider"
)

// Lister lists logical directories over a provider.
//
// Lister holds no per-listing state and is safe for concurrent use.
type Lister struct {
	provider provider.Provider
	prefixer pathprefix.Prefixer
	pageSize int
	logger   *zap.Logger
}

// Option configures a Lister.
type Option func(*Lister)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Lister) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithPageSize sets the page size passed to the provider.
// Zero uses the provider default.
func WithPageSize(n int) Option {
	return func(l *Lister) { l.pageSize = n }
}

// New returns a Lister over p with paths translated by prefixer.
func New(p provider.Provider, prefixer pathprefix.Prefixer, opts ...Option) *Lister {
	l := &Lister{
		provider: p,
		prefixer: prefixer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// List starts a listing of the logical directory path. The empty path (or
// "/") lists the root.
//
// Errors from starting the enumeration are returned unchanged.
func (l *Lister) List(ctx context.Context, path string, deep bool) (*Iterator, error) {
	location := l.prefixer.PrefixDirectoryPath(path)

	opts := provider.ListOptions{Prefix: location, PageSize: l.pageSize}
	if !deep {
		opts.Delimiter = pathprefix.Separator
	}

	src, err := l.provider.List(ctx, opts)
	if err != nil {
		return nil, err
	}

	it := &Iterator{
		src:      src,
		prefixer: l.prefixer,
		location: location,
		deep:     deep,
		logger:   l.logger,
	}
	if deep {
		it.emitted = make(map[string]struct{})
	}
	return it, nil
}

// Iterator yields the entries of one listing. It is consumed once and is not
// safe for concurrent use.
type Iterator struct {
	src      provider.ObjectIterator
	prefixer pathprefix.Prefixer
	location string
	deep     bool
	logger   *zap.Logger

	// emitted holds directory paths already yielded (deep mode only).
	emitted map[string]struct{}
	pending []Entry
	err     error
}

// Next returns the next entry, or io.EOF when the listing is exhausted.
//
// Enumeration failures from the provider are returned unchanged. A key
// outside the query prefix stops the listing with a *MalformedEntryError.
// After Next returns an error, every later call returns the same error.
func (it *Iterator) Next() (Entry, error) {
	for len(it.pending) == 0 {
		if it.err != nil {
			return nil, it.err
		}

		obj, err := it.src.Next()
		if err != nil {
			it.err = err
			return nil, err
		}

		if !strings.HasPrefix(obj.Key, it.location) {
			it.err = &MalformedEntryError{Key: obj.Key, Prefix: it.location}
			return nil, it.err
		}
		// The marker object of the listed directory itself.
		if obj.Key == it.location {
			continue
		}

		it.expand(obj)
	}

	e := it.pending[0]
	it.pending[0] = nil
	it.pending = it.pending[1:]
	return e, nil
}

// expand queues obj, preceded by any ancestor directories not yet emitted
// when listing deep.
func (it *Iterator) expand(obj provider.ObjectSummary) {
	entry := Normalize(obj, it.prefixer)
	if !it.deep {
		it.pending = append(it.pending, entry)
		return
	}

	rel := strings.TrimSuffix(obj.Key[len(it.location):], pathprefix.Separator)
	segments := strings.Split(rel, pathprefix.Separator)

	key := it.location
	for _, seg := range segments[:len(segments)-1] {
		key += seg + pathprefix.Separator
		if seg == "" {
			continue
		}
		dir := it.prefixer.StripDirectoryPrefix(key)
		if it.markEmitted(dir) {
			it.logger.Debug("synthesized directory", zap.String("path", dir))
			it.pending = append(it.pending, NewDirectory(dir, time.Time{}))
		}
	}

	if entry.Kind() == KindDirectory && !it.markEmitted(entry.Path()) {
		return
	}
	it.pending = append(it.pending, entry)
}

// markEmitted records dir and reports whether it was new.
func (it *Iterator) markEmitted(dir string) bool {
	if _, ok := it.emitted[dir]; ok {
		return false
	}
	it.emitted[dir] = struct{}{}
	return true
}

// All adapts the iterator to a range-over-func sequence. The sequence ends
// after the last entry; a failure is yielded once as a nil entry with a
// non-nil error.
func (it *Iterator) All() iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		for {
			e, err := it.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(e, err) || err != nil {
				return
			}
		}
	}
}

// Collect drains the iterator. Entries read before a failure are returned
// together with the error.
func (it *Iterator) Collect() ([]Entry, error) {
	var out []Entry
	for e, err := range it.All() {
		if err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, nil
}
