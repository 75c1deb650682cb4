package provider

import (
	"context"
	"io"
	"strings"
)

// PageFunc fetches the next page of a listing. more reports whether another
// call may return further entries.
type PageFunc func(ctx context.Context) (page []ObjectSummary, more bool, err error)

// NewPageIterator adapts a paged backend listing to an ObjectIterator.
//
// Pages are fetched lazily, one backend request per exhausted page. The
// first error returned by fetch (or by ctx) is returned by Next from then on.
func NewPageIterator(ctx context.Context, fetch PageFunc) ObjectIterator {
	return &pageIterator{ctx: ctx, fetch: fetch}
}

type pageIterator struct {
	ctx   context.Context
	fetch PageFunc
	buf   []ObjectSummary
	done  bool
	err   error
}

func (it *pageIterator) Next() (ObjectSummary, error) {
	for len(it.buf) == 0 {
		if it.err != nil {
			return ObjectSummary{}, it.err
		}
		if it.done {
			return ObjectSummary{}, io.EOF
		}
		if err := it.ctx.Err(); err != nil {
			it.err = err
			return ObjectSummary{}, err
		}
		page, more, err := it.fetch(it.ctx)
		if err != nil {
			it.err = err
			return ObjectSummary{}, err
		}
		it.buf = page
		it.done = !more
	}

	obj := it.buf[0]
	it.buf = it.buf[1:]
	return obj, nil
}

// NewSliceIterator returns an iterator over a fixed set of entries.
func NewSliceIterator(objects []ObjectSummary) ObjectIterator {
	return &sliceIterator{objects: objects}
}

type sliceIterator struct {
	objects []ObjectSummary
	pos     int
}

func (it *sliceIterator) Next() (ObjectSummary, error) {
	if it.pos >= len(it.objects) {
		return ObjectSummary{}, io.EOF
	}
	obj := it.objects[it.pos]
	it.pos++
	return obj, nil
}

// Collect drains it into a slice. Collect stops at the first error and
// returns the entries read so far alongside it.
func Collect(it ObjectIterator) ([]ObjectSummary, error) {
	var out []ObjectSummary
	for {
		obj, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, obj)
	}
}

// GroupByDelimiter emulates store-side delimiter grouping for providers whose
// backend has none.
//
// objects must be sorted by key and already filtered to prefix. Keys that
// contain delimiter after prefix collapse into a single entry keyed by the
// group prefix (including the delimiter), reported at the position of the
// group's first member. An empty delimiter returns objects unchanged.
func GroupByDelimiter(objects []ObjectSummary, prefix, delimiter string) []ObjectSummary {
	if delimiter == "" {
		return objects
	}

	out := make([]ObjectSummary, 0, len(objects))
	lastGroup := ""
	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, prefix)
		idx := strings.Index(rest, delimiter)
		if idx < 0 {
			out = append(out, obj)
			continue
		}
		group := prefix + rest[:idx+len(delimiter)]
		if group == lastGroup {
			continue
		}
		lastGroup = group
		out = append(out, ObjectSummary{Key: group})
	}
	return out
}
