// Package content reads leading bytes of stored objects.
package content

import (
	"context"
	"errors"
	"io"

	"github.com/3leaps/swiftfs/pkg/provider"
)

// HeadResult is the outcome of reading the head of one object.
type HeadResult struct {
	Key  string
	Meta *provider.ObjectMeta
	Data []byte
	Err  error
}

// ErrNegativeLength is returned when a negative byte count is requested.
var ErrNegativeLength = errors.New("head bytes must be >= 0")

// HeadBytes reads the first n bytes of the object at key.
//
// Head is always performed first so metadata is returned even when n is
// zero. Objects shorter than n yield their full content.
func HeadBytes(ctx context.Context, p provider.Provider, key string, n int64) ([]byte, *provider.ObjectMeta, error) {
	if n < 0 {
		return nil, nil, ErrNegativeLength
	}

	meta, err := p.Head(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if n == 0 || meta.Size == 0 {
		return nil, meta, nil
	}

	g, ok := p.(provider.ObjectGetter)
	if !ok {
		return nil, meta, errors.New("provider does not support GetObject")
	}

	body, _, err := g.GetObject(ctx, key)
	if err != nil {
		return nil, meta, err
	}
	defer func() { _ = body.Close() }()

	b, err := io.ReadAll(io.LimitReader(body, n))
	if err != nil {
		return nil, meta, err
	}
	return b, meta, nil
}
