package provider

import (
	"context"
	"io"
	"time"
)

// Optional provider capability interfaces.
//
// These interfaces are used for feature detection (type assertions). The core
// Provider interface remains intentionally small.

// PutOptions carries per-object attributes for write operations.
type PutOptions struct {
	// ContentType is stored as the object's MIME type. Empty lets the store decide.
	ContentType string

	// DeleteAt schedules expiry at an absolute time. Zero disables it.
	DeleteAt time.Time

	// DeleteAfter schedules expiry relative to the upload. Zero disables it.
	DeleteAfter time.Duration
}

// ObjectPutter can create/overwrite objects.
//
// contentLength may be -1 when the size is not known in advance.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, contentLength int64, opts PutOptions) error
}

// ObjectDeleter can delete objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

// ObjectGetter can download objects as a stream.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) (body io.ReadCloser, contentLength int64, err error)
}

// ObjectCopier can copy objects on the server side.
type ObjectCopier interface {
	CopyObject(ctx context.Context, srcKey, dstKey string) error
}

// LargeObjectOptions configures a segmented upload.
type LargeObjectOptions struct {
	PutOptions

	// SegmentSize is the size of each segment in bytes.
	SegmentSize int64

	// SegmentContainer names the container receiving the segments.
	// Empty uses the provider's own container.
	SegmentContainer string
}

// LargeObjectPutter can upload objects in segments, linked by a manifest.
type LargeObjectPutter interface {
	PutLargeObject(ctx context.Context, key string, body io.Reader, opts LargeObjectOptions) error
}
