// Package provider defines abstractions for flat object storage.
//
// Providers expose a store whose keys are opaque strings. Any directory-like
// structure is a convention on top of the key space ("/"-delimited segments,
// optional zero-byte marker objects ending in "/"). Providers never invent
// directories themselves; delimiter grouping is the only hierarchical feature
// they are asked to support.
package provider

import (
	"context"
	"time"
)

// Provider abstracts object store enumeration and metadata lookup.
//
// Implementations should:
//   - Use SDK default credential chains where the SDK offers one
//   - Report grouped children as entries whose key ends in the delimiter
//   - Be safe for concurrent use
type Provider interface {
	// List starts an enumeration of keys at or under opts.Prefix.
	// The returned iterator is consumed once and is not restartable.
	List(ctx context.Context, opts ListOptions) (ObjectIterator, error)

	// Head returns metadata for a single object.
	// Returns ErrNotFound if the object does not exist.
	Head(ctx context.Context, key string) (*ObjectMeta, error)

	// Close releases any resources held by the provider.
	Close() error
}

// ListOptions configures a List operation.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	// Empty string lists all objects.
	Prefix string

	// Delimiter enables grouping of keys sharing Prefix up to the next
	// occurrence of Delimiter. Each group is reported once, as an entry whose
	// key is the group prefix including the delimiter (e.g. "photos/2024/").
	// Empty string disables grouping and returns the full recursive set.
	Delimiter string

	// PageSize limits the number of keys fetched per backend request.
	// Zero uses the provider default.
	PageSize int
}

// ObjectIterator is a pull-based stream of listing entries.
type ObjectIterator interface {
	// Next returns the next entry, or io.EOF once the listing is exhausted.
	// Any other error is an enumeration failure; the iterator must not be
	// used after it returned a non-nil error.
	Next() (ObjectSummary, error)
}

// ObjectSummary contains basic metadata returned from List operations.
type ObjectSummary struct {
	// Key is the full object key (path) in the container.
	Key string

	// Size is the object size in bytes.
	Size uint64

	// ContentType is the MIME type as reported by the store, possibly
	// carrying parameters ("text/html; charset=UTF-8").
	ContentType string

	// ETag is the entity tag, typically an MD5 hash of the object.
	ETag string

	// LastModified is when the object was last modified.
	// The zero value means the store did not report a parsed timestamp.
	LastModified time.Time

	// LastModifiedRaw is the store-specific textual timestamp, for stores
	// that report it without parsing.
	LastModifiedRaw string
}

// ObjectMeta contains full metadata for a single object.
// Returned by Head operations.
type ObjectMeta struct {
	ObjectSummary

	// Metadata contains user-defined metadata key-value pairs.
	Metadata map[string]string
}

// ProviderType identifies a storage provider.
type ProviderType string

const (
	// ProviderSwift represents OpenStack Swift.
	ProviderSwift ProviderType = "swift"

	// ProviderS3 represents AWS S3 or S3-compatible storage.
	ProviderS3 ProviderType = "s3"

	// ProviderFile represents a local directory.
	ProviderFile ProviderType = "file"

	// ProviderMemory represents an in-process store.
	ProviderMemory ProviderType = "mem"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}
