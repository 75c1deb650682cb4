package storage

import (
	"errors"
	"time"
)

const (
	// DefaultLargeObjectThreshold is the stream size above which writes are
	// uploaded as segmented large objects (300 MiB).
	DefaultLargeObjectThreshold int64 = 300 << 20

	// DefaultSegmentSize is the size of each large-object segment (100 MiB).
	DefaultSegmentSize int64 = 100 << 20

	// DefaultSpoolMemoryBytes controls how much of an unsized stream is
	// buffered in memory before spooling to a temp file.
	DefaultSpoolMemoryBytes int64 = 16 << 20
)

// Config configures an Adapter.
type Config struct {
	// Prefix is the base directory applied to every path.
	Prefix string `mapstructure:"prefix" yaml:"prefix"`

	// LargeObjectThreshold is the size in bytes above which WriteStream
	// switches to a segmented upload, when the provider supports one.
	// Default: 300 MiB
	LargeObjectThreshold int64 `mapstructure:"large_object_threshold" yaml:"large_object_threshold"`

	// SegmentSize is the segment size for large-object uploads.
	// Default: 100 MiB
	SegmentSize int64 `mapstructure:"segment_size" yaml:"segment_size"`

	// SegmentContainer receives large-object segments.
	// Empty uses the provider's own default (the object's container for Swift).
	SegmentContainer string `mapstructure:"segment_container" yaml:"segment_container"`

	// DeleteRateLimit caps object deletions per second during
	// DeleteDirectory. Zero means unlimited.
	DeleteRateLimit float64 `mapstructure:"delete_rate_limit" yaml:"delete_rate_limit"`

	// PageSize is passed to the provider for listings. Zero uses the
	// provider default.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// SpoolMemoryBytes bounds in-memory buffering of unsized streams.
	// Default: 16 MiB
	SpoolMemoryBytes int64 `mapstructure:"spool_memory_bytes" yaml:"spool_memory_bytes"`
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		LargeObjectThreshold: DefaultLargeObjectThreshold,
		SegmentSize:          DefaultSegmentSize,
		SpoolMemoryBytes:     DefaultSpoolMemoryBytes,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.LargeObjectThreshold < 0:
		return errors.New("storage config: large_object_threshold must not be negative")
	case c.SegmentSize < 0:
		return errors.New("storage config: segment_size must not be negative")
	case c.DeleteRateLimit < 0:
		return errors.New("storage config: delete_rate_limit must not be negative")
	case c.PageSize < 0:
		return errors.New("storage config: page_size must not be negative")
	case c.SpoolMemoryBytes < 0:
		return errors.New("storage config: spool_memory_bytes must not be negative")
	}
	return nil
}

// withDefaults fills zero values from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.LargeObjectThreshold == 0 {
		c.LargeObjectThreshold = def.LargeObjectThreshold
	}
	if c.SegmentSize == 0 {
		c.SegmentSize = def.SegmentSize
	}
	if c.SpoolMemoryBytes == 0 {
		c.SpoolMemoryBytes = def.SpoolMemoryBytes
	}
	return c
}

// WriteOptions configures a single write.
type WriteOptions struct {
	// ContentType is stored with the object. Empty leaves it to the
	// provider unless DetectContentType is set.
	ContentType string

	// DetectContentType sniffs the content type from the first bytes of the
	// body when ContentType is empty.
	DetectContentType bool

	// DeleteAt schedules the object for expiry at an absolute time.
	DeleteAt time.Time

	// DeleteAfter schedules the object for expiry relative to the write.
	DeleteAfter time.Duration

	// Size is the body length in bytes, if known. Zero or negative means
	// unknown; the adapter then derives it from the reader or spools it.
	Size int64
}
