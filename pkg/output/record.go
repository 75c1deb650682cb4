// Package output provides JSONL and table output for listings and file
// operations.
//
// JSONL output is structured as typed record envelopes containing entries,
// operation results, errors and summaries. Each line is a self-contained
// JSON object that can be parsed independently.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/3leaps/swiftfs/pkg/listing"
)

// Record type constants define the envelope types for JSONL output.
// These follow the pattern: swiftfs.<type>.v<version>
const (
	// TypeEntry identifies listing entry records.
	TypeEntry = "swiftfs.entry.v1"

	// TypeOperation identifies write/copy/move/delete result records.
	TypeOperation = "swiftfs.operation.v1"

	// TypeError identifies error records.
	TypeError = "swiftfs.error.v1"

	// TypeSummary identifies final summary records.
	TypeSummary = "swiftfs.summary.v1"

	// TypeUsage identifies per-directory usage records.
	TypeUsage = "swiftfs.usage.v1"
)

// Record is the envelope for all JSONL output.
//
// Each line of JSONL output contains a Record with a type-specific
// payload in the Data field. The type field determines how to
// interpret the Data payload.
type Record struct {
	// Type identifies the record type (e.g., "swiftfs.entry.v1").
	Type string `json:"type"`

	// TS is the timestamp when the record was created (RFC3339Nano).
	TS time.Time `json:"ts"`

	// JobID is the correlation ID for this command invocation.
	JobID string `json:"job_id"`

	// Provider identifies the storage provider (e.g., "swift", "s3").
	Provider string `json:"provider"`

	// Data contains the type-specific payload as raw JSON.
	Data json.RawMessage `json:"data"`
}

// EntryRecord is the data payload for one listing entry.
type EntryRecord struct {
	// Kind is "file" or "directory".
	Kind listing.Kind `json:"kind"`

	// Path is relative to the adapter root, without a trailing "/".
	Path string `json:"path"`

	// Size is the object size in bytes. Nil for directories.
	Size *uint64 `json:"size,omitempty"`

	// LastModified is nil when the store did not report a time.
	LastModified *time.Time `json:"last_modified,omitempty"`

	// MimeType is the primary media type, if known.
	MimeType string `json:"mime_type,omitempty"`
}

// NewEntryRecord converts a listing entry to its output payload.
func NewEntryRecord(e listing.Entry) *EntryRecord {
	rec := &EntryRecord{Kind: e.Kind(), Path: e.Path()}
	if t, ok := e.LastModified(); ok {
		rec.LastModified = &t
	}
	if f, ok := e.(listing.File); ok {
		size := f.Size()
		rec.Size = &size
		rec.MimeType = f.MimeType()
	}
	return rec
}

// OperationRecord is the data payload for a completed mutation.
type OperationRecord struct {
	// Op names the operation ("write", "copy", "move", "delete", ...).
	Op string `json:"op"`

	// Path is the source or target path.
	Path string `json:"path"`

	// Destination is set for copy and move.
	Destination string `json:"destination,omitempty"`

	// Bytes is the number of bytes written, when known.
	Bytes int64 `json:"bytes,omitempty"`
}

// ErrorRecord is the data payload for errors.
//
// Errors are emitted as records rather than failing the entire command,
// allowing partial results when some operations fail.
type ErrorRecord struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`

	// Path is the logical path related to this error, if applicable.
	Path string `json:"path,omitempty"`

	// Details contains additional error context.
	Details any `json:"details,omitempty"`
}

// Error codes for ErrorRecord.
const (
	// ErrCodeAccessDenied indicates permission failure.
	ErrCodeAccessDenied = "ACCESS_DENIED"

	// ErrCodeNotFound indicates the object or container was not found.
	ErrCodeNotFound = "NOT_FOUND"

	// ErrCodeTimeout indicates an operation timed out.
	ErrCodeTimeout = "TIMEOUT"

	// ErrCodeThrottled indicates rate limiting.
	ErrCodeThrottled = "THROTTLED"

	// ErrCodeProviderUnavailable indicates the backend is unreachable.
	ErrCodeProviderUnavailable = "UNAVAILABLE"

	// ErrCodeNotSupported indicates an operation the store cannot perform.
	ErrCodeNotSupported = "NOT_SUPPORTED"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal = "INTERNAL"
)

// UsageRecord is the data payload for one directory's aggregated usage.
type UsageRecord struct {
	// Path is the directory, relative to the adapter root. Empty is the root.
	Path string `json:"path"`

	// Files is the number of files at or below Path.
	Files int64 `json:"files"`

	// Bytes is the total size of those files.
	Bytes int64 `json:"bytes"`
}

// SummaryRecord is the data payload for final summaries.
//
// A summary record is emitted at the end of a listing with aggregate
// statistics.
type SummaryRecord struct {
	// Files is the number of file entries emitted.
	Files int64 `json:"files"`

	// Directories is the number of directory entries emitted.
	Directories int64 `json:"directories"`

	// BytesTotal is the cumulative size of emitted files in bytes.
	BytesTotal int64 `json:"bytes_total"`

	// Duration is the total listing duration.
	Duration time.Duration `json:"duration_ns"`

	// DurationHuman is a human-readable duration string.
	DurationHuman string `json:"duration"`

	// Errors is the count of errors encountered.
	Errors int64 `json:"errors"`
}

// Writer errors.
var (
	// ErrWriterClosed is returned when writing to a closed writer.
	ErrWriterClosed = errors.New("writer is closed")
)

// WriteError wraps errors that occur during write operations.
type WriteError struct {
	Op  string // Operation that failed (e.g., "marshal_data", "write")
	Err error  // Underlying error
}

func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
