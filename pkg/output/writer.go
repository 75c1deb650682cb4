package output

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/swiftfs/pkg/listing"
)

// Writer outputs command results.
//
// Implementations must be safe for concurrent use from multiple
// goroutines.
type Writer interface {
	// WriteEntry emits a listing entry.
	WriteEntry(ctx context.Context, entry *EntryRecord) error

	// WriteOperation emits the result of a mutation.
	WriteOperation(ctx context.Context, op *OperationRecord) error

	// WriteError emits an error record.
	WriteError(ctx context.Context, err *ErrorRecord) error

	// WriteSummary emits a summary record.
	WriteSummary(ctx context.Context, sum *SummaryRecord) error

	// Close flushes any buffered output and releases resources.
	Close() error
}

// UsageWriter is a Writer that can also emit directory usage records.
type UsageWriter interface {
	Writer
	WriteUsage(ctx context.Context, u *UsageRecord) error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
//
// JSONLWriter is safe for concurrent use. Writes are serialized using
// a mutex to ensure atomic line writes (no interleaved output).
type JSONLWriter struct {
	w        io.Writer
	jobID    string
	provider string
	now      func() time.Time
	mu       sync.Mutex

	// closed indicates the writer has been closed.
	closed bool
}

// NewJSONLWriter creates a new JSONL writer.
//
// Parameters:
//   - w: The underlying writer (stdout, file, etc.)
//   - jobID: Correlation ID for this invocation
//   - provider: Storage provider identifier (e.g., "swift")
func NewJSONLWriter(w io.Writer, jobID, provider string) *JSONLWriter {
	return &JSONLWriter{
		w:        w,
		jobID:    jobID,
		provider: provider,
		now:      time.Now,
	}
}

// WriteEntry emits an entry record.
func (jw *JSONLWriter) WriteEntry(ctx context.Context, entry *EntryRecord) error {
	return jw.writeRecord(ctx, TypeEntry, entry)
}

// WriteOperation emits an operation record.
func (jw *JSONLWriter) WriteOperation(ctx context.Context, op *OperationRecord) error {
	return jw.writeRecord(ctx, TypeOperation, op)
}

// WriteError emits an error record.
func (jw *JSONLWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return jw.writeRecord(ctx, TypeError, err)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, sum)
}

// WriteUsage emits a usage record.
func (jw *JSONLWriter) WriteUsage(ctx context.Context, u *UsageRecord) error {
	return jw.writeRecord(ctx, TypeUsage, u)
}

// Close marks the writer as closed.
//
// If the underlying writer implements io.Closer, it is NOT closed.
// The caller is responsible for closing the underlying writer.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

// writeRecord marshals data and writes a complete record line.
//
// This method holds the mutex for the entire operation to ensure
// atomic line writes.
func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:     recordType,
		TS:       jw.now().UTC(),
		JobID:    jw.jobID,
		Provider: jw.provider,
		Data:     dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may return n < len(p) with a nil error; a truncated line
	// would corrupt the stream.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}

	return nil
}

// writeAll writes all bytes to w, handling short writes.
func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			// No progress made - avoid infinite loop
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// TableWriter renders records as aligned, human-readable columns.
//
// Rows are buffered by a tabwriter and flushed on Close.
type TableWriter struct {
	mu     sync.Mutex
	tw     *tabwriter.Writer
	closed bool
}

// NewTableWriter creates a table writer on w.
func NewTableWriter(w io.Writer) *TableWriter {
	return &TableWriter{tw: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

// WriteEntry emits one row: kind, size, modification time, path.
func (tw *TableWriter) WriteEntry(ctx context.Context, entry *EntryRecord) error {
	size := "-"
	if entry.Size != nil {
		size = humanize.IBytes(*entry.Size)
	}
	modified := "-"
	if entry.LastModified != nil {
		modified = entry.LastModified.UTC().Format(time.DateTime)
	}
	path := entry.Path
	if entry.Kind == listing.KindDirectory {
		path += "/"
	}
	return tw.row(ctx, "%s\t%s\t%s\t%s\n", entry.Kind, size, modified, path)
}

// WriteOperation emits one row describing a mutation.
func (tw *TableWriter) WriteOperation(ctx context.Context, op *OperationRecord) error {
	target := op.Path
	if op.Destination != "" {
		target += " -> " + op.Destination
	}
	bytes := ""
	if op.Bytes > 0 {
		bytes = humanize.IBytes(uint64(op.Bytes))
	}
	return tw.row(ctx, "%s\t%s\t%s\n", op.Op, target, bytes)
}

// WriteError emits an error row.
func (tw *TableWriter) WriteError(ctx context.Context, err *ErrorRecord) error {
	return tw.row(ctx, "error\t%s\t%s\t%s\n", err.Code, err.Path, err.Message)
}

// WriteSummary emits the totals line.
func (tw *TableWriter) WriteSummary(ctx context.Context, sum *SummaryRecord) error {
	return tw.row(ctx, "\ntotal\t%s files, %s directories\t%s\t%s\n",
		humanize.Comma(sum.Files),
		humanize.Comma(sum.Directories),
		humanize.IBytes(uint64(max(sum.BytesTotal, 0))),
		sum.DurationHuman,
	)
}

// WriteUsage emits "files  bytes  path" with a trailing "/" on the path.
func (tw *TableWriter) WriteUsage(ctx context.Context, u *UsageRecord) error {
	p := u.Path + "/"
	if u.Path == "" {
		p = "."
	}
	return tw.row(ctx, "%s\t%s\t%s\n",
		humanize.Comma(u.Files),
		humanize.IBytes(uint64(max(u.Bytes, 0))),
		p,
	)
}

// Close flushes buffered rows.
func (tw *TableWriter) Close() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return nil
	}
	tw.closed = true
	return tw.tw.Flush()
}

func (tw *TableWriter) row(ctx context.Context, format string, args ...any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tw.mu.Lock()
	defer tw.mu.Unlock()
	if tw.closed {
		return ErrWriterClosed
	}
	if _, err := fmt.Fprintf(tw.tw, format, args...); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

// Compile-time checks that the writers implement UsageWriter.
var (
	_ UsageWriter = (*JSONLWriter)(nil)
	_ UsageWriter = (*TableWriter)(nil)
)
