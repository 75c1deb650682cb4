package storage

import (
	"errors"
	"strings"
)

var (
	// ErrNotSupported indicates the operation has no meaning for a flat
	// object store.
	ErrNotSupported = errors.New("not supported")

	// ErrDeleteRoot indicates DeleteDirectory was asked to delete the root.
	ErrDeleteRoot = errors.New("will not delete root")
)

// Operation names used in OperationError.
const (
	OpWrite              = "write"
	OpRead               = "read"
	OpDelete             = "delete"
	OpDeleteDirectory    = "delete directory"
	OpCreateDirectory    = "create directory"
	OpFileExists         = "check file existence"
	OpDirectoryExists    = "check directory existence"
	OpListContents       = "list contents"
	OpRetrieveMetadata   = "retrieve metadata"
	OpRetrieveVisibility = "retrieve visibility"
	OpSetVisibility      = "set visibility"
	OpCopy               = "copy"
	OpMove               = "move"
)

// OperationError reports a failed adapter operation.
//
// Path and Destination are logical paths as passed by the caller. Err is the
// underlying cause; provider sentinels remain reachable through errors.Is.
type OperationError struct {
	Op          string
	Path        string
	Destination string
	Reason      string
	Err         error
}

func (e *OperationError) Error() string {
	var b strings.Builder
	b.WriteString("unable to ")
	b.WriteString(e.Op)
	b.WriteString(" ")
	b.WriteString(quote(e.Path))
	if e.Destination != "" {
		b.WriteString(" to ")
		b.WriteString(quote(e.Destination))
	}
	switch {
	case e.Reason != "":
		b.WriteString(": ")
		b.WriteString(e.Reason)
	case e.Err != nil:
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

func quote(p string) string {
	return `"` + p + `"`
}

// IsNotSupported returns true if err indicates an unsupported operation.
func IsNotSupported(err error) bool {
	return errors.Is(err, ErrNotSupported)
}
