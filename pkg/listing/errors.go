package listing

import (
	"errors"
	"fmt"
)

// ErrMalformedEntry indicates the provider returned a key outside the
// queried prefix.
var ErrMalformedEntry = errors.New("malformed listing entry")

// MalformedEntryError describes a key that does not lie under the query
// prefix. Listing stops at the first such entry.
type MalformedEntryError struct {
	Key    string
	Prefix string
}

func (e *MalformedEntryError) Error() string {
	return fmt.Sprintf("listing: key %q is outside query prefix %q", e.Key, e.Prefix)
}

func (e *MalformedEntryError) Unwrap() error {
	return ErrMalformedEntry
}
