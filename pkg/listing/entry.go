package listing

import (
	"encoding/json"
	"time"
)

// Kind discriminates the Entry variants.
type Kind string

const (
	// KindFile marks a stored object.
	KindFile Kind = "file"

	// KindDirectory marks a pseudo-directory.
	KindDirectory Kind = "directory"
)

// Entry is one item of a hierarchical listing. It is either a File or a
// Directory; the set of implementations is closed.
type Entry interface {
	// Path returns the entry's path relative to the adapter root, without a
	// trailing separator.
	Path() string

	// Kind reports which variant the entry is.
	Kind() Kind

	// LastModified returns the modification time, if the store reported one.
	LastModified() (time.Time, bool)

	entry()
}

// File is a stored object.
type File struct {
	path     string
	size     uint64
	modified time.Time
	mimeType string
}

// NewFile returns a File entry. A zero modified time means unknown and an
// empty mimeType means none was reported.
func NewFile(path string, size uint64, modified time.Time, mimeType string) File {
	return File{path: path, size: size, modified: modified, mimeType: mimeType}
}

func (f File) Path() string { return f.path }
func (File) Kind() Kind { return KindFile }
func (File) entry() {}

// Size returns the object size in bytes.
func (f File) Size() uint64 { return f.size }

// MimeType returns the primary media type, or "" when none was reported.
func (f File) MimeType() string { return f.mimeType }

func (f File) LastModified() (time.Time, bool) {
	return f.modified, !f.modified.IsZero()
}

// MarshalJSON renders the entry with its kind and nullable fields.
func (f File) MarshalJSON() ([]byte, error) {
	rec := entryJSON{
		Type:         KindFile,
		Path:         f.path,
		Size:         &f.size,
		LastModified: timePtr(f.modified),
	}
	if f.mimeType != "" {
		rec.MimeType = &f.mimeType
	}
	return json.Marshal(rec)
}

// Directory is a pseudo-directory. It never corresponds to a stored object
// other than an optional zero-length marker whose key ends in "/".
type Directory struct {
	path     string
	modified time.Time
}

// NewDirectory returns a Directory entry. A zero modified time means unknown.
func NewDirectory(path string, modified time.Time) Directory {
	return Directory{path: path, modified: modified}
}

func (d Directory) Path() string { return d.path }
func (Directory) Kind() Kind { return KindDirectory }
func (Directory) entry() {}

func (d Directory) LastModified() (time.Time, bool) {
	return d.modified, !d.modified.IsZero()
}

// MarshalJSON renders the entry with its kind and nullable fields.
func (d Directory) MarshalJSON() ([]byte, error) {
	return json.Marshal(entryJSON{
		Type:         KindDirectory,
		Path:         d.path,
		LastModified: timePtr(d.modified),
	})
}

type entryJSON struct {
	Type         Kind       `json:"type"`
	Path         string     `json:"path"`
	Size         *uint64    `json:"size,omitempty"`
	LastModified *time.Time `json:"last_modified"`
	MimeType     *string    `json:"mime_type,omitempty"`
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
