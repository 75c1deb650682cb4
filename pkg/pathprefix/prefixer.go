// Package pathprefix translates between logical paths and store keys under a
// fixed base directory.
//
// A Prefixer is immutable and safe for concurrent use.
//
// Examples with base "tenant/a":
//
//	PrefixPath("docs/x.txt")          → "tenant/a/docs/x.txt"
//	PrefixDirectoryPath("docs")       → "tenant/a/docs/"
//	PrefixDirectoryPath("")           → "tenant/a/"
//	StripPrefix("tenant/a/docs/x")    → "docs/x"
//	StripDirectoryPrefix("tenant/a/docs/") → "docs"
package pathprefix

import "strings"

// Separator is the path segment separator.
const Separator = "/"

// Prefixer applies and removes a base directory.
type Prefixer struct {
	prefix string
}

// New returns a Prefixer for base. Surrounding separators on base are
// normalized so that the stored prefix is either empty or ends in exactly
// one Separator. A base consisting only of separators maps to "/".
func New(base string) Prefixer {
	trimmed := strings.TrimRight(strings.TrimSpace(base), Separator)
	if trimmed != "" {
		return Prefixer{prefix: trimmed + Separator}
	}
	if strings.TrimSpace(base) != "" {
		return Prefixer{prefix: Separator}
	}
	return Prefixer{}
}

// Prefix returns the normalized base ("" or ending in Separator).
func (p Prefixer) Prefix() string {
	return p.prefix
}

// Len returns the number of bytes stripped from every key.
func (p Prefixer) Len() int {
	return len(p.prefix)
}

// PrefixPath maps a logical file path to a store key. Leading separators on
// path are dropped.
func (p Prefixer) PrefixPath(path string) string {
	return p.prefix + strings.TrimLeft(path, Separator)
}

// PrefixDirectoryPath maps a logical directory path to a key prefix that ends
// in Separator, or to the base itself for the root ("" or "/").
func (p Prefixer) PrefixDirectoryPath(path string) string {
	prefixed := p.PrefixPath(strings.TrimRight(path, Separator))
	if prefixed == "" || strings.HasSuffix(prefixed, Separator) {
		return prefixed
	}
	return prefixed + Separator
}

// StripPrefix maps a store key back to a logical path. Keys outside the base
// are returned unchanged; use HasPrefix to detect them.
func (p Prefixer) StripPrefix(key string) string {
	return strings.TrimPrefix(key, p.prefix)
}

// StripDirectoryPrefix is StripPrefix with trailing separators removed, for
// keys naming pseudo-directories.
func (p Prefixer) StripDirectoryPrefix(key string) string {
	return strings.TrimRight(p.StripPrefix(key), Separator)
}

// HasPrefix reports whether key lies under the base.
func (p Prefixer) HasPrefix(key string) bool {
	return strings.HasPrefix(key, p.prefix)
}
