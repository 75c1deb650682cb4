// Package match filters listing entries with doublestar glob patterns and
// attribute filters (size, modification time, kind, path regex).
package match

import (
	"errors"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/3leaps/swiftfs/pkg/listing"
)

// Matcher evaluates include/exclude glob patterns against entry paths.
//
// Paths are relative to the adapter root and carry no trailing slash, so
// "data/**" matches both the directory "data/2024" and the file
// "data/2024/a.csv".
//
// The Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes      []string
	excludes      []string
	includeHidden bool
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns an entry must match (at least one).
	// Empty matches every path.
	Includes []string `mapstructure:"includes" yaml:"includes"`

	// Excludes are glob patterns an entry must not match.
	Excludes []string `mapstructure:"excludes" yaml:"excludes"`

	// IncludeHidden admits paths with a segment starting with '.'.
	IncludeHidden bool `mapstructure:"include_hidden" yaml:"include_hidden"`
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a Matcher, normalizing and validating every pattern.
func New(cfg Config) (*Matcher, error) {
	includes, err := compile(cfg.Includes)
	if err != nil {
		return nil, err
	}
	excludes, err := compile(cfg.Excludes)
	if err != nil {
		return nil, err
	}
	return &Matcher{
		includes:      includes,
		excludes:      excludes,
		includeHidden: cfg.IncludeHidden,
	}, nil
}

func compile(raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		p := strings.TrimPrefix(NormalizePattern(r), "/")
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: r, Err: ErrInvalidPattern}
		}
		out = append(out, p)
	}
	return out, nil
}

// Match reports whether path passes the hidden check, at least one include
// (if any are configured) and no exclude.
func (m *Matcher) Match(path string) bool {
	if !m.includeHidden && IsHidden(path) {
		return false
	}

	if len(m.includes) > 0 {
		matched := false
		for _, inc := range m.includes {
			if matchPattern(inc, path) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, exc := range m.excludes {
		if matchPattern(exc, path) {
			return false
		}
	}
	return true
}

// MatchEntry applies Match to the entry's path.
func (m *Matcher) MatchEntry(e listing.Entry) bool {
	return m.Match(e.Path())
}

// Root returns the deepest directory that contains every path the include
// patterns can match, without a trailing slash. Empty means the whole
// adapter root must be listed.
func (m *Matcher) Root() string {
	if len(m.includes) == 0 {
		return ""
	}

	root := dirOf(DerivePrefix(m.includes[0]))
	for _, inc := range m.includes[1:] {
		root = commonDir(root, dirOf(DerivePrefix(inc)))
	}
	return strings.TrimSuffix(root, "/")
}

// Deep reports whether some include pattern can match paths more than one
// level below Root, which requires a recursive listing.
func (m *Matcher) Deep() bool {
	root := m.Root()
	if root != "" {
		root += "/"
	}
	for _, inc := range m.includes {
		rest := strings.TrimPrefix(inc, root)
		if strings.Contains(rest, "/") || strings.Contains(rest, "**") {
			return true
		}
	}
	return false
}

// IncludePatterns returns the normalized include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string(nil), m.includes...)
}

// ExcludePatterns returns the normalized exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string(nil), m.excludes...)
}

// dirOf truncates p after its last "/".
func dirOf(p string) string {
	i := strings.LastIndexByte(p, '/')
	if i < 0 {
		return ""
	}
	return p[:i+1]
}

// commonDir returns the longest shared prefix of two directory prefixes
// that ends on a segment boundary.
func commonDir(a, b string) string {
	n := min(len(a), len(b))
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return dirOf(a[:i])
}

func matchPattern(pattern, path string) bool {
	matched, err := doublestar.Match(pattern, path)
	if err != nil {
		return false
	}
	return matched
}
