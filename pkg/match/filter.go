package match

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/3leaps/swiftfs/pkg/listing"
)

// Filter evaluates whether a listing entry passes filter criteria.
type Filter interface {
	// Match returns true if the entry passes the filter.
	Match(e listing.Entry) bool

	// String returns a human-readable description of the filter.
	String() string
}

// FilterConfig holds filter criteria from configuration or CLI flags.
type FilterConfig struct {
	// Size specifies min/max size constraints. Directories never match a
	// size constraint.
	Size *SizeFilterConfig `json:"size,omitempty" yaml:"size,omitempty" mapstructure:"size"`

	// Modified specifies date range constraints. Entries without a
	// modification time never match a date constraint.
	Modified *DateFilterConfig `json:"modified,omitempty" yaml:"modified,omitempty" mapstructure:"modified"`

	// Kind restricts entries to "file" or "directory".
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty" mapstructure:"kind"`

	// PathRegex is applied to entry paths after glob matching.
	PathRegex string `json:"path_regex,omitempty" yaml:"path_regex,omitempty" mapstructure:"path_regex"`
}

// SizeFilterConfig specifies size constraints.
type SizeFilterConfig struct {
	// Min is the minimum size (inclusive). Supports "1KB", "100MiB".
	Min string `json:"min,omitempty" yaml:"min,omitempty" mapstructure:"min"`

	// Max is the maximum size (inclusive).
	Max string `json:"max,omitempty" yaml:"max,omitempty" mapstructure:"max"`
}

// DateFilterConfig specifies date range constraints.
type DateFilterConfig struct {
	// After keeps entries modified at or after this time.
	// Supports "2024-01-15" or "2024-01-15T10:30:00Z".
	After string `json:"after,omitempty" yaml:"after,omitempty" mapstructure:"after"`

	// Before keeps entries modified strictly before this time.
	Before string `json:"before,omitempty" yaml:"before,omitempty" mapstructure:"before"`
}

// Filter errors.
var (
	ErrInvalidSize  = errors.New("invalid size value")
	ErrInvalidDate  = errors.New("invalid date value")
	ErrInvalidRegex = errors.New("invalid regex pattern")
	ErrInvalidKind  = errors.New("invalid entry kind")
)

// SizeFilter filters files by size range.
type SizeFilter struct {
	min int64 // -1 means no minimum
	max int64 // -1 means no maximum
}

// NewSizeFilter creates a size filter. A nil or empty config yields nil.
func NewSizeFilter(cfg *SizeFilterConfig) (*SizeFilter, error) {
	if cfg == nil || (cfg.Min == "" && cfg.Max == "") {
		return nil, nil
	}

	f := &SizeFilter{min: -1, max: -1}
	if cfg.Min != "" {
		n, err := ParseSize(cfg.Min)
		if err != nil {
			return nil, fmt.Errorf("min: %w", err)
		}
		f.min = n
	}
	if cfg.Max != "" {
		n, err := ParseSize(cfg.Max)
		if err != nil {
			return nil, fmt.Errorf("max: %w", err)
		}
		f.max = n
	}
	if f.min >= 0 && f.max >= 0 && f.min > f.max {
		return nil, fmt.Errorf("%w: min %s exceeds max %s", ErrInvalidSize, cfg.Min, cfg.Max)
	}
	return f, nil
}

// Match returns true if e is a file within the size range.
func (f *SizeFilter) Match(e listing.Entry) bool {
	file, ok := e.(listing.File)
	if !ok {
		return false
	}
	size := file.Size()
	if f.min >= 0 && size < uint64(f.min) {
		return false
	}
	if f.max >= 0 && size > uint64(f.max) {
		return false
	}
	return true
}

func (f *SizeFilter) String() string {
	switch {
	case f.min >= 0 && f.max >= 0:
		return fmt.Sprintf("size[%s..%s]", humanize.IBytes(uint64(f.min)), humanize.IBytes(uint64(f.max)))
	case f.min >= 0:
		return fmt.Sprintf("size>=%s", humanize.IBytes(uint64(f.min)))
	default:
		return fmt.Sprintf("size<=%s", humanize.IBytes(uint64(f.max)))
	}
}

// DateFilter filters entries by modification time.
type DateFilter struct {
	after  time.Time // zero means no lower bound
	before time.Time // zero means no upper bound
}

// NewDateFilter creates a date filter. A nil or empty config yields nil.
func NewDateFilter(cfg *DateFilterConfig) (*DateFilter, error) {
	if cfg == nil || (cfg.After == "" && cfg.Before == "") {
		return nil, nil
	}

	f := &DateFilter{}
	if cfg.After != "" {
		t, err := ParseDate(cfg.After)
		if err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
		f.after = t
	}
	if cfg.Before != "" {
		t, err := ParseDate(cfg.Before)
		if err != nil {
			return nil, fmt.Errorf("before: %w", err)
		}
		f.before = t
	}
	if !f.after.IsZero() && !f.before.IsZero() && !f.after.Before(f.before) {
		return nil, fmt.Errorf("%w: after %s is not before %s", ErrInvalidDate, cfg.After, cfg.Before)
	}
	return f, nil
}

// Match returns true if e has a modification time in [after, before).
func (f *DateFilter) Match(e listing.Entry) bool {
	t, ok := e.LastModified()
	if !ok {
		return false
	}
	if !f.after.IsZero() && t.Before(f.after) {
		return false
	}
	if !f.before.IsZero() && !t.Before(f.before) {
		return false
	}
	return true
}

func (f *DateFilter) String() string {
	var parts []string
	if !f.after.IsZero() {
		parts = append(parts, "after="+f.after.Format(time.RFC3339))
	}
	if !f.before.IsZero() {
		parts = append(parts, "before="+f.before.Format(time.RFC3339))
	}
	return "modified[" + strings.Join(parts, ",") + "]"
}

// KindFilter keeps entries of one kind.
type KindFilter struct {
	kind listing.Kind
}

// NewKindFilter creates a kind filter. Empty yields nil.
func NewKindFilter(kind string) (*KindFilter, error) {
	switch listing.Kind(kind) {
	case "":
		return nil, nil
	case listing.KindFile, listing.KindDirectory:
		return &KindFilter{kind: listing.Kind(kind)}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidKind, kind)
}

// Match returns true if e has the configured kind.
func (f *KindFilter) Match(e listing.Entry) bool {
	return e.Kind() == f.kind
}

func (f *KindFilter) String() string {
	return "kind=" + string(f.kind)
}

// RegexFilter filters entries by a regular expression on the path.
type RegexFilter struct {
	re *regexp.Regexp
}

// NewRegexFilter compiles pattern. Empty yields nil.
func NewRegexFilter(pattern string) (*RegexFilter, error) {
	if pattern == "" {
		return nil, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
	}
	return &RegexFilter{re: re}, nil
}

// Match returns true if the path matches the expression.
func (f *RegexFilter) Match(e listing.Entry) bool {
	return f.re.MatchString(e.Path())
}

func (f *RegexFilter) String() string {
	return "path~" + f.re.String()
}

// CompositeFilter combines filters with AND logic.
type CompositeFilter struct {
	filters []Filter
}

// NewCompositeFilter creates a composite filter, skipping nil filters.
func NewCompositeFilter(filters ...Filter) *CompositeFilter {
	kept := make([]Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			kept = append(kept, f)
		}
	}
	return &CompositeFilter{filters: kept}
}

// NewFilterFromConfig builds a composite filter from cfg. A nil config
// yields an empty filter that matches everything.
func NewFilterFromConfig(cfg *FilterConfig) (*CompositeFilter, error) {
	if cfg == nil {
		return NewCompositeFilter(), nil
	}

	var filters []Filter
	size, err := NewSizeFilter(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("size filter: %w", err)
	}
	if size != nil {
		filters = append(filters, size)
	}

	date, err := NewDateFilter(cfg.Modified)
	if err != nil {
		return nil, fmt.Errorf("modified filter: %w", err)
	}
	if date != nil {
		filters = append(filters, date)
	}

	kind, err := NewKindFilter(cfg.Kind)
	if err != nil {
		return nil, fmt.Errorf("kind filter: %w", err)
	}
	if kind != nil {
		filters = append(filters, kind)
	}

	re, err := NewRegexFilter(cfg.PathRegex)
	if err != nil {
		return nil, fmt.Errorf("path regex filter: %w", err)
	}
	if re != nil {
		filters = append(filters, re)
	}

	return NewCompositeFilter(filters...), nil
}

// Match returns true if e passes every filter.
func (f *CompositeFilter) Match(e listing.Entry) bool {
	for _, filter := range f.filters {
		if !filter.Match(e) {
			return false
		}
	}
	return true
}

func (f *CompositeFilter) String() string {
	if len(f.filters) == 0 {
		return "all"
	}
	parts := make([]string, len(f.filters))
	for i, filter := range f.filters {
		parts[i] = filter.String()
	}
	return strings.Join(parts, " AND ")
}

// Filters returns the component filters.
func (f *CompositeFilter) Filters() []Filter {
	return f.filters
}

// Empty reports whether the composite has no component filters.
func (f *CompositeFilter) Empty() bool {
	return len(f.filters) == 0
}

// ParseSize parses a human-readable size such as "1024", "1KB" (1000
// bytes) or "1.5 MiB" (IEC, base 2).
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidSize
	}
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%w: size overflows int64", ErrInvalidSize)
	}
	return int64(n), nil
}

// ParseDate parses an ISO 8601 date ("2024-01-15", start of day UTC) or
// RFC 3339 datetime. Results are normalized to UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDate
	}
	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}
