package listing

import (
	"strconv"
	"strings"
	"time"

	"github.com/3leaps/swiftfs/pkg/pathprefix"
	"github.com/3leaps/swiftfs/pkg/provider"
)

// timestampLayouts are the textual forms stores use for modification times.
// Layouts without a zone are interpreted as UTC.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999", // Swift container listings
	time.RFC3339Nano,
	time.RFC1123, // HTTP Last-Modified
	time.RFC1123Z,
	time.RFC850,
	time.ANSIC,
}

// Normalize converts one raw store entry into an Entry. The prefixer's base
// is stripped from the key; a key ending in "/" yields a Directory.
func Normalize(obj provider.ObjectSummary, prefixer pathprefix.Prefixer) Entry {
	modified := obj.LastModified
	if modified.IsZero() {
		modified, _ = ParseTimestamp(obj.LastModifiedRaw)
	}

	if strings.HasSuffix(obj.Key, pathprefix.Separator) {
		return NewDirectory(prefixer.StripDirectoryPrefix(obj.Key), modified)
	}
	return NewFile(prefixer.StripPrefix(obj.Key), obj.Size, modified, PrimaryMimeType(obj.ContentType))
}

// ParseTimestamp parses a store timestamp. Unix seconds are accepted as well
// as the layouts Swift, S3 and HTTP use. ok is false for empty or
// unrecognized input.
func ParseTimestamp(raw string) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), true
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// PrimaryMimeType drops parameters from a media type:
// "text/html; charset=UTF-8" → "text/html".
func PrimaryMimeType(contentType string) string {
	primary, _, _ := strings.Cut(contentType, ";")
	return strings.TrimSpace(primary)
}
