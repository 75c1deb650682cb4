package match

import "strings"

// Glob metacharacters that can be escaped with backslash in patterns.
const globEscapable = `*?[]{}\`

// NormalizePattern converts a user-provided glob pattern to canonical form.
//
// Unescaped backslashes become forward slashes so Windows-style patterns
// work. Escapes of glob metacharacters (\*, \?, \[ ...) are preserved.
//
//	"data\2024\x"     → "data/2024/x"
//	"data\2024\**"    → "data/2024\**"
//	"data/file\*.txt" → "data/file\*.txt"
func NormalizePattern(pattern string) string {
	if !strings.ContainsRune(pattern, '\\') {
		return pattern
	}

	var b strings.Builder
	b.Grow(len(pattern))
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 < len(pattern) && strings.IndexByte(globEscapable, pattern[i+1]) >= 0 {
			b.WriteByte('\\')
			b.WriteByte(pattern[i+1])
			i++
			continue
		}
		b.WriteByte('/')
	}
	return b.String()
}

// IsGlobPattern reports whether pattern contains an unescaped glob
// metacharacter.
//
//	"data/**/*.parquet" → true
//	"data/file\*.txt"   → false
//	"path/to/file.txt"  → false
func IsGlobPattern(pattern string) bool {
	return firstMeta(pattern) != -1
}

// DerivePrefix returns the static leading part of a glob pattern,
// truncated to the last complete path segment. Escaped metacharacters are
// unescaped in the result.
//
//	"data/2024/**/*.parquet" → "data/2024/"
//	"*.json"                 → ""
//	"logs/app-{a,b}/*.log"   → "logs/"
//	"exact/path/file.txt"    → "exact/path/file.txt"
//	"data/\[backup\]/*.log"  → "data/[backup]/"
func DerivePrefix(pattern string) string {
	pattern = NormalizePattern(pattern)

	idx := firstMeta(pattern)
	switch idx {
	case -1:
		return unescape(pattern)
	case 0:
		return ""
	}

	static := pattern[:idx]
	slash := strings.LastIndexByte(static, '/')
	if slash < 0 {
		return ""
	}
	return unescape(static[:slash+1])
}

// IsHidden reports whether any segment of path starts with a dot.
//
//	"path/to/file.txt" → false
//	"path/.git/config" → true
//	"file.txt."        → false
func IsHidden(path string) bool {
	for seg := range strings.SplitSeq(path, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// firstMeta returns the index of the first unescaped metacharacter, or -1.
func firstMeta(pattern string) int {
	for i := 0; i < len(pattern); i++ {
		switch pattern[i] {
		case '\\':
			if i+1 < len(pattern) && strings.IndexByte(`*?[{\`, pattern[i+1]) >= 0 {
				i++
			}
		case '*', '?', '[', '{':
			return i
		}
	}
	return -1
}

func unescape(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && strings.IndexByte(globEscapable, s[i+1]) >= 0 {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
