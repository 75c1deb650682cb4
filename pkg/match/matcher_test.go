package match

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/swiftfs/pkg/listing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "no patterns", cfg: Config{}},
		{name: "valid include", cfg: Config{Includes: []string{"data/**"}}},
		{name: "valid with excludes", cfg: Config{Includes: []string{"data/**"}, Excludes: []string{"**/_tmp/**"}}},
		{name: "invalid include", cfg: Config{Includes: []string{"[invalid"}}, wantErr: true},
		{name: "invalid exclude", cfg: Config{Excludes: []string{"[invalid"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				var perr *PatternError
				assert.True(t, errors.As(err, &perr))
				assert.ErrorIs(t, err, ErrInvalidPattern)
				assert.Equal(t, "[invalid", perr.Pattern)
				assert.Nil(t, m)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, m)
		})
	}
}

func TestMatcher_Match(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		path string
		want bool
	}{
		{"empty config matches", Config{}, "a/b.txt", true},
		{"empty config hides dotfiles", Config{}, "a/.b", false},
		{"hidden admitted", Config{IncludeHidden: true}, "a/.b", true},
		{"doublestar file", Config{Includes: []string{"data/**/*.csv"}}, "data/2024/01/x.csv", true},
		{"doublestar zero dirs", Config{Includes: []string{"data/**/*.csv"}}, "data/x.csv", true},
		{"doublestar wrong ext", Config{Includes: []string{"data/**/*.csv"}}, "data/2024/x.json", false},
		{"doublestar directory", Config{Includes: []string{"data/**"}}, "data/2024", true},
		{"single star stays in segment", Config{Includes: []string{"data/*.csv"}}, "data/2024/x.csv", false},
		{"exclude wins", Config{Includes: []string{"**"}, Excludes: []string{"**/_tmp/**"}}, "a/_tmp/x", false},
		{"exclude only", Config{Excludes: []string{"*.log"}}, "app.log", false},
		{"exclude only passes others", Config{Excludes: []string{"*.log"}}, "app.txt", true},
		{"leading slash pattern", Config{Includes: []string{"/data/*"}}, "data/x", true},
		{"brace alternatives", Config{Includes: []string{"logs/{a,b}/*"}}, "logs/b/1", true},
		{"escaped literal", Config{Includes: []string{`data/file\*.txt`}}, "data/file*.txt", true},
		{"escaped literal no glob", Config{Includes: []string{`data/file\*.txt`}}, "data/fileX.txt", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.Match(tt.path))
		})
	}
}

func TestMatcher_MatchEntry(t *testing.T) {
	m, err := New(Config{Includes: []string{"photos/**"}})
	require.NoError(t, err)

	assert.True(t, m.MatchEntry(listing.NewDirectory("photos/2024", time.Time{})))
	assert.True(t, m.MatchEntry(listing.NewFile("photos/2024/a.jpg", 1, time.Time{}, "")))
	assert.False(t, m.MatchEntry(listing.NewFile("docs/a.txt", 1, time.Time{}, "")))
}

func TestMatcher_RootAndDeep(t *testing.T) {
	tests := []struct {
		name     string
		includes []string
		root     string
		deep     bool
	}{
		{"none", nil, "", false},
		{"top level glob", []string{"*.csv"}, "", false},
		{"recursive from root", []string{"**/*.csv"}, "", true},
		{"one level", []string{"data/2024/*.csv"}, "data/2024", false},
		{"recursive", []string{"data/2024/**"}, "data/2024", true},
		{"glob in middle", []string{"data/*/x.csv"}, "data", true},
		{"exact file", []string{"exact/path/file.txt"}, "exact/path", false},
		{"shared parent", []string{"data/2024/*", "data/2025/*"}, "data", true},
		{"no shared parent", []string{"a/*", "b/*"}, "", true},
		{"partial segment", []string{"data/2024-*/*.csv"}, "data", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(Config{Includes: tt.includes})
			require.NoError(t, err)
			assert.Equal(t, tt.root, m.Root())
			assert.Equal(t, tt.deep, m.Deep())
		})
	}
}

func TestMatcher_Patterns(t *testing.T) {
	m, err := New(Config{Includes: []string{`a\*.csv`, `b\c`}, Excludes: []string{"x"}})
	require.NoError(t, err)

	assert.Equal(t, []string{`a\*.csv`, "b/c"}, m.IncludePatterns())
	assert.Equal(t, []string{"x"}, m.ExcludePatterns())

	// Returned slices are copies.
	m.IncludePatterns()[0] = "mutated"
	assert.Equal(t, `a\*.csv`, m.IncludePatterns()[0])
}
