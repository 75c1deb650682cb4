package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePattern(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"", ""},
		{"data/2024/**", "data/2024/**"},
		{`data\2024\x`, "data/2024/x"},
		{`data\2024\**`, `data/2024\**`},
		{`data/file\*.txt`, `data/file\*.txt`},
		{`data\\x`, `data\\x`},
		{`trailing\`, "trailing/"},
		{"data//2024", "data//2024"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePattern(tt.input))
		})
	}
}

func TestIsGlobPattern(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"data/**/*.parquet", true},
		{"data/file?.csv", true},
		{"logs/{a,b}", true},
		{"data/[0-9]", true},
		{`data/file\*.txt`, false},
		{"path/to/file.txt", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, IsGlobPattern(tt.input))
		})
	}
}

func TestDerivePrefix(t *testing.T) {
	tests := []struct {
		input, want string
	}{
		{"data/2024/**/*.parquet", "data/2024/"},
		{"*.json", ""},
		{"logs/app-{a,b}/*.log", "logs/"},
		{"exact/path/file.txt", "exact/path/file.txt"},
		{"data/[0-9]*/*.csv", "data/"},
		{"prefix/", "prefix/"},
		{"data/2024-*", "data/"},
		{"file*", ""},
		{`data/file\*.txt`, "data/file*.txt"},
		{`data/\[backup\]/*.log`, "data/[backup]/"},
		{`data\2024\sub/*.csv`, "data/2024/sub/"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePrefix(tt.input))
		})
	}
}

func TestIsHidden(t *testing.T) {
	assert.False(t, IsHidden(""))
	assert.False(t, IsHidden("path/to/file.txt"))
	assert.False(t, IsHidden("path/to/file.txt."))
	assert.True(t, IsHidden(".hidden"))
	assert.True(t, IsHidden("path/.git/config"))
	assert.True(t, IsHidden("path/to/.gitignore"))
}
