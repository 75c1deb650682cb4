package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/3leaps/swiftfs/pkg/output"
)

// Output formats accepted by --output.
const (
	formatJSONL = "jsonl"
	formatTable = "table"
)

// newWriter returns a writer for format on w with a fresh job id.
func newWriter(w io.Writer, format, providerName string) (output.Writer, string, error) {
	jobID := uuid.New().String()
	switch strings.ToLower(format) {
	case "", formatJSONL:
		return output.NewJSONLWriter(w, jobID, providerName), jobID, nil
	case formatTable:
		return output.NewTableWriter(w), jobID, nil
	}
	return nil, "", fmt.Errorf("unsupported output format %q (expected jsonl or table)", format)
}

// outputFormat resolves the --output flag against the configured default.
func outputFormat(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}
