// Package observability holds the process-wide logger and metrics.
package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// CLILogger is the logger used by commands. It is a no-op until
// InitCLILogger runs.
var CLILogger = zap.NewNop()

var loggerMu sync.Mutex

// Log formats accepted by InitCLILogger.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// InitCLILogger replaces CLILogger with a logger writing to stderr at the
// given level ("debug", "info", "warn", "error") and format ("console" or
// "json"). Stdout stays reserved for command output.
func InitCLILogger(level, format string) error {
	logger, err := NewLogger(level, format)
	if err != nil {
		return err
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	_ = CLILogger.Sync()
	CLILogger = logger
	return nil
}

// NewLogger builds a stderr logger without touching CLILogger.
func NewLogger(level, format string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(level)))); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch strings.ToLower(format) {
	case "", FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return nil, fmt.Errorf("invalid log format %q (expected console or json)", format)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), lvl)
	return zap.New(core, zap.AddCaller()), nil
}
