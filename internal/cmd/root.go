// Package cmd implements the swiftfs command line.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/swiftfs/internal/config"
	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/internal/server/handlers"
)

// VersionInfo holds build metadata injected by main.
type VersionInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

var versionInfo = VersionInfo{Version: "dev", Commit: "unknown", BuildDate: "unknown"}

var (
	appIdentity *config.Identity
	appConfig   *config.Config
)

var (
	rootConfigFile string
	rootLogLevel   string
	rootLogFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "swiftfs",
	Short: "Filesystem-style access to Swift and other flat object stores",
	Long: `swiftfs presents a flat object store as a hierarchical filesystem.

Objects are addressed by URI:
  swift://container/path     OpenStack Swift (credentials from OS_* environment)
  s3://bucket/path           Amazon S3 or an S3-compatible store
  file:///base/dir//path     local directory treated as a flat store
  mem://name/path            in-process store (testing)

Directories are derived from "/" separators in object names; directory
marker objects are honored but never required.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initApp,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootConfigFile, "config", "", "Config file (default ./swiftfs.yaml or user config dir)")
	rootCmd.PersistentFlags().StringVar(&rootLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
	rootCmd.PersistentFlags().StringVar(&rootLogFormat, "log-format", "", "Log format (console|json)")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo records build metadata for version output and /version.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
	handlers.SetVersionInfo(version, commit, buildDate)
}

// GetAppIdentity returns the loaded application identity, or nil before
// the first command runs.
func GetAppIdentity() *config.Identity {
	return appIdentity
}

func initApp(cmd *cobra.Command, _ []string) error {
	config.SetConfigFile(rootConfigFile)

	overrides := map[string]any{}
	logging := map[string]any{}
	if rootLogLevel != "" {
		logging["level"] = rootLogLevel
	}
	if rootLogFormat != "" {
		logging["format"] = rootLogFormat
	}
	if len(logging) > 0 {
		overrides["logging"] = logging
	}

	cfg, err := config.Load(cmd.Context(), overrides)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if err := observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid logging configuration", err)
	}

	appConfig = cfg
	appIdentity = config.GetIdentity()
	return nil
}

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: %v (exit code %d)", e.Message, e.Err, e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// exitError creates an error that will cause the CLI to exit with the given code.
func exitError(code int, message string, err error) error {
	return &ExitError{Code: code, Message: message, Err: err}
}

// ExitCode returns the exit code carried by err: 0 for nil, the
// ExitError code when present, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	return 1
}
