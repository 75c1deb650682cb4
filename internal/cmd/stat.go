package cmd

import (
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/listing"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/provider"
)

var statCmd = &cobra.Command{
	Use:   "stat <uri>",
	Short: "Show metadata for a file or directory",
	Long: `Show the size, modification time and MIME type of a file.

When no object exists at the path but objects exist beneath it, the path
is reported as a directory.

Examples:
  swiftfs stat swift://photos/2024/a.jpg
  swiftfs stat swift://photos/2024 --output table`,
	Args: cobra.ExactArgs(1),
	RunE: runStat,
}

var statOutput string

func init() {
	rootCmd.AddCommand(statCmd)
	statCmd.Flags().StringVarP(&statOutput, "output", "o", "", "Output format (jsonl|table)")
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	loc, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}

	adapter, err := openAdapter(ctx, loc, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = adapter.Close() }()

	writer, _, err := newWriter(cmd.OutOrStdout(), outputFormat(statOutput, cfg.List.Output), string(loc.Scheme))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = writer.Close() }()

	entry, err := adapter.Stat(ctx, loc.Path)
	if provider.IsNotFound(err) {
		isDir, dirErr := adapter.DirectoryExists(ctx, loc.Path)
		if dirErr != nil {
			err = dirErr
		} else if isDir {
			entry, err = listing.NewDirectory(loc.Path, time.Time{}), nil
		}
	}
	if err != nil {
		observability.CLILogger.Debug("Stat failed", zap.String("uri", loc.String()), zap.Error(err))
		if provider.IsNotFound(err) {
			return exitError(foundry.ExitFileNotFound, "No such file or directory", err)
		}
		return exitError(foundry.ExitExternalServiceUnavailable, "Stat failed", err)
	}

	if err := writer.WriteEntry(ctx, output.NewEntryRecord(entry)); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}
