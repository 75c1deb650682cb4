package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/provider"
)

var rmCmd = &cobra.Command{
	Use:   "rm <uri>...",
	Short: "Delete files or directories",
	Long: `Delete files, or whole directories with --recursive.

A path that cannot be deleted is reported as an error record and the
remaining paths are still attempted. Recursive deletes honor the
configured storage.delete_rate_limit.

Examples:
  swiftfs rm swift://photos/2024/a.jpg
  swiftfs rm -r swift://photos/2023`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRm,
}

var (
	rmRecursive bool
	rmOutput    string
)

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().BoolVarP(&rmRecursive, "recursive", "r", false, "Delete directories and their contents")
	rmCmd.Flags().StringVarP(&rmOutput, "output", "o", "", "Output format (jsonl|table)")
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	locs := make([]*Location, 0, len(args))
	for _, arg := range args {
		loc, err := ParseURI(arg)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
		}
		if loc.IsPattern() {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", fmt.Errorf("%s contains glob characters", loc))
		}
		if len(locs) > 0 && !locs[0].SameStore(loc) {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI",
				fmt.Errorf("%s and %s are in different stores", locs[0], loc))
		}
		locs = append(locs, loc)
	}

	adapter, err := openAdapter(ctx, locs[0], cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = adapter.Close() }()

	writer, _, err := newWriter(cmd.OutOrStdout(), outputFormat(rmOutput, cfg.List.Output), string(locs[0].Scheme))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = writer.Close() }()

	var failed int
	for _, loc := range locs {
		op := "delete"
		if rmRecursive {
			op = "delete_directory"
			err = adapter.DeleteDirectory(ctx, loc.Path)
		} else {
			err = adapter.Delete(ctx, loc.Path)
		}
		if err != nil {
			if ctx.Err() != nil {
				return exitError(foundry.ExitSignalInt, "Delete cancelled", err)
			}
			failed++
			observability.CLILogger.Warn("Delete failed", zap.String("uri", loc.String()), zap.Error(err))
			_ = writer.WriteError(ctx, &output.ErrorRecord{
				Code:    errorCode(err),
				Message: err.Error(),
				Path:    loc.Path,
			})
			continue
		}
		if err := writer.WriteOperation(ctx, &output.OperationRecord{Op: op, Path: loc.Path}); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
	}

	if failed > 0 {
		return exitError(foundry.ExitFileWriteError, "Delete incomplete", fmt.Errorf("%d of %d paths failed", failed, len(locs)))
	}
	return nil
}

// errorCode maps err to an output error code.
func errorCode(err error) string {
	switch {
	case provider.IsNotFound(err), provider.IsContainerNotFound(err):
		return output.ErrCodeNotFound
	case provider.IsAccessDenied(err), provider.IsInvalidCredentials(err):
		return output.ErrCodeAccessDenied
	case provider.IsThrottled(err):
		return output.ErrCodeThrottled
	case provider.IsProviderUnavailable(err):
		return output.ErrCodeProviderUnavailable
	}
	return output.ErrCodeInternal
}
