package cmd

import (
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/content"
	"github.com/3leaps/swiftfs/pkg/provider"
)

var headCmd = &cobra.Command{
	Use:   "head <uri>...",
	Short: "Print the first bytes of files",
	Long: `Print the first bytes of one or more files. Files are read in
parallel; with more than one file each is preceded by a "==> uri <=="
header, in argument order.

Examples:
  swiftfs head swift://logs/app.log
  swiftfs head -c 64 swift://data/a.bin swift://data/b.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHead,
}

var (
	headBytes    int64
	headParallel int
)

func init() {
	rootCmd.AddCommand(headCmd)
	headCmd.Flags().Int64VarP(&headBytes, "bytes", "c", 512, "Number of bytes to print")
	headCmd.Flags().IntVar(&headParallel, "parallel", 4, "Files read in parallel")
}

func runHead(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	if headBytes < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --bytes value", content.ErrNegativeLength)
	}

	locs := make([]*Location, 0, len(args))
	for _, arg := range args {
		loc, err := ParseURI(arg)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
		}
		if loc.IsPattern() || loc.Path == "" {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", fmt.Errorf("%s does not name a file", loc))
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

	keys := make([]string, len(locs))
	for i, loc := range locs {
		keys[i] = adapter.Prefixer().PrefixPath(loc.Path)
	}

	results := content.HeadBytesMulti(ctx, adapter.Provider(), keys, headBytes, headParallel)
	if err := ctx.Err(); err != nil {
		return exitError(foundry.ExitSignalInt, "Read cancelled", err)
	}

	out := cmd.OutOrStdout()
	var firstErr error
	for i, loc := range locs {
		r := results[i]
		if r.Err != nil {
			observability.CLILogger.Error("Read failed", zap.String("uri", loc.String()), zap.Error(r.Err))
			if firstErr == nil {
				firstErr = r.Err
			}
			continue
		}
		if len(locs) > 1 {
			if i > 0 {
				_, _ = fmt.Fprintln(out)
			}
			_, _ = fmt.Fprintf(out, "==> %s <==\n", loc)
		}
		if _, err := out.Write(r.Data); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
	}

	if firstErr != nil {
		if provider.IsNotFound(firstErr) {
			return exitError(foundry.ExitFileNotFound, "No such file", firstErr)
		}
		return exitError(foundry.ExitFileReadError, "Failed to read file", firstErr)
	}
	return nil
}
