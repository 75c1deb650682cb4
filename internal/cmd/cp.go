package cmd

import (
	"context"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/config"
	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/listing"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/provider"
	"github.com/3leaps/swiftfs/pkg/storage"
)

var cpCmd = &cobra.Command{
	Use:   "cp <src-uri> <dst-uri>",
	Short: "Copy a file",
	Long: `Copy a file. Copies within one container use the store's server-side
copy; copies between stores stream the data through this process.

Examples:
  swiftfs cp swift://photos/a.jpg swift://photos/archive/a.jpg
  swiftfs cp swift://photos/a.jpg s3://mirror/photos/a.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args, false)
	},
}

var mvCmd = &cobra.Command{
	Use:   "mv <src-uri> <dst-uri>",
	Short: "Move a file",
	Long: `Move a file: copy it to the destination, then delete the source.

Examples:
  swiftfs mv swift://inbox/a.jpg swift://inbox/done/a.jpg`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd, args, true)
	},
}

var transferOutput string

func init() {
	rootCmd.AddCommand(cpCmd)
	rootCmd.AddCommand(mvCmd)
	cpCmd.Flags().StringVarP(&transferOutput, "output", "o", "", "Output format (jsonl|table)")
	mvCmd.Flags().StringVarP(&transferOutput, "output", "o", "", "Output format (jsonl|table)")
}

func runTransfer(cmd *cobra.Command, args []string, move bool) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	src, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid source URI", err)
	}
	dst, err := ParseURI(args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid destination URI", err)
	}
	for _, loc := range []*Location{src, dst} {
		if loc.IsPattern() || loc.Path == "" {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", fmt.Errorf("%s does not name a file", loc))
		}
	}

	op := "copy"
	if move {
		op = "move"
	}

	srcAdapter, err := openAdapter(ctx, src, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = srcAdapter.Close() }()

	if src.SameStore(dst) {
		if move {
			err = srcAdapter.Move(ctx, src.Path, dst.Path)
		} else {
			err = srcAdapter.Copy(ctx, src.Path, dst.Path)
		}
	} else {
		err = transferAcross(ctx, srcAdapter, dst, cfg, move, src.Path)
	}
	if err != nil {
		observability.CLILogger.Error("Transfer failed",
			zap.String("op", op),
			zap.String("src", src.String()),
			zap.String("dst", dst.String()),
			zap.Error(err))
		if provider.IsNotFound(err) {
			return exitError(foundry.ExitFileNotFound, "No such file", err)
		}
		return exitError(foundry.ExitFileWriteError, "Transfer failed", err)
	}

	return writeOperation(cmd, transferOutput, cfg.List.Output, string(src.Scheme), &output.OperationRecord{
		Op:          op,
		Path:        src.Path,
		Destination: dst.String(),
	})
}

// transferAcross streams a file between two stores.
func transferAcross(ctx context.Context, from *storage.Adapter, dst *Location, cfg *config.Config, move bool, path string) error {
	to, err := openAdapter(ctx, dst, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = to.Close() }()

	entry, err := from.Stat(ctx, path)
	if err != nil {
		return err
	}
	rc, err := from.ReadStream(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	opts := storage.WriteOptions{}
	if f, ok := entry.(listing.File); ok {
		opts.Size = int64(f.Size())
		opts.ContentType = f.MimeType()
	}
	if err := to.WriteStream(ctx, dst.Path, rc, opts); err != nil {
		return err
	}
	if move {
		return from.Delete(ctx, path)
	}
	return nil
}
