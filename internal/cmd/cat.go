package cmd

import (
	"io"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"

	"github.com/3leaps/swiftfs/pkg/provider"
)

var catCmd = &cobra.Command{
	Use:   "cat <uri>",
	Short: "Write a file's contents to stdout",
	Args:  cobra.ExactArgs(1),
	RunE:  runCat,
}

func init() {
	rootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
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

	rc, err := adapter.ReadStream(ctx, loc.Path)
	if err != nil {
		if provider.IsNotFound(err) {
			return exitError(foundry.ExitFileNotFound, "No such file", err)
		}
		return exitError(foundry.ExitFileReadError, "Failed to read file", err)
	}
	defer func() { _ = rc.Close() }()

	if _, err := io.Copy(cmd.OutOrStdout(), rc); err != nil {
		return exitError(foundry.ExitFileReadError, "Failed to read file", err)
	}
	return nil
}
