package cmd

import (
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, the config file, SWIFTFS_*
environment variables and command-line flags have been applied.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := currentConfig(cmd.Context())
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	out, err := cfg.YAML()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Cannot render configuration", err)
	}
	if _, err := cmd.OutOrStdout().Write(out); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}
