package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/match"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/storage"
)

var putCmd = &cobra.Command{
	Use:   "put <local-file|-> <uri>",
	Short: "Upload a local file or stdin",
	Long: `Upload a local file, or stdin when the source is "-", to a path in a
store. Files above the configured large-object threshold are uploaded as
segmented large objects where the store supports them.

Examples:
  swiftfs put report.pdf swift://docs/2024/report.pdf
  tar cz dir | swiftfs put - swift://backups/dir.tgz --expire-after 720h
  swiftfs put data.bin s3://bucket/data.bin --content-type application/octet-stream`,
	Args: cobra.ExactArgs(2),
	RunE: runPut,
}

var (
	putContentType string
	putDetectType  bool
	putExpireAfter time.Duration
	putExpireAt    string
	putOutput      string
)

func init() {
	rootCmd.AddCommand(putCmd)

	putCmd.Flags().StringVar(&putContentType, "content-type", "", "Content type to store")
	putCmd.Flags().BoolVar(&putDetectType, "detect-type", true, "Detect the content type from the data when --content-type is unset")
	putCmd.Flags().DurationVar(&putExpireAfter, "expire-after", 0, "Delete the object after this duration")
	putCmd.Flags().StringVar(&putExpireAt, "expire-at", "", "Delete the object at this time (RFC3339 or YYYY-MM-DD)")
	putCmd.Flags().StringVarP(&putOutput, "output", "o", "", "Output format (jsonl|table)")
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	loc, err := ParseURI(args[1])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if loc.IsPattern() {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", fmt.Errorf("destination %s contains glob characters", loc))
	}
	if loc.Path == "" {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", fmt.Errorf("destination %s has no file path", loc))
	}

	opts := storage.WriteOptions{
		ContentType:       putContentType,
		DetectContentType: putDetectType,
		DeleteAfter:       putExpireAfter,
	}
	if putExpireAt != "" {
		at, err := match.ParseDate(putExpireAt)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid --expire-at value", err)
		}
		opts.DeleteAt = at
	}

	var src io.Reader
	if args[0] == "-" {
		src = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return exitError(foundry.ExitFileNotFound, "Cannot open source file", err)
		}
		defer func() { _ = f.Close() }()
		info, err := f.Stat()
		if err != nil {
			return exitError(foundry.ExitFileReadError, "Cannot stat source file", err)
		}
		if info.IsDir() {
			return exitError(foundry.ExitInvalidArgument, "Invalid source", fmt.Errorf("%s is a directory", args[0]))
		}
		opts.Size = info.Size()
		src = f
	}

	adapter, err := openAdapter(ctx, loc, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = adapter.Close() }()

	counter := &countingReader{r: src}
	if err := adapter.WriteStream(ctx, loc.Path, counter, opts); err != nil {
		observability.CLILogger.Error("Upload failed", zap.String("uri", loc.String()), zap.Error(err))
		return exitError(foundry.ExitFileWriteError, "Upload failed", err)
	}

	return writeOperation(cmd, putOutput, cfg.List.Output, string(loc.Scheme), &output.OperationRecord{
		Op:    "write",
		Path:  loc.Path,
		Bytes: counter.n,
	})
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// writeOperation emits a single operation record.
func writeOperation(cmd *cobra.Command, flag, configured, providerName string, rec *output.OperationRecord) error {
	writer, _, err := newWriter(cmd.OutOrStdout(), outputFormat(flag, configured), providerName)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	if err := writer.WriteOperation(cmd.Context(), rec); err != nil {
		_ = writer.Close()
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	if err := writer.Close(); err != nil {
		return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
	}
	return nil
}
