package cmd

import (
	"errors"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/listing"
	"github.com/3leaps/swiftfs/pkg/output"
)

var duCmd = &cobra.Command{
	Use:   "du <uri>",
	Short: "Summarize file counts and sizes per directory",
	Long: `Summarize a directory as a tree: each directory down to --depth is
reported with the number and total size of the files at or below it.
The requested directory itself is reported last.

Examples:
  swiftfs du swift://photos
  swiftfs du swift://photos/2024 --depth 2 --output table`,
	Args: cobra.ExactArgs(1),
	RunE: runDu,
}

var (
	duDepth  int
	duOutput string
)

func init() {
	rootCmd.AddCommand(duCmd)
	duCmd.Flags().IntVar(&duDepth, "depth", 1, "Directory levels to report below the path (0=path only)")
	duCmd.Flags().StringVarP(&duOutput, "output", "o", "", "Output format (jsonl|table)")
}

func runDu(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}
	loc, err := ParseURI(args[0])
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
	}
	if duDepth < 0 {
		return exitError(foundry.ExitInvalidArgument, "Invalid --depth value", errors.New("depth must not be negative"))
	}

	adapter, err := openAdapter(ctx, loc, cfg)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = adapter.Close() }()

	w, _, err := newWriter(cmd.OutOrStdout(), outputFormat(duOutput, cfg.List.Output), string(loc.Scheme))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	writer := w.(output.UsageWriter)
	defer func() { _ = writer.Close() }()

	it, err := adapter.ListContents(ctx, loc.Path, true)
	if err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Listing failed", err)
	}

	usage := newUsageTree(loc.Path, duDepth)
	for {
		entry, err := it.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return exitError(foundry.ExitSignalInt, "Listing cancelled", err)
			}
			observability.CLILogger.Error("Listing failed", zap.String("uri", loc.String()), zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Listing failed", err)
		}
		usage.add(entry)
	}

	for _, rec := range usage.records() {
		if err := writer.WriteUsage(ctx, rec); err != nil {
			return exitError(foundry.ExitFileWriteError, "Failed to write output", err)
		}
	}
	return nil
}

// usageTree accumulates file counts and bytes for every directory within
// depth levels of root.
type usageTree struct {
	root  string
	depth int
	dirs  map[string]*output.UsageRecord
}

func newUsageTree(root string, depth int) *usageTree {
	root = strings.Trim(root, "/")
	return &usageTree{
		root:  root,
		depth: depth,
		dirs:  map[string]*output.UsageRecord{root: {Path: root}},
	}
}

func (u *usageTree) add(e listing.Entry) {
	rel := e.Path()
	if u.root != "" {
		rel = strings.TrimPrefix(rel, u.root+"/")
	}
	segs := strings.Split(rel, "/")

	// Directories count themselves; files count toward their parents.
	parents := segs[:len(segs)-1]
	if e.Kind() == listing.KindDirectory {
		parents = segs
	}

	for d := 0; d <= min(u.depth, len(parents)); d++ {
		key := path.Join(append([]string{u.root}, parents[:d]...)...)
		rec, ok := u.dirs[key]
		if !ok {
			rec = &output.UsageRecord{Path: key}
			u.dirs[key] = rec
		}
		if f, ok := e.(listing.File); ok {
			rec.Files++
			rec.Bytes += int64(f.Size())
		}
	}
}

// records returns subdirectories in path order followed by the root.
func (u *usageTree) records() []*output.UsageRecord {
	out := make([]*output.UsageRecord, 0, len(u.dirs))
	for key, rec := range u.dirs {
		if key != u.root {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return append(out, u.dirs[u.root])
}
