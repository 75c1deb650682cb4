package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/crawler"
	"github.com/3leaps/swiftfs/pkg/match"
)

var lsCmd = &cobra.Command{
	Use:   "ls <uri>...",
	Short: "List directory contents",
	Long: `List the files and directories under one or more paths of a store.

Directories are derived from object names, so "a/b/c.txt" shows up as
directory "a", directory "a/b" and file "a/b/c.txt" in a recursive listing.
Glob patterns in the URI select entries and imply recursion when they
span directories.

Examples:
  swiftfs ls swift://photos/2024
  swiftfs ls -r swift://photos/2024 --output table
  swiftfs ls 'swift://photos/**/*.jpg' --min-size 1MiB
  swiftfs ls -r s3://bucket/logs --exclude '**/*.tmp' --after 2024-01-01`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLs,
}

var (
	lsRecursive   bool
	lsIncludes    []string
	lsExcludes    []string
	lsHidden      bool
	lsMinSize     string
	lsMaxSize     string
	lsAfter       string
	lsBefore      string
	lsKind        string
	lsRegex       string
	lsOutput      string
	lsConcurrency int
	lsRateLimit   float64
)

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "List all descendants")
	lsCmd.Flags().StringArrayVar(&lsIncludes, "include", nil, "Glob of paths to include (repeatable)")
	lsCmd.Flags().StringArrayVar(&lsExcludes, "exclude", nil, "Glob of paths to exclude (repeatable)")
	lsCmd.Flags().BoolVar(&lsHidden, "hidden", false, "Include dot-prefixed paths when filtering by glob")
	lsCmd.Flags().StringVar(&lsMinSize, "min-size", "", "Minimum file size (e.g. 1KiB, 5MB)")
	lsCmd.Flags().StringVar(&lsMaxSize, "max-size", "", "Maximum file size")
	lsCmd.Flags().StringVar(&lsAfter, "after", "", "Modified at or after (RFC3339 or YYYY-MM-DD)")
	lsCmd.Flags().StringVar(&lsBefore, "before", "", "Modified before (RFC3339 or YYYY-MM-DD)")
	lsCmd.Flags().StringVar(&lsKind, "kind", "", "Only entries of this kind (file|directory)")
	lsCmd.Flags().StringVar(&lsRegex, "regex", "", "Only paths matching this regular expression")
	lsCmd.Flags().StringVarP(&lsOutput, "output", "o", "", "Output format (jsonl|table)")
	lsCmd.Flags().IntVar(&lsConcurrency, "concurrency", 0, "Paths listed in parallel")
	lsCmd.Flags().Float64Var(&lsRateLimit, "rate-limit", 0, "Max listings started per second (0=unlimited)")
}

func runLs(cmd *cobra.Command, args []string) error {
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
		if len(locs) > 0 && !locs[0].SameStore(loc) {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI",
				fmt.Errorf("%s and %s are in different stores", locs[0], loc))
		}
		locs = append(locs, loc)
	}

	includes := append([]string(nil), lsIncludes...)
	roots := make([]string, 0, len(locs))
	for _, loc := range locs {
		roots = append(roots, loc.Path)
		if loc.IsPattern() {
			includes = append(includes, loc.Pattern)
		}
	}

	var matcher *match.Matcher
	if len(includes) > 0 || len(lsExcludes) > 0 {
		matcher, err = match.New(match.Config{
			Includes:      includes,
			Excludes:      lsExcludes,
			IncludeHidden: lsHidden || cfg.List.IncludeHidden,
		})
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid match patterns", err)
		}
	}

	filter, err := buildLsFilter()
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid filters", err)
	}

	deep := lsRecursive || (matcher != nil && matcher.Deep())

	adapter, err := openAdapter(ctx, locs[0], cfg)
	if err != nil {
		observability.CLILogger.Error("Failed to open store", zap.String("uri", locs[0].String()), zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
	}
	defer func() { _ = adapter.Close() }()

	writer, jobID, err := newWriter(cmd.OutOrStdout(), outputFormat(lsOutput, cfg.List.Output), string(locs[0].Scheme))
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid --output value", err)
	}
	defer func() { _ = writer.Close() }()

	concurrency := lsConcurrency
	if concurrency <= 0 {
		concurrency = cfg.List.Concurrency
	}
	rateLimit := lsRateLimit
	if rateLimit <= 0 {
		rateLimit = cfg.List.RateLimit
	}

	c := crawler.New(adapter.Provider(), adapter.Prefixer(), writer, crawler.Config{
		Deep:        deep,
		Concurrency: concurrency,
		RateLimit:   rateLimit,
		PageSize:    cfg.Storage.PageSize,
	}).WithLogger(observability.CLILogger)
	if matcher != nil {
		c.WithMatcher(matcher)
	}
	if filter != nil {
		c.WithFilter(filter)
	}

	observability.CLILogger.Debug("Starting listing",
		zap.String("job_id", jobID),
		zap.Strings("roots", roots),
		zap.Bool("deep", deep),
		zap.Strings("includes", includes))

	summary, err := c.Run(ctx, roots)
	if err != nil {
		if ctx.Err() != nil {
			return exitError(foundry.ExitSignalInt, "Listing cancelled", err)
		}
		observability.CLILogger.Error("Listing failed", zap.String("job_id", jobID), zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Listing failed", err)
	}

	observability.CLILogger.Debug("Listing completed",
		zap.String("job_id", jobID),
		zap.Int64("files", summary.Files),
		zap.Int64("directories", summary.Directories),
		zap.Int64("bytes_total", summary.BytesTotal),
		zap.Duration("duration", summary.Duration))

	if summary.Errors > 0 {
		return exitError(foundry.ExitExternalServiceUnavailable, "Listing incomplete",
			fmt.Errorf("%d of %d paths failed", summary.Errors, len(summary.Roots)))
	}
	return nil
}

func buildLsFilter() (*match.CompositeFilter, error) {
	fc := &match.FilterConfig{
		Kind:      strings.ToLower(lsKind),
		PathRegex: lsRegex,
	}
	if lsMinSize != "" || lsMaxSize != "" {
		fc.Size = &match.SizeFilterConfig{Min: lsMinSize, Max: lsMaxSize}
	}
	if lsAfter != "" || lsBefore != "" {
		fc.Modified = &match.DateFilterConfig{After: lsAfter, Before: lsBefore}
	}

	f, err := match.NewFilterFromConfig(fc)
	if err != nil {
		return nil, err
	}
	if f == nil || f.Empty() {
		return nil, nil
	}
	return f, nil
}
