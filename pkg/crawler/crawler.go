// Package crawler runs listings of one or more logical directories as a
// bounded streaming pipeline.
//
// The crawler coordinates three stages:
//   - Lister: Runs a listing.Lister per root (parallelized by root)
//   - Matcher: Filters entries by glob patterns and attribute filters
//   - Writer: Emits matched entries as output records
//
// Bounded channels between stages provide backpressure to prevent memory
// exhaustion on large containers.
package crawler

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/swiftfs/pkg/listing"
	"github.com/3leaps/swiftfs/pkg/match"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/pathprefix"
	"github.com/3leaps/swiftfs/pkg/provider"
)

// Config configures crawler behavior.
type Config struct {
	// Deep lists every descendant of each root instead of direct children.
	Deep bool

	// Concurrency is the number of roots listed in parallel.
	// Default: 4
	Concurrency int

	// ChannelBuffer is the size of bounded channels between pipeline stages.
	// Default: 1000
	ChannelBuffer int

	// RateLimit is the maximum listings started per second.
	// Zero means unlimited.
	RateLimit float64

	// PageSize is passed to the provider. Zero uses the provider default.
	PageSize int
}

// DefaultConfig returns the default crawler configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:   4,
		ChannelBuffer: 1000,
	}
}

// Summary contains aggregate statistics from a completed crawl.
type Summary struct {
	// EntriesListed is the number of entries produced by the listings.
	EntriesListed int64

	// Files and Directories count the entries that passed matching.
	Files       int64
	Directories int64

	// BytesTotal is the cumulative size of matched files in bytes.
	BytesTotal int64

	// Duration is the total time spent crawling.
	Duration time.Duration

	// Errors is the count of non-fatal errors encountered.
	Errors int64

	// Roots lists the directories that were crawled.
	Roots []string
}

// Crawler lists directories through a provider and writes matching
// entries.
//
// Crawler is safe for single use only. Create a new Crawler for each job.
type Crawler struct {
	provider provider.Provider
	prefixer pathprefix.Prefixer
	lister   *listing.Lister
	matcher  *match.Matcher
	filter   *match.CompositeFilter
	writer   output.Writer
	config   Config
	logger   *zap.Logger

	// nil if unlimited
	limiter *rate.Limiter

	entriesListed atomic.Int64
	files         atomic.Int64
	directories   atomic.Int64
	bytesTotal    atomic.Int64
	errorCount    atomic.Int64
}

// New creates a crawler over p with paths translated by prefixer.
//
// Use WithMatcher and WithFilter to restrict the emitted entries.
func New(p provider.Provider, prefixer pathprefix.Prefixer, w output.Writer, cfg Config) *Crawler {
	def := DefaultConfig()
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.ChannelBuffer <= 0 {
		cfg.ChannelBuffer = def.ChannelBuffer
	}

	c := &Crawler{
		provider: p,
		prefixer: prefixer,
		writer:   w,
		config:   cfg,
		logger:   zap.NewNop(),
	}
	if cfg.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return c
}

// WithMatcher sets the glob matcher. Returns the crawler for chaining.
func (c *Crawler) WithMatcher(m *match.Matcher) *Crawler {
	c.matcher = m
	return c
}

// WithFilter sets attribute filters, applied after glob matching.
func (c *Crawler) WithFilter(f *match.CompositeFilter) *Crawler {
	c.filter = f
	return c
}

// WithLogger sets the logger for the crawler and its listings.
func (c *Crawler) WithLogger(logger *zap.Logger) *Crawler {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// Run lists every root and returns summary statistics.
//
// Errors that affect a single root (not found, access denied, throttled,
// unavailable, malformed entries) are written as error records and
// counted; the remaining roots continue. Any other error aborts the run.
//
// On cancellation Run returns a partial summary together with the context
// error.
func (c *Crawler) Run(ctx context.Context, roots []string) (*Summary, error) {
	startTime := time.Now()

	roots = normalizeRoots(roots, c.config.Deep)
	c.lister = listing.New(c.provider, c.prefixer,
		listing.WithPageSize(c.config.PageSize),
		listing.WithLogger(c.logger),
	)

	if err := c.runPipeline(ctx, roots); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return c.buildSummary(roots, time.Since(startTime)), err
		}
		return nil, err
	}

	summary := c.buildSummary(roots, time.Since(startTime))
	if err := c.writeSummary(ctx, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

func (c *Crawler) buildSummary(roots []string, duration time.Duration) *Summary {
	return &Summary{
		EntriesListed: c.entriesListed.Load(),
		Files:         c.files.Load(),
		Directories:   c.directories.Load(),
		BytesTotal:    c.bytesTotal.Load(),
		Duration:      duration,
		Errors:        c.errorCount.Load(),
		Roots:         roots,
	}
}

func (c *Crawler) writeSummary(ctx context.Context, summary *Summary) error {
	return c.writer.WriteSummary(ctx, &output.SummaryRecord{
		Files:         summary.Files,
		Directories:   summary.Directories,
		BytesTotal:    summary.BytesTotal,
		Duration:      summary.Duration,
		DurationHuman: summary.Duration.Round(time.Millisecond).String(),
		Errors:        summary.Errors,
	})
}

// writeError emits an error record and increments the error counter.
func (c *Crawler) writeError(ctx context.Context, code string, err error, root string) {
	c.errorCount.Add(1)
	c.logger.Warn("listing failed", zap.String("root", root), zap.String("code", code), zap.Error(err))

	// Best effort - don't fail the crawl if we can't write the error
	_ = c.writer.WriteError(ctx, &output.ErrorRecord{
		Code:    code,
		Message: err.Error(),
		Path:    root,
	})
}

func (c *Crawler) waitForRateLimit(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// runPipeline orchestrates the lister → matcher → writer pipeline.
func (c *Crawler) runPipeline(ctx context.Context, roots []string) error {
	pipeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	listCh := make(chan listing.Entry, c.config.ChannelBuffer)
	matchCh := make(chan listing.Entry, c.config.ChannelBuffer)

	// Error channel for fatal errors from any stage
	errCh := make(chan error, 1)
	fail := func(err error) {
		select {
		case errCh <- err:
		default:
		}
		cancel()
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(listCh)
		if err := c.runListers(pipeCtx, roots, listCh); err != nil {
			fail(err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(matchCh)
		c.runMatcher(pipeCtx, listCh, matchCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := c.runWriter(pipeCtx, matchCh); err != nil {
			fail(err)
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// runListers lists all roots with bounded concurrency.
func (c *Crawler) runListers(ctx context.Context, roots []string, out chan<- listing.Entry) error {
	sem := make(chan struct{}, c.config.Concurrency)

	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, root := range roots {
		// Only release the semaphore if it was acquired.
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(r string) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := c.listRoot(ctx, r, out); err != nil {
				errOnce.Do(func() { firstErr = err })
			}
		}(root)
	}

	wg.Wait()
	return firstErr
}

// listRoot runs one listing and forwards its entries.
func (c *Crawler) listRoot(ctx context.Context, root string, out chan<- listing.Entry) error {
	if err := c.waitForRateLimit(ctx); err != nil {
		return err
	}

	it, err := c.lister.List(ctx, root, c.config.Deep)
	if err != nil {
		return c.classify(ctx, err, root)
	}

	for {
		entry, err := it.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return c.classify(ctx, err, root)
		}

		c.entriesListed.Add(1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- entry:
		}
	}
}

// classify records root-scoped failures and returns nil for them, or
// returns err when the run must stop.
func (c *Crawler) classify(ctx context.Context, err error, root string) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, listing.ErrMalformedEntry):
		c.writeError(ctx, output.ErrCodeInternal, err, root)
		return nil
	case provider.IsNotFound(err), provider.IsContainerNotFound(err):
		c.writeError(ctx, output.ErrCodeNotFound, err, root)
		return nil
	case provider.IsAccessDenied(err):
		c.writeError(ctx, output.ErrCodeAccessDenied, err, root)
		return nil
	case provider.IsThrottled(err):
		c.writeError(ctx, output.ErrCodeThrottled, err, root)
		return nil
	case provider.IsProviderUnavailable(err):
		c.writeError(ctx, output.ErrCodeProviderUnavailable, err, root)
		return nil
	}
	return err
}

// runMatcher filters entries by glob patterns and attribute filters.
func (c *Crawler) runMatcher(ctx context.Context, in <-chan listing.Entry, out chan<- listing.Entry) {
	for {
		select {
		case <-ctx.Done():
			return
		case entry, ok := <-in:
			if !ok {
				return
			}
			if c.matcher != nil && !c.matcher.MatchEntry(entry) {
				continue
			}
			if c.filter != nil && !c.filter.Match(entry) {
				continue
			}

			if f, isFile := entry.(listing.File); isFile {
				c.files.Add(1)
				c.bytesTotal.Add(int64(f.Size()))
			} else {
				c.directories.Add(1)
			}

			select {
			case <-ctx.Done():
				return
			case out <- entry:
			}
		}
	}
}

// runWriter writes matched entries.
func (c *Crawler) runWriter(ctx context.Context, in <-chan listing.Entry) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry, ok := <-in:
			if !ok {
				return nil
			}
			if err := c.writer.WriteEntry(ctx, output.NewEntryRecord(entry)); err != nil {
				return err
			}
		}
	}
}

// normalizeRoots trims and deduplicates roots. For deep crawls a root
// nested under another root is dropped, since the parent listing already
// covers it.
func normalizeRoots(roots []string, deep bool) []string {
	seen := make(map[string]bool, len(roots))
	cleaned := make([]string, 0, len(roots))
	for _, r := range roots {
		r = strings.Trim(strings.TrimSpace(r), pathprefix.Separator)
		if !seen[r] {
			seen[r] = true
			cleaned = append(cleaned, r)
		}
	}
	if len(cleaned) == 0 {
		return []string{""}
	}
	if !deep {
		return cleaned
	}

	sort.Slice(cleaned, func(i, j int) bool { return len(cleaned[i]) < len(cleaned[j]) })
	result := make([]string, 0, len(cleaned))
	for _, candidate := range cleaned {
		covered := false
		for _, kept := range result {
			if kept == "" || strings.HasPrefix(candidate, kept+pathprefix.Separator) {
				covered = true
				break
			}
		}
		if !covered {
			result = append(result, candidate)
		}
	}
	sort.Strings(result)
	return result
}
