package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/3leaps/swiftfs/internal/errors"
	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/pkg/crawler"
	"github.com/3leaps/swiftfs/pkg/match"
	"github.com/3leaps/swiftfs/pkg/output"
	"github.com/3leaps/swiftfs/pkg/storage"
)

// FS serves read-only filesystem views of a storage adapter.
type FS struct {
	adapter      *storage.Adapter
	providerName string
	crawlCfg     crawler.Config
	metrics      *observability.Metrics
	logger       *zap.Logger
}

// NewFS returns handlers over adapter. metrics and logger may be nil.
func NewFS(adapter *storage.Adapter, providerName string, cfg crawler.Config, metrics *observability.Metrics, logger *zap.Logger) *FS {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FS{
		adapter:      adapter,
		providerName: providerName,
		crawlCfg:     cfg,
		metrics:      metrics,
		logger:       logger,
	}
}

// List streams the contents of one or more directories as JSONL.
//
// Query parameters: path (repeatable, default root), deep (bool),
// include and exclude (repeatable glob patterns), hidden (bool).
func (h *FS) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	deep, err := queryBool(q.Get("deep"), "deep")
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	hidden, err := queryBool(q.Get("hidden"), "hidden")
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	var matcher *match.Matcher
	if len(q["include"]) > 0 || len(q["exclude"]) > 0 || hidden {
		matcher, err = match.New(match.Config{
			Includes:      q["include"],
			Excludes:      q["exclude"],
			IncludeHidden: hidden,
		})
		if err != nil {
			respondWithError(w, r, fmt.Errorf("%w: %v", apperrors.ErrBadRequest, err))
			return
		}
	}

	jobID := apperrors.RequestIDFrom(r)
	if jobID == "" {
		jobID = uuid.New().String()
	}

	stream := &ndjsonResponse{w: w}
	writer := &meteredWriter{
		Writer:  output.NewJSONLWriter(stream, jobID, h.providerName),
		metrics: h.metrics,
	}

	cfg := h.crawlCfg
	cfg.Deep = deep
	c := crawler.New(h.adapter.Provider(), h.adapter.Prefixer(), writer, cfg).
		WithLogger(h.logger)
	if matcher != nil {
		c.WithMatcher(matcher)
	}

	summary, err := c.Run(r.Context(), q["path"])
	_ = writer.Close()
	if err != nil {
		h.countFailure(err)
		if !stream.wrote {
			respondWithError(w, r, err)
			return
		}
		h.logger.Warn("listing aborted", zap.String("job_id", jobID), zap.Error(err))
		return
	}

	h.logger.Debug("listing served",
		zap.String("job_id", jobID),
		zap.Strings("roots", summary.Roots),
		zap.Int64("files", summary.Files),
		zap.Int64("directories", summary.Directories),
		zap.Duration("duration", summary.Duration),
	)
}

// Stat returns the normalized entry for the object at ?path=.
func (h *FS) Stat(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		respondWithError(w, r, fmt.Errorf("%w: path is required", apperrors.ErrBadRequest))
		return
	}

	entry, err := h.adapter.Stat(r.Context(), path)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, output.NewEntryRecord(entry))
}

// CheckHealth lists one entry of the root to confirm the store answers.
func (h *FS) CheckHealth(ctx context.Context) error {
	it, err := h.adapter.ListContents(ctx, "", false)
	if err != nil {
		return err
	}
	_, err = it.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *FS) countFailure(err error) {
	if h.metrics == nil {
		return
	}
	_, code := apperrors.Classify(err)
	h.metrics.ListFailures.WithLabelValues(code).Inc()
}

func queryBool(v, name string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", apperrors.ErrBadRequest, name, v)
	}
	return b, nil
}

// ndjsonResponse sets the stream headers on the first write and flushes
// after every record.
type ndjsonResponse struct {
	w     http.ResponseWriter
	wrote bool
}

func (n *ndjsonResponse) Write(p []byte) (int, error) {
	if !n.wrote {
		n.w.Header().Set("Content-Type", "application/x-ndjson")
		n.w.WriteHeader(http.StatusOK)
		n.wrote = true
	}
	written, err := n.w.Write(p)
	if f, ok := n.w.(http.Flusher); ok {
		f.Flush()
	}
	return written, err
}

// meteredWriter counts entries and error records as they are written.
type meteredWriter struct {
	output.Writer
	metrics *observability.Metrics
}

func (m *meteredWriter) WriteEntry(ctx context.Context, entry *output.EntryRecord) error {
	if err := m.Writer.WriteEntry(ctx, entry); err != nil {
		return err
	}
	if m.metrics != nil {
		m.metrics.EntriesListed.WithLabelValues(string(entry.Kind)).Inc()
	}
	return nil
}

func (m *meteredWriter) WriteError(ctx context.Context, rec *output.ErrorRecord) error {
	if m.metrics != nil {
		m.metrics.ListFailures.WithLabelValues(rec.Code).Inc()
	}
	return m.Writer.WriteError(ctx, rec)
}
