package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/swiftfs/internal/observability"
	"github.com/3leaps/swiftfs/internal/server"
	"github.com/3leaps/swiftfs/internal/server/handlers"
	"github.com/3leaps/swiftfs/pkg/crawler"
)

var serveCmd = &cobra.Command{
	Use:   "serve [uri]",
	Short: "Serve health, metrics and read-only listing endpoints",
	Long: `Start the HTTP server.

When a storage URI is given (or server.uri is configured) the server also
exposes:
  GET /v1/list?path=&deep=&include=&exclude=   JSONL listing
  GET /v1/stat?path=                           entry metadata

Examples:
  swiftfs serve
  swiftfs serve swift://photos --port 8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default server.port)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := currentConfig(ctx)
	if err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
	}

	host, port := cfg.Server.Host, cfg.Server.Port
	if serveHost != "" {
		host = serveHost
	}
	if servePort != 0 {
		port = servePort
	}

	uri := cfg.Server.URI
	if len(args) == 1 {
		uri = args[0]
	}

	logger := observability.CLILogger
	health := handlers.InitHealthManager(versionInfo.Version)
	health.SetTimeout(cfg.Health.Timeout)
	if id := GetAppIdentity(); id != nil {
		health.RegisterChecker("identity", identityHealthChecker{
			binaryName: id.BinaryName,
			envPrefix:  id.EnvPrefix,
			configName: id.ConfigName,
		})
	}

	opts := []server.Option{
		server.WithLogger(logger),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	}

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics()
		opts = append(opts, server.WithMetrics(metrics))
	}

	if uri != "" {
		loc, err := ParseURI(uri)
		if err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid URI", err)
		}
		adapter, err := openAdapter(ctx, loc, cfg)
		if err != nil {
			logger.Error("Failed to open store", zap.String("uri", loc.String()), zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Failed to connect to storage provider", err)
		}
		defer func() { _ = adapter.Close() }()

		fs := handlers.NewFS(adapter, string(loc.Scheme), crawler.Config{
			Concurrency: cfg.List.Concurrency,
			RateLimit:   cfg.List.RateLimit,
			PageSize:    cfg.Storage.PageSize,
		}, metrics, logger)
		health.RegisterChecker("store", fs)
		opts = append(opts, server.WithFS(fs))
		logger.Info("Serving store", zap.String("uri", loc.String()))
	}

	srv := server.New(host, port, opts...)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.ListenAndServe() }()

	var metricsSrv *http.Server
	if metrics != nil && cfg.Metrics.Port > 0 && cfg.Metrics.Port != port {
		metricsSrv = &http.Server{
			Addr:              net.JoinHostPort(host, strconv.Itoa(cfg.Metrics.Port)),
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics listener: %w", err)
			}
		}()
		logger.Info("Metrics listening", zap.String("addr", metricsSrv.Addr))
	}

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return exitError(foundry.ExitSignalInt, "Shutdown incomplete", err)
	}
	return nil
}

// identityHealthChecker verifies the application identity is complete.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("identity: missing binary name")
	case c.envPrefix == "":
		return errors.New("identity: missing env prefix")
	case c.configName == "":
		return errors.New("identity: missing config name")
	}
	return nil
}

