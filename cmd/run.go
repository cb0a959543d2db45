package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-intel/common/logging"
	"github.com/telhawk-systems/telhawk-intel/internal/app"
	"github.com/telhawk-systems/telhawk-intel/internal/handlers"
	"github.com/telhawk-systems/telhawk-intel/internal/server"
	"github.com/telhawk-systems/telhawk-intel/internal/source"
)

const shutdownTimeout = 10 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the drop directory and process batches until stopped",
	Long: `Run the engine as a long-lived service.

Pending batch files are processed on every poll interval and, when
pipeline.watch is enabled, as soon as a new file lands. Health, readiness,
stats and Prometheus metrics are served on metrics.address.`,
	Args: cobra.NoArgs,
	RunE: runEngine,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runEngine(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logger.Error("shutdown error", logging.Error(err))
		}
	}()

	var wake <-chan struct{}
	if cfg.Pipeline.Watch {
		watcher, err := source.NewWatcher(engine.DropDir, logger)
		if err != nil {
			logger.Warn("file watch unavailable, polling only", logging.Error(err))
		} else {
			defer watcher.Close()
			wake = watcher.Wake()
			go func() {
				if err := watcher.Run(ctx); err != nil {
					logger.Error("watcher stopped", logging.Error(err))
				}
			}()
		}
	}

	var srv *http.Server
	if cfg.Metrics.Enabled {
		var dlqReader handlers.DLQ
		if engine.DLQ != nil {
			dlqReader = engine.DLQ
		}
		h := handlers.NewProcessorHandler(engine.Processor, engine.DryRun, dlqReader, engine.Checks)
		if engine.Sources != nil {
			h.WithSources(engine.Sources)
		}
		srv = &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           server.NewRouter(h, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("starting operational listener", "addr", cfg.Metrics.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("server error", logging.Error(err))
			}
		}()
	}

	logger.Info("engine started",
		logging.Path(engine.DropDir.Dir()),
		"workers", cfg.Pipeline.Workers,
		"sinks", cfg.Sinks.Enabled,
	)
	runErr := engine.Processor.Run(ctx, cfg.Pipeline.PollInterval, wake)

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", logging.Error(err))
		}
	}
	logger.Info("engine stopped", "stats", engine.Processor.Health())
	return runErr
}
