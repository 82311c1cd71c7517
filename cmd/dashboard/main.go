package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	app_service "fraud-stream-dashboard/internal/application/service"
	domain_service "fraud-stream-dashboard/internal/domain/service"
	"fraud-stream-dashboard/internal/infrastructure/api"
	"fraud-stream-dashboard/internal/infrastructure/config"
	"fraud-stream-dashboard/internal/infrastructure/logger"
	"fraud-stream-dashboard/internal/infrastructure/metrics"
	"fraud-stream-dashboard/internal/infrastructure/storage"
	"fraud-stream-dashboard/internal/infrastructure/stream"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Create logger
	log, err := logger.NewLogger(cfg.App.LogLevel)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	// Create FX application
	app := fx.New(
		// Provide dependencies
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.Stream),
		fx.Provide(func() *zap.Logger { return log.Logger }),

		// Infrastructure providers
		fx.Provide(
			metrics.NewMetrics,
			storage.NewMemoryEventLog,
			func(c *stream.Connector) api.ConnectionReporter { return c },
		),

		// Application providers
		fx.Provide(
			app_service.NewReconcilerService,
			func(streamCfg *config.StreamConfig, rec domain_service.Reconciler, m *metrics.Metrics, log *logger.Logger) *stream.Connector {
				return stream.NewConnector(streamCfg, rec, m, log)
			},
			api.NewServer,
		),

		// Lifecycle hooks
		fx.Invoke(startConnector),
		fx.Invoke(startHTTPServer),

		// Configure logging
		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	// Start the application
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		os.Exit(1)
	}

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	// Stop the application
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		os.Exit(1)
	}

	log.Info("Application stopped successfully")
}

// startConnector opens the feed connection and guarantees teardown
func startConnector(
	lifecycle fx.Lifecycle,
	connector *stream.Connector,
	log *logger.Logger,
	cfg *config.Config,
) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting stream connector",
				zap.String("url", cfg.Stream.URL),
				zap.Int("max_retries", cfg.Stream.MaxRetries))

			// The connection outlives the start hook; dial failures feed the
			// connector's own retry schedule rather than failing startup.
			go connector.Open(context.Background())
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping stream connector...")
			return connector.Close()
		},
	})
}

// startHTTPServer starts the dashboard API server
func startHTTPServer(
	lifecycle fx.Lifecycle,
	server *api.Server,
	cfg *config.Config,
	log *logger.Logger,
) {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler: server.Router(),
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting API server...", zap.Int("port", cfg.App.HTTPPort))

			// Start server in background
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("API server error", zap.Error(err))
				}
			}()

			log.Info("API server started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping API server...")
			return httpServer.Shutdown(ctx)
		},
	})
}
