package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fraud-stream-dashboard/internal/infrastructure/config"
	"fraud-stream-dashboard/internal/infrastructure/feed"
	"fraud-stream-dashboard/internal/infrastructure/logger"

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
		fx.Provide(func() *zap.Logger { return log.Logger }),

		// Infrastructure providers
		fx.Provide(
			newTransactionSource,
			func() *feed.Scorer {
				return feed.NewScorer(rand.New(rand.NewSource(time.Now().UnixNano())))
			},
			feed.NewServer,
		),

		// Lifecycle hooks
		fx.Invoke(startFeedServer),

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

// newTransactionSource picks the configured source: the NATS pipeline when
// enabled, the built-in simulator otherwise.
func newTransactionSource(cfg *config.Config, log *logger.Logger) feed.TransactionSource {
	if cfg.NATS.Enabled {
		log.Info("Using NATS transaction source", zap.String("url", cfg.NATS.URL))
		return feed.NewNATSSource(&cfg.NATS, log)
	}
	log.Info("Using simulated transaction source",
		zap.Duration("emit_interval", cfg.Feed.EmitInterval))
	return feed.NewSimulator(&cfg.Feed, log)
}

// startFeedServer starts the feed websocket endpoint
func startFeedServer(
	lifecycle fx.Lifecycle,
	server *feed.Server,
	cfg *config.Config,
	log *logger.Logger,
) {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Feed.HTTPPort),
		Handler: server.Router(),
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("Starting feed server...", zap.Int("port", cfg.Feed.HTTPPort))

			if err := server.Start(context.Background()); err != nil {
				return fmt.Errorf("failed to start feed source: %w", err)
			}

			// Start server in background
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Error("Feed server error", zap.Error(err))
				}
			}()

			log.Info("Feed server started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Stopping feed server...")
			if err := httpServer.Shutdown(ctx); err != nil {
				log.Error("Failed to shut down HTTP server", zap.Error(err))
			}
			return server.Stop()
		},
	})
}
