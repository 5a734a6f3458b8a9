package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/specs/internal/config"
	"github.com/alfredjeanlab/specs/internal/engine"
	"github.com/alfredjeanlab/specs/internal/events"
	"github.com/alfredjeanlab/specs/internal/server"
	"github.com/alfredjeanlab/specs/internal/store"
	specsync "github.com/alfredjeanlab/specs/internal/sync"
)

// shutdownTimeout bounds how long in-flight HTTP requests get on exit.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the specs gRPC and HTTP server",
	GroupID: "system",
	// The server opens its own store from SPECS_DATABASE_URL.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := cfg.NewLogger(os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// serve runs both listeners until ctx ends or one of them fails, then
// shuts everything down in reverse order of startup.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	st, err := openStore(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("closing store", "err", err)
		}
	}()

	publisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error("closing publisher", "err", err)
		}
	}()

	if cfg.AuthToken == "" {
		logger.Warn("authentication disabled (SPECS_AUTH_TOKEN not set)")
	}

	specServer := server.NewSpecServer(engine.New(st, logger), publisher, logger)
	grpcServer := server.NewGRPCServer(specServer, cfg.AuthToken)
	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           specServer.NewHTTPHandler(cfg.AuthToken),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			errc <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	scheduler := startSync(ctx, cfg, st, logger)
	logger.Info("specs server started", "grpc_addr", cfg.GRPCAddr, "http_addr", cfg.HTTPAddr)

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errc:
		logger.Error("server failed, shutting down", "err", runErr)
	}

	if scheduler != nil {
		scheduler.Stop()
	}
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
	return runErr
}

// newPublisher connects to NATS when configured. Without it events only
// reach SSE clients.
func newPublisher(cfg *config.Config, logger *slog.Logger) (events.Publisher, error) {
	if cfg.NATSURL == "" {
		logger.Info("nats disabled (SPECS_NATS_URL not set)")
		return events.NoopPublisher{}, nil
	}
	pub, err := events.NewNATSPublisher(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logger.Info("nats enabled", "url", cfg.NATSURL)
	return pub, nil
}

// syncDestinations builds the export destinations enabled in cfg. A
// destination that fails to initialize is logged and skipped.
func syncDestinations(ctx context.Context, cfg *config.Config, logger *slog.Logger) []specsync.Destination {
	var dests []specsync.Destination

	if cfg.SyncS3Bucket != "" {
		s3Dest, err := specsync.NewS3Destination(
			ctx,
			cfg.SyncS3Bucket,
			cfg.SyncS3Key,
			cfg.SyncS3Region,
			cfg.SyncS3Endpoint,
		)
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, s3Dest)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}

	if cfg.SyncGitRepo != "" {
		dests = append(dests, specsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	return dests
}

func startSync(ctx context.Context, cfg *config.Config, s store.Store, logger *slog.Logger) *specsync.Scheduler {
	if !cfg.SyncEnabled() {
		return nil
	}
	dests := syncDestinations(ctx, cfg, logger)
	if len(dests) == 0 {
		return nil
	}
	scheduler := specsync.NewScheduler(s, dests, cfg.SyncInterval, logger)
	scheduler.Start(ctx)
	logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
	return scheduler
}
