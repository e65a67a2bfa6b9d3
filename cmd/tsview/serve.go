package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vjranagit/tsview/pkg/api"
	"github.com/vjranagit/tsview/pkg/metrics"
	"github.com/vjranagit/tsview/pkg/query"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.close()
			return serve(env)
		},
	}
}

func serve(env *environment) error {
	logger := env.logger
	logger.Info("configuration loaded",
		zap.String("version", version),
		zap.String("listen_addr", env.cfg.Server.ListenAddr),
		zap.String("storage_path", env.cfg.Storage.Path),
		zap.Int("compression_level", env.cfg.Storage.CompressionLevel),
		zap.Int("max_metric_limit", env.cfg.Query.MaxMetricLimit),
	)

	queries := query.NewService(env.store, metrics.NewProgressSink(logger.Named("progress")), logger.Named("query"))
	server := api.NewServer(api.Options{
		ListenAddr:     env.cfg.Server.ListenAddr,
		ReadTimeout:    env.cfg.Server.ReadTimeout,
		WriteTimeout:   env.cfg.Server.WriteTimeout,
		MaxMetricLimit: env.cfg.Query.MaxMetricLimit,
	}, env.store, queries, logger.Named("api"))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", env.cfg.Server.ListenAddr))
		errCh <- server.Start()
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigChan:
		logger.Info("shutdown signal received, stopping server", zap.String("signal", sig.String()))
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server stopped")
	return nil
}
