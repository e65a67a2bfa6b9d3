package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vjranagit/tsview/internal/config"
	"github.com/vjranagit/tsview/internal/logging"
	"github.com/vjranagit/tsview/pkg/storage"
)

const (
	version = "0.3.0"
)

var configPath string

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tsview",
		Short:         "Chart-ready time-series computation",
		Long:          `tsview stores measured series and turns them into bounded, chart-ready series by combining, smoothing and simplifying.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")

	rootCmd.AddCommand(newServeCommand(), newIngestCommand(), newQueryCommand())
	return rootCmd
}

// environment is the loaded configuration with its logger and store
type environment struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *storage.Store
}

func setup() (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStorage(cfg.ToStorageConfig(), logger.Named("storage"))
	if err != nil {
		logger.Sync()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &environment{cfg: cfg, logger: logger, store: store}, nil
}

func (e *environment) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error("failed to close storage", zap.Error(err))
	}
	e.logger.Sync()
}
