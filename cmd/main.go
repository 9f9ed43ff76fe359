package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"imgresize/internal/app"
	"imgresize/internal/config"
	"imgresize/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "imgresize",
	Short: "Resize images uploaded to an S3 compatible bucket",
	Long: `Handles object upload events: every uploaded image is shrunk to fit a bounding box,
stored next to the original with a "resized-" prefix, and the original is deleted.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is none)")
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newHandleCmd(), newListenCmd(), newServeCmd(), newHistoryCmd())
}

// setup loads configuration and builds the logger shared by all commands
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return cfg, log, nil
}

// runApp builds the application and runs fn with a context cancelled on SIGINT/SIGTERM
func runApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create app: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = fn(ctx, a)

	if closeErr := a.Close(); closeErr != nil {
		log.Error("Error closing app", zap.Error(closeErr))
	}

	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
