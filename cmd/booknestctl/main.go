// cmd/booknestctl/main.go
//
// booknestctl is the operator CLI for a BookNest storefront: it opens the same
// local and remote stores the server uses and runs maintenance against them.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appcfg "booknest/internal/infra/config"
	"booknest/internal/infra/logging"
	"booknest/internal/platform/di"
)

var (
	verbose    bool
	jsonOut    bool
	configPath string

	logger *zap.Logger
)

// openContainer builds the DI container. Tests swap it for an in-memory one.
var openContainer = func(ctx context.Context) (*di.Container, func(), error) {
	if configPath != "" {
		if err := os.Setenv("BOOKNEST_CONFIG", configPath); err != nil {
			return nil, nil, err
		}
	}
	cfg, err := appcfg.Load()
	if err != nil {
		return nil, nil, err
	}
	c, err := di.NewContainer(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {
		if err := c.Close(); err != nil {
			logger.Warn("container close error", zap.Error(err))
		}
	}, nil
}

var rootCmd = &cobra.Command{
	Use:   "booknestctl",
	Short: "BookNest storefront maintenance",
	Long: `booknestctl inspects and repairs the storage behind a BookNest storefront.

It reads the same .env / BOOKNEST_CONFIG / environment settings as the server,
so it sees the same local store and the same remote document store.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return nil
		}
		level := "warn"
		if verbose {
			level = "debug"
		}
		lg, err := logging.New(level, true)
		if err != nil {
			return err
		}
		logger = lg
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (overrides BOOKNEST_CONFIG)")

	storageCmd.AddCommand(storageStatusCmd, storageSweepCmd, storageRepairCartCmd)
	syncCmd.AddCommand(syncPendingCmd, syncFlushCmd)
	notificationsCmd.AddCommand(notificationsListCmd)
	rootCmd.AddCommand(storageCmd, syncCmd, notificationsCmd, pollCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// withContainer opens the container for one command and closes it afterwards.
func withContainer(cmd *cobra.Command, fn func(ctx context.Context, c *di.Container) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	c, closeFn, err := openContainer(ctx)
	if err != nil {
		return fmt.Errorf("open storefront: %w", err)
	}
	defer closeFn()
	return fn(ctx, c)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
