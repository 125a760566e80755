package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/pai-cube/go-controller/internal/config"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/logging"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/orchestrator"
	"github.com/danielpatrickdp/pai-cube/go-controller/internal/state"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

var opts config.ResolveOptions

// #region main
func main() {
	rootCmd := &cobra.Command{
		Use:           "controller",
		Short:         "PAI cube controller: SEU intake, channel metas and cognitive-mode cubes",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.pai/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&opts.CLIDBPath, "db", "", "database path (overrides PAI_DB)")
	rootCmd.PersistentFlags().StringVar(&opts.CLILogLevel, "log-level", "", "log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(buildCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
// #endregion main

// #region runtime
// runtime bundles what every subcommand opens: resolved config, logger,
// store and orchestrator.
type runtime struct {
	cfg    config.ResolvedConfig
	logger *zap.Logger
	store  *state.Store
	orch   *orchestrator.Orchestrator
}

func openRuntime() (*runtime, error) {
	cfg, err := config.ResolveConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Log())
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.DBPath.Value); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	store, err := state.NewStore(cfg.DBPath.Value)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	orch := orchestrator.New(store,
		orchestrator.WithLogger(logger),
		orchestrator.WithParallelism(cfg.Parallelism()),
	)
	logger.Debug("runtime ready",
		zap.String("db", cfg.DBPath.Value),
		zap.String("db_source", string(cfg.DBPath.Source)),
		zap.Int("parallelism", cfg.Parallelism()))
	return &runtime{cfg: cfg, logger: logger, store: store, orch: orch}, nil
}

func (rt *runtime) Close() {
	if err := rt.store.Close(); err != nil {
		rt.logger.Warn("close store", zap.Error(err))
	}
	_ = rt.logger.Sync()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
// #endregion runtime

// #region config-cmd
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration and where each value came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.ResolveConfig(opts)
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
// #endregion config-cmd
