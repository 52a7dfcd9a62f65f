package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cognicore/reactrank/pkg/reactrank"
	"github.com/cognicore/reactrank/pkg/reactrank/config"
	"github.com/cognicore/reactrank/pkg/reactrank/store/sqlite"
)

// env carries the persistent flags shared by every subcommand.
type env struct {
	configPath string
	dbPath     string
	logLevel   string
}

// NewRootCmd creates the reactrank command tree
func NewRootCmd() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:           "reactrank",
		Short:         "Personalised ranking from your reactions",
		Long:          "Learns per-tag preferences from categorised reactions and ranks unseen items by them",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&e.configPath, "config", "", "YAML config file (default $"+config.EnvConfigPath+")")
	rootCmd.PersistentFlags().StringVar(&e.dbPath, "db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().StringVar(&e.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")

	rootCmd.AddCommand(NewImportCmd(e))
	rootCmd.AddCommand(NewReactCmd(e))
	rootCmd.AddCommand(NewSeenCmd(e))
	rootCmd.AddCommand(NewReconcileCmd(e))
	rootCmd.AddCommand(NewRankCmd(e))
	rootCmd.AddCommand(NewExplainCmd(e))
	rootCmd.AddCommand(NewExportCmd(e))
	rootCmd.AddCommand(NewRestoreCmd(e))
	rootCmd.AddCommand(NewStatsCmd(e))

	return rootCmd
}

func (e *env) loadConfig() (config.Config, error) {
	cfg, err := config.Load(e.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	if e.dbPath != "" {
		cfg.DBPath = e.dbPath
	}
	if e.logLevel != "" {
		cfg.LogLevel = e.logLevel
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}
	return cfg, nil
}

// open loads configuration, opens the database and restores the session.
// The returned cleanup closes the session and flushes the logger.
func (e *env) open(ctx context.Context) (*reactrank.Session, *zap.Logger, func(), error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, nil, err
	}

	st, err := sqlite.OpenSQLite(ctx, cfg.DBPath)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	opts, err := reactrank.OptionsFromConfig(cfg, st, logger, nil)
	if err != nil {
		st.Close()
		logger.Sync()
		return nil, nil, nil, err
	}
	session, err := reactrank.Open(ctx, opts)
	if err != nil {
		st.Close()
		logger.Sync()
		return nil, nil, nil, err
	}

	cleanup := func() {
		if err := session.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
		}
		_ = logger.Sync()
	}
	return session, logger, cleanup, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}
