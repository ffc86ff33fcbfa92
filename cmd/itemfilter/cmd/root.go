package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/solatis/itemfilter/internal/core/config"
	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/solatis/itemfilter/internal/core/logging"
	"github.com/solatis/itemfilter/internal/filter"
	"github.com/solatis/itemfilter/internal/rules"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version is the release version reported by serve.
const Version = "0.1.0"

var configFile string

var rootCmd = &cobra.Command{
	Use:           "itemfilter",
	Short:         "Item filter rule-chain service",
	Long:          `itemfilter narrows candidate item lists through named, inheritable chains of filtering rules.`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	rootCmd.PersistentFlags().String("db-url", "", "database connection URL (sqlite://path or postgres://...)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "json", "log format (json, text)")
}

func Execute() error {
	return rootCmd.Execute()
}

// env bundles what every subcommand needs.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
}

func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &env{cfg: cfg, logger: logger}, nil
}

// connect opens the configured database. The data directory is created
// first since the default sqlite file lives there.
func (e *env) connect(ctx context.Context) (*sqlx.DB, error) {
	if err := os.MkdirAll(e.cfg.Server.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	database, err := db.Open(ctx, e.cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// openDB opens the configured database and refuses to continue while
// migrations are pending.
func (e *env) openDB(ctx context.Context) (*sqlx.DB, *db.Queries, error) {
	database, err := e.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			database.Close()
			return nil, nil, fmt.Errorf("migration %s not applied - run 'itemfilter migrate' first", s.ID)
		}
	}
	queries, err := db.LoadQueries(database)
	if err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("failed to load queries: %w", err)
	}
	return database, queries, nil
}

// newCatalog builds the rule registry and an empty catalog.
// status may be nil, which leaves the publishable flag rule unregistered.
func (e *env) newCatalog(status rules.StatusLookup) (*filter.Catalog, *rules.Registry, error) {
	reg, err := rules.NewDefaultRegistry(status, rules.Options{
		ScriptTimeout: e.cfg.Rules.ScriptTimeout,
		Priorities:    e.cfg.Rules.Priorities,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build rule registry: %w", err)
	}
	return filter.NewCatalog(reg, filter.WithLogger(e.logger)), reg, nil
}
