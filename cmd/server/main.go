/*
main.go - Application entry point

PURPOSE:
  Command-line entry for the revenue analytics engine: runs the HTTP
  server, ingests a file from disk, or prints the analysis-period
  validation of a year.

COMMANDS:
  serve                 HTTP API (default port 8080)
  ingest --file f.xlsx  Load a CSV/XLSX file into the store
  validate --year 2025  Print compliant / non-compliant months

GLOBAL FLAGS:
  --config   Optional YAML config file
  --db       SQLite database path, overrides db.path
             Use ":memory:" for an in-memory database

ENVIRONMENT:
  REVENUE_* variables, optionally from a .env file. See config/config.go.

STARTUP SEQUENCE:
  1. Load config (defaults < file < env < flags)
  2. Build the zerolog logger and put it in the context
  3. Register Prometheus collectors
  4. Open the resilient store on the SQLite opener
  5. Build analytics.Service and etl.Ingester

SEE ALSO:
  - commands.go: Subcommands
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/warp/revenue-engine/analytics"
	"github.com/warp/revenue-engine/config"
	"github.com/warp/revenue-engine/etl"
	"github.com/warp/revenue-engine/store"
	"github.com/warp/revenue-engine/store/sqlite"
	"github.com/warp/revenue-engine/telemetry"
)

var (
	cfgPath string
	dbPath  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "revenue-engine",
		Short:         "Revenue analytics calculation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(serveCmd(), ingestCmd(), validateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is the wired engine shared by all commands.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	db       *store.DB
	service  *analytics.Service
	ingester *etl.Ingester
}

func newApp(ctx context.Context) (*app, context.Context, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, ctx, err
	}
	if dbPath != "" {
		cfg.DB.Path = dbPath
	}

	logger := newLogger(cfg.Log)
	ctx = logger.WithContext(ctx)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(registry)

	db, err := store.New(ctx, sqlite.Opener(cfg.DB.Path), cfg.Store.Retry(),
		store.WithLogger(logger),
		store.WithMetrics(metrics),
	)
	if err != nil {
		return nil, ctx, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, ctx, fmt.Errorf("database not reachable: %w", err)
	}

	logger.Info().Str("db", cfg.DB.Path).Msg("store ready")
	return &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		db:       db,
		service:  analytics.NewService(db),
		ingester: etl.NewIngester(db, etl.WithMetrics(metrics)),
	}, ctx, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.Level(cfg.ZerologLevel()).With().Timestamp().Logger()
}
