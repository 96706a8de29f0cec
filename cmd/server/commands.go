package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/revenue-engine/api"
	"github.com/warp/revenue-engine/etl"
)

// =============================================================================
// SERVE
// =============================================================================

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if cmd.Flags().Changed("port") {
				a.cfg.HTTP.Port = port
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP server port (overrides config)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	handler := api.NewHandler(a.db, a.service, a.ingester)
	handler.Logger = a.logger
	handler.Gatherer = a.registry
	if len(a.cfg.HTTP.AllowedOrigins) > 0 {
		handler.AllowedOrigins = a.cfg.HTTP.AllowedOrigins
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Int("port", a.cfg.HTTP.Port).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-quit:
	case <-ctx.Done():
	}

	a.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info().Msg("server stopped")
	return nil
}

// =============================================================================
// INGEST
// =============================================================================

func ingestCmd() *cobra.Command {
	var file, confirmations string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load a CSV or XLSX file into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			f, err := os.Open(file)
			if err != nil {
				return err
			}
			defer f.Close()

			rows, err := etl.ParseFile(file, f)
			if err != nil {
				return err
			}

			var opts etl.Options
			if confirmations != "" {
				raw, err := os.ReadFile(confirmations)
				if err != nil {
					return err
				}
				if err := json.Unmarshal(raw, &opts.Confirmations); err != nil {
					return fmt.Errorf("invalid confirmations file: %w", err)
				}
			}

			res, err := a.ingester.InsertData(ctx, rows, opts)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "CSV or XLSX file to ingest")
	cmd.Flags().StringVar(&confirmations, "confirmations", "", "JSON file with confirmed days")
	cmd.MarkFlagRequired("file")
	return cmd
}

// =============================================================================
// VALIDATE
// =============================================================================

func validateCmd() *cobra.Command {
	var year int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Show which months of a year have complete data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if year <= 0 {
				year = time.Now().Year()
			}
			a, ctx, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := a.service.GetAnalysisPeriodValidation(ctx, year)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, v)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Year %d\n", v.Year)
			fmt.Fprintf(out, "  compliant:     %s\n", strings.Join(v.CompliantMonths, " "))
			fmt.Fprintf(out, "  non-compliant: %s\n", strings.Join(v.NonCompliantMonths, " "))
			for _, m := range v.Months {
				if !m.Compliant {
					fmt.Fprintf(out, "    %s missing %s\n", m.Month, strings.Join(m.Missing, ", "))
				}
			}
			if v.AnalysisPeriod.MonthCount > 0 {
				fmt.Fprintf(out, "  window:        %s-%s (%d months, complete=%t)\n",
					v.AnalysisPeriod.Start, v.AnalysisPeriod.End, v.AnalysisPeriod.MonthCount, v.AnalysisPeriod.IsComplete)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "Year to validate (default: current year)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
