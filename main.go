// Package main is the entry point for the converter service and CLI.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"careerstack/apps/converter/internal/app"
	"careerstack/apps/converter/internal/config"
	"careerstack/apps/converter/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "converter",
	Short: "DOCX and HTML conversion backed by a headless LibreOffice",
	Long: `converter keeps one headless LibreOffice listening on a local socket and
converts DOCX to HTML and HTML to DOCX through it.

Without a subcommand it runs the HTTP service, same as "converter serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	log := logger.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serve(ctx, cfg, log)
}

// serve runs the service until ctx is cancelled.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	deps, err := app.Bootstrap(ctx, cfg, log)
	if err != nil {
		log.Error("bootstrap failed", "error", err)
		return err
	}
	defer deps.Close()

	application, err := app.New(cfg, deps.DB, deps.Publisher, deps.Bridge, log)
	if err != nil {
		log.Error("failed to initialize app", "error", err)
		return err
	}

	if err := application.Run(ctx); err != nil {
		log.Error("server failed", "error", err)
		return err
	}
	return nil
}
