package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-scholar/api"
	"github.com/aluiziolira/go-scrape-scholar/config"
	"github.com/aluiziolira/go-scrape-scholar/jobs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP trigger and query API",
	RunE:  runServe,
}

func init() {
	defaults := config.DefaultServerConfig()
	serveCmd.Flags().String("listen", defaults.ListenAddr, "listen address")
	serveCmd.Flags().String("data-dir", defaults.DataDir, "directory of corpus files the API may serve")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.DefaultServerConfig()

	file, err := loadConfigFile()
	if err != nil {
		return err
	}
	file.ApplyServer(cfg)

	if cmd.Flags().Changed("listen") {
		cfg.ListenAddr, _ = cmd.Flags().GetString("listen")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	manager := jobs.NewManager()
	engine := api.NewServer(api.NewHandler(manager, cfg.DataDir))

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server listening", slog.String("addr", cfg.ListenAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
