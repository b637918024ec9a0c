package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-console/internal/api"
	"github.com/miradorstack/mirador-console/internal/config"
	"github.com/miradorstack/mirador-console/internal/console"
	"github.com/miradorstack/mirador-console/internal/metrics"
	"github.com/miradorstack/mirador-console/internal/services"
	"github.com/miradorstack/mirador-console/internal/utils"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Mount the console and serve gRPC, websocket and metrics surfaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	out, closeLog := utils.LogWriter(utils.LogFile{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer closeLog()
	logger := utils.NewLoggerTo(out, cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-console", slog.String("address", cfg.Server.Address), slog.String("http_address", cfg.Server.HTTPAddress))

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		return err
	}

	con := console.Build(cfg, logger)
	svc := services.NewConsoleService(logger, con.Store())

	server, err := api.NewServer(cfg.Server, svc)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		return err
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := api.NewHub(con.Store(), cfg.Server.MaxWSClients, logger)
	go hub.Run(ctx)

	var httpServer *http.Server
	if cfg.Server.HTTPAddress != "" {
		httpServer = api.NewHTTPServer(cfg.Server.HTTPAddress, prometheus.DefaultGatherer, hub, con)
		go func() {
			logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	mountErr := con.Mount(ctx)
	if mountErr != nil {
		logger.Error("failed to mount console", slog.Any("error", mountErr))
		stop()
	} else if path := a.watchPath(); path != "" {
		go func() {
			err := config.Watch(ctx, path, logger, func(next *config.Config) {
				con.ApplyPages(next.Console.Pages)
			})
			if err != nil {
				logger.Warn("config watch disabled", slog.Any("error", err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Unmounting closes the store, which ends Watch streams before the graceful stop.
	con.Unmount()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	server.Shutdown(shutdownCtx)

	if httpServer != nil {
		httpCtx, cancelHTTP := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(httpCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown", slog.Any("error", err))
		}
		cancelHTTP()
	}

	if mountErr != nil {
		return fmt.Errorf("mount console: %w", mountErr)
	}
	logger.Info("mirador-console stopped")
	return nil
}
