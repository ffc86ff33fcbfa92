package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/solatis/itemfilter/internal/core/api"
	"github.com/solatis/itemfilter/internal/core/auth"
	"github.com/solatis/itemfilter/internal/core/config"
	"github.com/solatis/itemfilter/internal/core/db"
	"github.com/solatis/itemfilter/internal/core/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC and HTTP filter service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "listen host")
	serveCmd.Flags().Int("port", 50051, "gRPC port")
	serveCmd.Flags().Int("http-port", 8080, "HTTP port (0 disables)")
	serveCmd.Flags().String("data-dir", "./data", "directory for the change journal")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	cfg := e.cfg

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, queries, err := e.openDB(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	filters := db.NewFilterStore(database, queries)
	catalog, _, err := e.newCatalog(db.NewContentStatusStore(queries))
	if err != nil {
		return err
	}
	var reloader *server.Reloader
	if cfg.Server.ReloadSchedule != "" {
		reloader, err = server.NewReloader(cfg.Server.ReloadSchedule, filters, catalog, cfg.Server.RequestTimeout, e.logger)
		if err != nil {
			return err
		}
	}

	loaded, err := filters.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to load filters: %w", err)
	}
	if err := catalog.Replace(loaded); err != nil {
		return fmt.Errorf("failed to load filters: %w", err)
	}

	journal, err := api.NewJournal(filepath.Join(cfg.Server.DataDir, "journal"))
	if err != nil {
		return err
	}
	service, err := api.NewFilterService(catalog, filters, journal, &cfg.Server, e.logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		e.logger.Warn("no HMAC secrets configured, administrative methods will reject every call",
			zap.String("hint", "set IF_HMAC_SECRET"))
	}
	authenticator := auth.NewAuthenticator(secrets, db.NewAPIKeyStore(queries), api.AdminMethods...)

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	var httpServer *server.HTTPServer
	if cfg.Server.HTTPPort != 0 {
		if httpServer, err = server.NewHTTPServer(&cfg.Server, service, e.logger); err != nil {
			return fmt.Errorf("failed to create http server: %w", err)
		}
	}

	e.logger.Info("starting itemfilter",
		zap.String("version", Version),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.Int("http_port", cfg.Server.HTTPPort),
		zap.Int("filters", len(loaded)))

	errChan := make(chan error, 2)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()
	if httpServer != nil {
		go func() {
			errChan <- httpServer.Start(ctx)
		}()
	}
	if reloader != nil {
		reloader.Start()
	}

	var runErr error
	select {
	case runErr = <-errChan:
		e.logger.Error("server stopped", zap.Error(runErr))
	case <-ctx.Done():
		e.logger.Info("shutting down gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if reloader != nil {
		if err := reloader.Stop(shutdownCtx); err != nil {
			e.logger.Warn("reloader stop", zap.Error(err))
		}
	}
	if httpServer != nil {
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			e.logger.Warn("http shutdown", zap.Error(err))
		}
	}
	if err := grpcServer.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}
