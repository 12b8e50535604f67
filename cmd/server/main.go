// @title ChainForge API
// @version 1.0
// @description Backend for a browser IDE that writes, compiles and deploys Solidity contracts.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohits-web03/chainforge/internal/api"
	"github.com/rohits-web03/chainforge/internal/config"
	"github.com/rohits-web03/chainforge/internal/logging"
	"github.com/rohits-web03/chainforge/internal/repositories"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

var rootCmd = &cobra.Command{
	Use:   "chainforge",
	Short: "ChainForge IDE server",
	Long: `ChainForge serves the contract workspace, compilation, deployment
hand-off and chat endpoints of the browser IDE.

Running without a subcommand is the same as "serve".`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg := config.Envs
	log, err := logging.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	db, err := repositories.ConnectDatabase(cfg.DB_URL, log)
	if err != nil {
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migrations applied")
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.Envs
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, err := logging.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repositories.ConnectDatabase(cfg.DB_URL, log)
	if err != nil {
		return err
	}
	if err := repositories.Migrate(db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	handler, err := api.New(ctx, cfg, db, log)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: handler,
		// Timeouts prevent resource exhaustion from slow clients.
		// Writes allow for solc and the language model.
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting ChainForge server", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on %s: %w", server.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
