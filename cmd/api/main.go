// Package main implements the todo-stream server binary.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"

	"github.com/Tomlord1122/todo-stream/internal/database"
	"github.com/Tomlord1122/todo-stream/internal/repository"
	"github.com/Tomlord1122/todo-stream/internal/server"
	"github.com/Tomlord1122/todo-stream/internal/service"
	"github.com/Tomlord1122/todo-stream/internal/stream"
	"github.com/Tomlord1122/todo-stream/internal/views"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

type serveOptions struct {
	addr      string
	noMigrate bool
}

func newRootCmd() *cobra.Command {
	opts := &serveOptions{}
	root := &cobra.Command{
		Use:           "todo-stream",
		Short:         "Todo list server with live fragment updates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	addServeFlags(root, opts)
	root.AddCommand(newServeCmd(), newMigrateCmd())
	return root
}

func addServeFlags(cmd *cobra.Command, opts *serveOptions) {
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (overrides PORT)")
	cmd.Flags().BoolVar(&opts.noMigrate, "no-migrate", false, "skip schema auto-migration on start")
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	addServeFlags(cmd, opts)
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dbService, err := database.New(database.ConfigFromEnv())
			if err != nil {
				return err
			}
			defer dbService.Close()
			if err := dbService.Migrate(); err != nil {
				return err
			}
			slog.Info("database migration complete")
			return nil
		},
	}
}

func runServe(ctx context.Context, opts *serveOptions) error {
	dbService, err := database.New(database.ConfigFromEnv())
	if err != nil {
		return err
	}
	if !opts.noMigrate {
		slog.Info("running database auto-migration")
		if err := dbService.Migrate(); err != nil {
			_ = dbService.Close()
			return err
		}
	}

	renderer, err := views.New()
	if err != nil {
		_ = dbService.Close()
		return err
	}
	hub := stream.NewHub(renderer.Notification)

	todoRepo := repository.NewGormTodoRepository(dbService.GetDB())
	todoService := service.NewTodoService(todoRepo, hub)

	cfg := server.ConfigFromEnv()
	apiServer := server.NewServer(cfg, todoService, dbService, hub, renderer)
	if opts.addr != "" {
		apiServer.Addr = opts.addr
	}

	done := make(chan struct{})
	go gracefulShutdown(ctx, apiServer, hub, dbService, done)

	slog.Info("starting server", "addr", apiServer.Addr)
	if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		hub.Close()
		_ = dbService.Close()
		return fmt.Errorf("http server: %w", err)
	}

	<-done
	slog.Info("graceful shutdown complete")
	return nil
}

func gracefulShutdown(parent context.Context, apiServer *http.Server, hub *stream.Hub, dbService database.Service, done chan<- struct{}) {
	defer close(done)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	slog.Info("shutting down gracefully, press Ctrl+C again to force")
	stop()

	// Websocket connections are hijacked and not tracked by Shutdown.
	hub.Close()

	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctxTimeout); err != nil {
		slog.Error("server forced to shutdown", "err", err)
	}

	if err := dbService.Close(); err != nil {
		slog.Error("closing database connection pool", "err", err)
	}

	slog.Info("server exiting")
}
