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

	"github.com/spf13/cobra"

	"github.com/UTNuclearRobotics/skiros2/internal/presentation/tui"
	skhttp "github.com/UTNuclearRobotics/skiros2/pkg/adapters/http"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the skill manager server",
	Long: `Starts the skill manager, registers the agent and exposes the command,
progress and skill endpoints over HTTP and WebSocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.HTTP.Addr, _ = cmd.Flags().GetString("addr")
		}
		if quiet, _ := cmd.Flags().GetBool("quiet"); !quiet {
			tui.PrintBanner(cmd.ErrOrStderr(), cfg.AgentName())
		}

		rt, err := newStack(cfg)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := rt.manager.Register(ctx); err != nil {
			_ = rt.Close(context.Background())
			return fmt.Errorf("register agent: %w", err)
		}

		server := skhttp.NewServer(rt.manager,
			skhttp.WithLogger(rt.logger),
			skhttp.WithGatherer(rt.registry),
		)
		server.Start(ctx)

		srv := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           server.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			rt.logger.Info("skill manager listening", "addr", srv.Addr, "session", rt.manager.Session())
			serverErrors <- srv.ListenAndServe()
		}()

		var runErr error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = fmt.Errorf("server: %w", err)
			}
		case <-ctx.Done():
			rt.logger.Info("shutting down")
		}

		// Give outstanding requests and running tasks a deadline.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			rt.logger.Warn("graceful shutdown did not complete", "timeout", shutdownTimeout, "error", err)
			_ = srv.Close()
		}
		if err := rt.Close(shutdownCtx); err != nil {
			rt.logger.Warn("manager shutdown", "error", err)
		}
		rt.logger.Info("skill manager stopped")
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
	serveCmd.Flags().BoolP("quiet", "q", false, "Do not print the banner")
}
