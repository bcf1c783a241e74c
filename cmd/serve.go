package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/whiteboard/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Run the page in the browser with live reload",
	Long: `Serve the configured page. Each request is prerendered for its path; the
page then connects back over a websocket and runs its modules and routes on
the server, one application per browser tab. Changes to the page or its
templates reload every open tab.

Examples:
  whiteboard serve                 # Serve on localhost:8080
  whiteboard serve -p 3000         # Serve on another port
  whiteboard serve --watch=false   # Serve without live reload`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	AddStandardFlags(serveCmd, "server")
	if err := SetViperBindings(serveCmd, map[string]string{
		"port":  "server.port",
		"host":  "server.host",
		"watch": "watch.enabled",
	}); err != nil {
		panic(err)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	srv := server.New(cfg, logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error(shutdownCtx, err, "server shutdown failed")
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at http://%s\n", cfg.App.Page, cfg.Address())

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
