package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the Sightmatch HTTP API.

The API accepts case intake and sighting reports as multipart forms and
answers each sighting with a verdict. Writes are rate limited per WEB_RATE_LIMIT.

Examples:
  # Listen on the default port
  sightmatch serve

  # Build the embedding store before serving
  sightmatch serve --rebuild`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Bool("rebuild", false, "Rebuild the embedding store in the background on startup")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	orch, err := a.newOrchestrator()
	if err != nil {
		return err
	}

	deps := web.Deps{
		Cases:     a.registry,
		Sightings: a.registry,
		Resolver:  orch,
	}
	builder, err := a.newBuilder()
	if err != nil {
		return err
	}
	if builder != nil {
		deps.Embedder = a.embedder
		deps.Rebuilder = builder
		if mustGetBool(cmd, "rebuild") {
			builder.Schedule(ctx)
		}
	} else {
		a.logger.Warn("FACE_EMBEDDING_URL not set, photos are ignored and only textual matching is available")
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(a.cfg, deps, host, port, a.logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("shutdown failed", "error", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "Starting Sightmatch API on http://%s:%d\n", host, port)
	fmt.Fprintln(cmd.ErrOrStderr(), "Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	if builder != nil {
		waitCtx, waitCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer waitCancel()
		if err := builder.Wait(waitCtx); err != nil {
			a.logger.Warn("embedding rebuild still running at shutdown", "error", err)
		}
	}
	return nil
}
