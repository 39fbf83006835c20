package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/docpipe/internal/async"
	"github.com/joseph-ayodele/docpipe/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP surface and the background pipeline workers",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.healthCheck(ctx); err != nil {
		return err
	}
	if err := a.index.EnsureCollection(ctx); err != nil {
		return err
	}

	queue := async.NewPipelineQueue(a.orchestrator, a.logger,
		async.WithWorkers(a.cfg.Pipeline.QueueWorkers),
		async.WithQueueSize(a.cfg.Pipeline.QueueSize),
		async.WithProcessTimeout(a.cfg.Pipeline.ProcessTimeout),
	)

	srv := &http.Server{
		Addr:              a.cfg.Server.HTTPAddr,
		Handler:           server.New(a.service(queue), a.cfg.Server.UploadDir, a.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server.listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("server.shutting_down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("server.shutdown_error", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	return nil
}
