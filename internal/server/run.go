package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const defaultShutdownTimeout = 30 * time.Second

// Worker is a background loop that returns once its context is cancelled.
type Worker func(ctx context.Context) error

// Run serves until SIGINT/SIGTERM, ctx cancellation or the first worker
// failure, then shuts the HTTP server down gracefully.
func (s *Server) Run(ctx context.Context, workers ...Worker) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.Start)

	for _, w := range workers {
		w := w
		g.Go(func() error {
			if err := w(gctx); err != nil && gctx.Err() == nil {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
