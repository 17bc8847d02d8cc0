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

	"golang.org/x/sync/errgroup"

	"votechain/internal/platform/config"
	"votechain/internal/platform/httpserver"
	"votechain/internal/platform/logger"
	httptransport "votechain/internal/transport/http"
)

// main wires dependencies, serves HTTP and drains background workers on
// shutdown. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("votechain exited", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	in, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.close(log)

	a, err := wire(ctx, cfg, in, log)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(*a.router))
	g, gctx := errgroup.WithContext(ctx)

	if a.sink != nil {
		a.sink.Start()
	}
	if a.stores.memChallenges != nil {
		g.Go(func() error {
			a.stores.memChallenges.StartSweeper(gctx, sweepInterval)
			return nil
		})
	}
	if a.stores.memRateLimit != nil {
		g.Go(func() error {
			a.stores.memRateLimit.StartSweeper(gctx, sweepInterval, cfg.RateLimit.Window)
			return nil
		})
	}

	g.Go(func() error {
		log.Info("starting votechain", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		log.Info("http server stopped")
		return nil
	})

	err = g.Wait()

	// Stored events first, then whatever the sink still holds.
	a.publisher.Close()
	if a.sink != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
		defer cancel()
		if closeErr := a.sink.Close(flushCtx); closeErr != nil {
			log.Warn("security sink closed with undelivered events", "error", closeErr, "pending", a.sink.Pending())
		}
	}
	return err
}
