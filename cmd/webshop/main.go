package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webshop/internal/app"
	"webshop/internal/config"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := run(cfg); err != nil {
		log.Fatalf("webshop failed: %v", err)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	snapCtx, cancelSnapshots := context.WithCancel(context.Background())
	defer cancelSnapshots()
	if cfg.SnapshotInterval > 0 {
		go a.Snapshots.Loop(snapCtx, cfg.SnapshotInterval)
	}

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      a.Handler.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("webshop listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
	}

	log.Printf("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	cancelSnapshots()

	// last snapshot after in-flight requests have drained
	if _, err := a.Snapshots.Run(shutdownCtx); err != nil {
		log.Printf("final snapshot: %v", err)
	}
	log.Printf("webshop stopped")
	return nil
}
