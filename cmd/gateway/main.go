// Package main is the entry point for the gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelbridge/gateway/internal/config"
	"github.com/modelbridge/gateway/internal/metrics"
	"github.com/modelbridge/gateway/internal/router"
	"github.com/modelbridge/gateway/internal/server"
)

// shutdownGrace is how long in-flight streams get to finish once a
// shutdown signal arrives before the listener is torn down regardless.
const shutdownGrace = 30 * time.Second

func main() {
	configPath := flag.String("config", "", "path to an optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	env := router.EnvFromOS()
	gw := router.New(router.Config{
		Port:          cfg.Port,
		DefaultTarget: cfg.DefaultTarget,
		RoleMap:       cfg.RoleMap,
		Monitor:       cfg.Monitor,
	}, env)

	reg := metrics.New()
	srv := server.New(cfg, gw, reg)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: srv,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("gateway listening on :%d", cfg.Port)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case <-ctx.Done():
		stop()
		log.Printf("shutting down, waiting up to %s for in-flight requests", shutdownGrace)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("graceful shutdown failed: %v", err)
		}
	}
}
