// Package main is the chatify server: it wires config, storage, the
// WebSocket hub, services, handlers and routes, then serves until SIGINT or
// SIGTERM.
//
// Startup order:
//  1. config and logger
//  2. conversation store (MongoDB or SQLite) and the optional Redis mirror
//  3. hub, services, hub callbacks
//  4. handlers, routes, CORS
//  5. HTTP server and graceful shutdown
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/Ajay-css/chatify/config"
	"github.com/Ajay-css/chatify/pkg/logger"
	"github.com/Ajay-css/chatify/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("[main] failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("[main] chatify server starting",
		zap.Int("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver))

	if err := os.MkdirAll(cfg.Upload.Dir, 0755); err != nil {
		logger.Fatalf("[main] failed to create upload directory: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	repos, err := initRepositories(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatalf("[main] failed to initialize storage: %v", err)
	}
	defer repos.Close()

	hub := ws.NewHub()
	if repos.Presence != nil {
		hub.SetPresenceStore(repos.Presence)
	}

	svcs := initServices(cfg, repos, hub)
	defer svcs.Close()

	registerHubCallbacks(hub, svcs)

	h := initHandlers(cfg, svcs, hub)
	defer h.Close()

	mux := http.NewServeMux()
	initRoutes(mux, h, cfg.Upload.Dir)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           corsHandler.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Infof("[main] listening on %s", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("[main] server error: %v", err)
		}
	}()

	<-done
	logger.Infof("[main] shutting down...")

	hub.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("[main] forced shutdown: %v", err)
	}

	logger.Infof("[main] server stopped")
}
