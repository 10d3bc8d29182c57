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

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/pass-request-client/internal/service"
	"github.com/noah-isme/pass-request-client/internal/stubserver"
	"github.com/noah-isme/pass-request-client/pkg/config"
	"github.com/noah-isme/pass-request-client/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := stubserver.New(stubserver.Config{
		JWTSecret:      cfg.Stub.JWTSecret,
		JWTExpiration:  cfg.Stub.JWTExpiration,
		AllowedOrigins: cfg.Stub.AllowedOrigins,
		Seed:           true,
	}, service.NewMetricsService(), logr.Named("stub"))
	if err != nil {
		logr.Sugar().Fatalw("failed to build stub server", "error", err)
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Stub.Port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logr.Sugar().Infow("stub server starting", "addr", httpServer.Addr, "env", cfg.Env, "password", stubserver.SeedPassword)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
