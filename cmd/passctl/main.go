package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/pass-request-client/internal/repository"
	"github.com/noah-isme/pass-request-client/internal/service"
	"github.com/noah-isme/pass-request-client/pkg/config"
	"github.com/noah-isme/pass-request-client/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" {
		usage(stderr)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("failed to load config: %v", err)
		return 1
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Printf("failed to init logger: %v", err)
		return 1
	}
	defer logr.Sync() //nolint:errcheck

	tokens, closeTokens, err := repository.OpenTokenStore(ctx, cfg, logr.Named("tokens"))
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", describe(err))
		return 1
	}
	defer func() {
		if err := closeTokens(); err != nil {
			logr.Warn("failed to close token store", zap.Error(err))
		}
	}()

	deps, err := service.NewDependencies(cfg, tokens, logr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %s\n", describe(err))
		return 1
	}

	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, deps.Metrics, logr)
		defer shutdown()
	}

	a := &app{deps: deps, location: cfg.Location, pageSize: cfg.Paging.PageSize, logger: logr, out: stdout}
	return a.execute(ctx, args, stderr)
}

func serveMetrics(addr string, metrics *service.MetricsService, logr *zap.Logger) func() {
	srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Warn("metrics server failed", zap.Error(err))
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: passctl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-13s %s\n", c.name, c.summary)
	}
}
