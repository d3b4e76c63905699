// Package main runs the scan service: an HTTP API in front of the
// failover router, the shared cache, and the decryption gateway.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"zcash-view-scanner/internal/api"
	"zcash-view-scanner/internal/config"
	"zcash-view-scanner/internal/decrypt"
	"zcash-view-scanner/internal/failover"
	"zcash-view-scanner/internal/provider"
	"zcash-view-scanner/internal/ratelimit"
	"zcash-view-scanner/internal/scan"
	"zcash-view-scanner/internal/storage"
	boltstore "zcash-view-scanner/internal/storage/bolt"
	chstore "zcash-view-scanner/internal/storage/clickhouse"
	"zcash-view-scanner/internal/storage/memory"
	pgstore "zcash-view-scanner/internal/storage/postgres"
	"zcash-view-scanner/internal/zcash"
)

const gracefulShutdownPeriod = 30 * time.Second

var (
	confFlag string

	lo *slog.Logger
)

func init() {
	flag.StringVar(&confFlag, "config", "config.toml", "configuration file path")
	flag.Parse()

	lo = config.InitLogger()
}

func main() {
	ko, err := config.InitConfig(confFlag)
	if err != nil {
		lo.Error("could not load configuration", "error", err)
		os.Exit(1)
	}
	cfg, err := config.FromKoanf(ko)
	if err != nil {
		lo.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := notifyShutdown()
	defer stop()

	cache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		lo.Error("could not open cache backend", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	if err := cache.Init(ctx); err != nil {
		lo.Error("could not initialize cache backend", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	lo.Debug("cache backend ready", "backend", cfg.Cache.Backend)

	orchestrator, err := buildOrchestrator(cfg, cache, lo)
	if err != nil {
		lo.Error("could not assemble scanner", "error", err)
		os.Exit(1)
	}

	apiServer := &http.Server{
		Addr:    cfg.API.Listen,
		Handler: api.New(api.Opts{Orchestrator: orchestrator, Logg: lo}),
	}

	go func() {
		lo.Info("starting API server", "address", cfg.API.Listen)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lo.Error("API server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	lo.Info("shutdown signal received, initiating graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownPeriod)
	defer cancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		lo.Error("API server shutdown error", "error", err)
	}
	if err := cache.Close(); err != nil {
		lo.Error("cache close error", "error", err)
	}
	lo.Info("graceful shutdown complete")
}

// buildOrchestrator wires the full scan path: one shared rate limiter, one
// provider client per configured endpoint, the failover router over them,
// and the decryption gateway.
func buildOrchestrator(cfg *config.Config, cache storage.Cache, lo *slog.Logger) (*scan.Orchestrator, error) {
	limiter := ratelimit.New(cfg.RPC.RateLimit, time.Second)

	providers := make([]failover.Provider, 0, len(cfg.RPC.Endpoints))
	for _, endpoint := range cfg.RPC.Endpoints {
		rpc := zcash.NewHTTPClient(endpoint,
			zcash.WithTimeout(cfg.RPC.Timeout),
			zcash.WithMaxRetries(cfg.RPC.MaxRetries),
			zcash.WithLimiter(limiter),
		)
		providers = append(providers, provider.New(provider.Opts{
			RPC:   rpc,
			Cache: cache,
			Logg:  lo,
			Name:  rpc.Endpoint(),
		}))
	}

	router, err := failover.New(failover.Opts{
		Providers: providers,
		Logg:      lo,
	})
	if err != nil {
		return nil, fmt.Errorf("build failover router: %w", err)
	}

	gateway := decrypt.NewGateway(decrypt.GatewayOpts{
		Capability: decrypt.NewExecCapability(cfg.Decryptor.Bin),
		Logg:       lo,
	})

	return scan.NewOrchestrator(scan.OrchestratorOpts{
		Source:    router,
		Decrypter: gateway,
		Logg:      lo,
	}), nil
}

// openCache constructs the configured cache backend.
func openCache(ctx context.Context, cfg config.CacheConfig) (storage.Cache, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(), nil
	case "bolt":
		return boltstore.New(cfg.Path)
	case "postgres":
		pool, err := pgstore.NewPool(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return pgstore.New(pool), nil
	case "clickhouse":
		conn, err := chstore.NewConn(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return chstore.New(conn), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// notifyShutdown creates a context that is cancelled when the application
// receives a shutdown signal.
func notifyShutdown() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
}
