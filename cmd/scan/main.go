// Package main runs a single scan from the command line and prints the
// result as JSON on stdout.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

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

var (
	confFlag    string
	heightsFlag string
	ufvkFlag    string

	lo *slog.Logger
)

func init() {
	flag.StringVar(&confFlag, "config", "config.toml", "configuration file path")
	flag.StringVar(&heightsFlag, "heights", "", "comma-separated block heights to scan, e.g. 2500000,2500001")
	flag.StringVar(&ufvkFlag, "ufvk", "", "unified full viewing key (uview1... or uviewtest1...)")
	flag.Parse()

	lo = config.InitLogger()
}

func main() {
	heights, err := parseHeights(heightsFlag)
	if err != nil {
		lo.Error("invalid -heights flag", "error", err)
		os.Exit(2)
	}

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

	ctx := context.Background()

	cache, err := openCache(ctx, cfg.Cache)
	if err != nil {
		lo.Error("could not open cache backend", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	if err := cache.Init(ctx); err != nil {
		lo.Error("could not initialize cache backend", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			lo.Error("cache close error", "error", err)
		}
	}()

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

	router, err := failover.New(failover.Opts{Providers: providers, Logg: lo})
	if err != nil {
		lo.Error("could not build failover router", "error", err)
		os.Exit(1)
	}

	orchestrator := scan.NewOrchestrator(scan.OrchestratorOpts{
		Source: router,
		Decrypter: decrypt.NewGateway(decrypt.GatewayOpts{
			Capability: decrypt.NewExecCapability(cfg.Decryptor.Bin),
			Logg:       lo,
		}),
		Logg: lo,
	})

	res, err := orchestrator.Scan(ctx, scan.Request{Heights: heights, UFVK: ufvkFlag})
	if err != nil {
		var verr *scan.ValidationError
		if errors.As(err, &verr) {
			lo.Error("invalid scan request", "reason", verr.Reason)
			os.Exit(2)
		}
		lo.Error("scan failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		lo.Error("could not encode result", "error", err)
		os.Exit(1)
	}
}

// parseHeights parses the comma-separated -heights flag.
func parseHeights(s string) ([]int64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("no heights given")
	}
	parts := strings.Split(s, ",")
	heights := make([]int64, 0, len(parts))
	for _, p := range parts {
		h, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse height %q: %w", p, err)
		}
		heights = append(heights, h)
	}
	return heights, nil
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
