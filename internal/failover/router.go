// Package failover makes provider operations resilient to single-endpoint
// outage. The router rotates through an ordered provider list starting at
// the last provider that succeeded, so a healthy fallback keeps serving
// until the rotation finds it unhealthy in turn.
package failover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"zcash-view-scanner/internal/observability"
	"zcash-view-scanner/internal/zcash"
)

// defaultRetryDelay is the pause between attempts on different providers.
const defaultRetryDelay = 500 * time.Millisecond

// Provider is the set of operations the router makes resilient.
type Provider interface {
	Name() string
	GetBlockHash(ctx context.Context, height int64) (string, error)
	GetBlock(ctx context.Context, hash string) (*zcash.BlockRecord, error)
	GetRawTransaction(ctx context.Context, txid string) (string, error)
	GetBlockTransactions(ctx context.Context, height int64) ([]zcash.RawTransaction, error)
	GetBlockCount(ctx context.Context) (int64, error)
}

// ErrNoProviders is returned by New when the endpoint list is empty.
var ErrNoProviders = errors.New("no providers configured")

// AggregateError reports that every configured provider failed for one
// operation. It wraps the most recent underlying cause.
type AggregateError struct {
	Providers int
	Last      error
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("all %d providers failed: %v", e.Providers, e.Last)
}

func (e *AggregateError) Unwrap() error {
	return e.Last
}

type (
	// Opts contains configuration options for creating a new Router.
	Opts struct {
		Providers  []Provider
		Logg       *slog.Logger
		RetryDelay time.Duration // delay between providers, default 500ms
	}

	// Router tries providers in rotation, remembering the last good one.
	Router struct {
		providers  []Provider
		logg       *slog.Logger
		retryDelay time.Duration

		mu      sync.Mutex
		current int
	}
)

// New creates a new Router. It fails fast when no providers are given.
func New(o Opts) (*Router, error) {
	if len(o.Providers) == 0 {
		return nil, ErrNoProviders
	}

	delay := o.RetryDelay
	if delay <= 0 {
		delay = defaultRetryDelay
	}

	return &Router{
		providers:  o.Providers,
		logg:       o.Logg,
		retryDelay: delay,
	}, nil
}

// currentIndex reads the sticky index under the lock.
func (r *Router) currentIndex() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// setCurrent advances the sticky index after a successful call. The index
// only moves on success, so a failed rotation never leaves it mid-way.
func (r *Router) setCurrent(idx int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = idx
}

// classify maps a provider error to a failure class for logs and metrics.
func classify(err error) string {
	var rpcErr *zcash.RPCError
	if errors.As(err, &rpcErr) {
		return "protocol"
	}

	var httpErr *zcash.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 429:
			return "rate_limit"
		case httpErr.StatusCode >= 500:
			return "server_error"
		}
	}

	return "other"
}

// do runs fn against providers in rotation starting from the sticky index.
// Every provider is attempted once per call; no provider is permanently
// blacklisted, since transient outages are expected to resolve.
func (r *Router) do(ctx context.Context, op string, fn func(Provider) error) error {
	start := r.currentIndex()
	n := len(r.providers)

	var lastErr error

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		p := r.providers[idx]

		err := fn(p)
		if err == nil {
			if idx != start {
				r.setCurrent(idx)
				observability.RecordFailover()
				r.logg.Info("failover: switched provider",
					"op", op, "provider", p.Name(), "index", idx)
			}
			return nil
		}

		lastErr = err
		class := classify(err)
		observability.RecordProviderFailure(class)
		r.logg.Warn("provider call failed",
			"op", op, "provider", p.Name(), "class", class, "error", err)

		if i < n-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.retryDelay):
			}
		}
	}

	return &AggregateError{Providers: n, Last: lastErr}
}

// GetBlockHash resolves the block hash for a height with failover.
func (r *Router) GetBlockHash(ctx context.Context, height int64) (string, error) {
	var hash string
	err := r.do(ctx, "getblockhash", func(p Provider) error {
		var err error
		hash, err = p.GetBlockHash(ctx, height)
		return err
	})
	return hash, err
}

// GetBlock resolves a block record by hash with failover.
func (r *Router) GetBlock(ctx context.Context, hash string) (*zcash.BlockRecord, error) {
	var block *zcash.BlockRecord
	err := r.do(ctx, "getblock", func(p Provider) error {
		var err error
		block, err = p.GetBlock(ctx, hash)
		return err
	})
	return block, err
}

// GetRawTransaction resolves a transaction payload with failover.
func (r *Router) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	var hex string
	err := r.do(ctx, "getrawtransaction", func(p Provider) error {
		var err error
		hex, err = p.GetRawTransaction(ctx, txid)
		return err
	})
	return hex, err
}

// GetBlockTransactions resolves every transaction of a block with failover.
func (r *Router) GetBlockTransactions(ctx context.Context, height int64) ([]zcash.RawTransaction, error) {
	var txs []zcash.RawTransaction
	err := r.do(ctx, "getblocktransactions", func(p Provider) error {
		var err error
		txs, err = p.GetBlockTransactions(ctx, height)
		return err
	})
	return txs, err
}

// GetBlockCount resolves the chain tip height with failover.
func (r *Router) GetBlockCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.do(ctx, "getblockcount", func(p Provider) error {
		var err error
		count, err = p.GetBlockCount(ctx)
		return err
	})
	return count, err
}
