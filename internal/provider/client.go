// Package provider implements the cache-first client for one RPC endpoint.
// Reads consult the cache before the network; fetched entities are written
// through to the cache before being returned, so immutable ledger data is
// fetched at most once per deployment.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"zcash-view-scanner/internal/observability"
	"zcash-view-scanner/internal/storage"
	"zcash-view-scanner/internal/zcash"
)

type (
	// Opts contains configuration options for creating a new Client.
	Opts struct {
		RPC   zcash.RPCClient // JSON-RPC client for this endpoint
		Cache storage.Cache   // shared cache, may be nil to disable caching
		Logg  *slog.Logger    // structured logger
		Name  string          // redacted endpoint address, for logs
	}

	// Client fetches ledger entities for one endpoint, cache first.
	Client struct {
		rpc   zcash.RPCClient
		cache storage.Cache
		logg  *slog.Logger
		name  string
	}
)

// New creates a new Client.
func New(o Opts) *Client {
	return &Client{
		rpc:   o.RPC,
		cache: o.Cache,
		logg:  o.Logg,
		name:  o.Name,
	}
}

// Name returns the redacted endpoint address this client talks to.
func (c *Client) Name() string {
	return c.name
}

// GetBlockHash resolves the block hash for a height, cache first.
func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	if c.cache != nil {
		hash, ok, err := c.cache.GetBlockHash(ctx, height)
		if err != nil {
			c.logg.Warn("cache read failed", "kind", "block_hash", "height", height, "error", err)
		} else if ok {
			observability.RecordCacheOp("block_hash", "hit")
			return hash, nil
		} else {
			observability.RecordCacheOp("block_hash", "miss")
		}
	}

	hash, err := callRPC(ctx, "getblockhash", func(ctx context.Context) (string, error) {
		return c.rpc.GetBlockHash(ctx, height)
	})
	if err != nil {
		return "", err
	}

	c.writeThrough(ctx, "block_hash", func(ctx context.Context) error {
		return c.cache.SetBlockHash(ctx, height, hash)
	})
	return hash, nil
}

// GetBlock resolves a block record by hash, cache first.
func (c *Client) GetBlock(ctx context.Context, hash string) (*zcash.BlockRecord, error) {
	if c.cache != nil {
		block, ok, err := c.cache.GetBlock(ctx, hash)
		if err != nil {
			c.logg.Warn("cache read failed", "kind", "block", "hash", hash, "error", err)
		} else if ok {
			observability.RecordCacheOp("block", "hit")
			return block, nil
		} else {
			observability.RecordCacheOp("block", "miss")
		}
	}

	block, err := callRPC(ctx, "getblock", func(ctx context.Context) (*zcash.BlockRecord, error) {
		return c.rpc.GetBlock(ctx, hash)
	})
	if err != nil {
		return nil, err
	}

	c.writeThrough(ctx, "block", func(ctx context.Context) error {
		return c.cache.SetBlock(ctx, hash, block)
	})
	return block, nil
}

// GetRawTransaction resolves the hex payload for a transaction id, cache
// first. Only the hex payload is cached, not the full verbose response.
func (c *Client) GetRawTransaction(ctx context.Context, txid string) (string, error) {
	if c.cache != nil {
		hex, ok, err := c.cache.GetRawTransaction(ctx, txid)
		if err != nil {
			c.logg.Warn("cache read failed", "kind", "raw_transaction", "txid", txid, "error", err)
		} else if ok {
			observability.RecordCacheOp("raw_transaction", "hit")
			return hex, nil
		} else {
			observability.RecordCacheOp("raw_transaction", "miss")
		}
	}

	hex, err := callRPC(ctx, "getrawtransaction", func(ctx context.Context) (string, error) {
		return c.rpc.GetRawTransaction(ctx, txid)
	})
	if err != nil {
		return "", err
	}

	c.writeThrough(ctx, "raw_transaction", func(ctx context.Context) error {
		return c.cache.SetRawTransaction(ctx, txid, hex)
	})
	return hex, nil
}

// GetBlockCount returns the chain tip height. Never cached: the tip moves.
func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	return callRPC(ctx, "getblockcount", func(ctx context.Context) (int64, error) {
		return c.rpc.GetBlockCount(ctx)
	})
}

// GetBlockTransactions resolves every transaction of the block at the given
// height. The hash and block lookups are sequential; the raw transaction
// fetches fan out concurrently. The returned slice preserves the order in
// which the block lists its transactions.
func (c *Client) GetBlockTransactions(ctx context.Context, height int64) ([]zcash.RawTransaction, error) {
	hash, err := c.GetBlockHash(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("resolve hash for height %d: %w", height, err)
	}

	block, err := c.GetBlock(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("resolve block %s: %w", hash, err)
	}

	txs := make([]zcash.RawTransaction, len(block.TxIDs))

	g, gctx := errgroup.WithContext(ctx)
	for i, txid := range block.TxIDs {
		g.Go(func() error {
			hex, err := c.GetRawTransaction(gctx, txid)
			if err != nil {
				return fmt.Errorf("resolve transaction %s: %w", txid, err)
			}
			txs[i] = zcash.RawTransaction{TxID: txid, Hex: hex}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return txs, nil
}

// callRPC wraps one RPC operation with latency and outcome metrics.
func callRPC[T any](ctx context.Context, method string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := fn(ctx)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.RecordRPCCall(method, outcome, time.Since(start).Seconds())
	return v, err
}

// writeThrough persists a fetched entity; a cache write failure is logged
// but never fails the read that produced the value.
func (c *Client) writeThrough(ctx context.Context, kind string, set func(context.Context) error) {
	if c.cache == nil {
		return
	}
	if err := set(ctx); err != nil {
		c.logg.Warn("cache write failed", "kind", kind, "error", err)
	}
}
