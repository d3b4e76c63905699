// Package storage defines the cache contract for immutable ledger data.
// Three entity kinds are cached: block hashes by height, blocks by hash,
// and raw transaction payloads by id. Entries are never evicted; the
// ledger is append-only and finalized data for a given key never changes.
package storage

import (
	"context"

	"zcash-view-scanner/internal/zcash"
)

// Cache provides get/set access to the three cached entity kinds.
//
// A miss is not an error: Get* returns ok=false with a nil error. Set* is
// an idempotent upsert; writing a key that already holds the same value is
// observably a no-op.
type Cache interface {
	// Init prepares the backing store, creating the three logical tables
	// or buckets if absent. Calling it repeatedly is safe.
	Init(ctx context.Context) error

	// GetBlockHash returns the block hash cached for a height.
	GetBlockHash(ctx context.Context, height int64) (string, bool, error)

	// SetBlockHash caches the block hash for a height.
	SetBlockHash(ctx context.Context, height int64, hash string) error

	// GetBlock returns the block record cached for a hash.
	GetBlock(ctx context.Context, hash string) (*zcash.BlockRecord, bool, error)

	// SetBlock caches a block record by hash.
	SetBlock(ctx context.Context, hash string, block *zcash.BlockRecord) error

	// GetRawTransaction returns the hex payload cached for a transaction id.
	GetRawTransaction(ctx context.Context, txid string) (string, bool, error)

	// SetRawTransaction caches the hex payload for a transaction id.
	SetRawTransaction(ctx context.Context, txid string, hex string) error

	// Close releases the backing store.
	Close() error
}
