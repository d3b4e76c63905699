// Package memory provides an in-memory cache backend, used for tests and
// single-shot CLI runs where persistence across processes is not needed.
package memory

import (
	"context"
	"sync"

	"zcash-view-scanner/internal/storage"
	"zcash-view-scanner/internal/zcash"
)

// Cache is an in-memory implementation of storage.Cache.
type Cache struct {
	mu        sync.RWMutex
	blockHash map[int64]string
	blocks    map[string]*zcash.BlockRecord
	rawTxs    map[string]string
}

// New creates a new in-memory cache.
func New() *Cache {
	return &Cache{
		blockHash: make(map[int64]string),
		blocks:    make(map[string]*zcash.BlockRecord),
		rawTxs:    make(map[string]string),
	}
}

var _ storage.Cache = (*Cache)(nil)

// Init is a no-op; the maps are created by New. Safe to call repeatedly.
func (c *Cache) Init(_ context.Context) error {
	return nil
}

// GetBlockHash returns the block hash cached for a height.
func (c *Cache) GetBlockHash(_ context.Context, height int64) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash, ok := c.blockHash[height]
	return hash, ok, nil
}

// SetBlockHash caches the block hash for a height.
func (c *Cache) SetBlockHash(_ context.Context, height int64, hash string) error {
	if height < 0 || hash == "" {
		return storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.blockHash[height] = hash
	return nil
}

// GetBlock returns a copy of the block record cached for a hash.
func (c *Cache) GetBlock(_ context.Context, hash string) (*zcash.BlockRecord, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	block, ok := c.blocks[hash]
	if !ok {
		return nil, false, nil
	}

	blockCopy := *block
	blockCopy.TxIDs = append([]string(nil), block.TxIDs...)
	return &blockCopy, true, nil
}

// SetBlock caches a block record by hash.
func (c *Cache) SetBlock(_ context.Context, hash string, block *zcash.BlockRecord) error {
	if hash == "" || block == nil {
		return storage.ErrInvalidInput
	}

	blockCopy := *block
	blockCopy.TxIDs = append([]string(nil), block.TxIDs...)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.blocks[hash] = &blockCopy
	return nil
}

// GetRawTransaction returns the hex payload cached for a transaction id.
func (c *Cache) GetRawTransaction(_ context.Context, txid string) (string, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hex, ok := c.rawTxs[txid]
	return hex, ok, nil
}

// SetRawTransaction caches the hex payload for a transaction id.
func (c *Cache) SetRawTransaction(_ context.Context, txid string, hex string) error {
	if txid == "" || hex == "" {
		return storage.ErrInvalidInput
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.rawTxs[txid] = hex
	return nil
}

// Close is a no-op.
func (c *Cache) Close() error {
	return nil
}
