package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"zcash-view-scanner/internal/storage"
	"zcash-view-scanner/internal/zcash"
)

// Cache implements storage.Cache using PostgreSQL.
type Cache struct {
	pool *Pool
}

// New creates a new PostgreSQL cache over an existing pool.
func New(pool *Pool) *Cache {
	return &Cache{pool: pool}
}

// Compile-time interface check.
var _ storage.Cache = (*Cache)(nil)

// Init creates the three logical tables if absent. Safe to call repeatedly.
func (c *Cache) Init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS block_hashes (
			height BIGINT PRIMARY KEY,
			hash TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS blocks (
			hash TEXT PRIMARY KEY,
			data JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS raw_transactions (
			txid TEXT PRIMARY KEY,
			hex TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init cache schema: %w", err)
		}
	}
	return nil
}

// GetBlockHash returns the block hash cached for a height.
func (c *Cache) GetBlockHash(ctx context.Context, height int64) (string, bool, error) {
	var hash string
	err := c.pool.QueryRow(ctx,
		`SELECT hash FROM block_hashes WHERE height = $1`, height,
	).Scan(&hash)
	if err != nil {
		if isNotFoundError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get block hash: %w", err)
	}
	return hash, true, nil
}

// SetBlockHash caches the block hash for a height. Last writer wins.
func (c *Cache) SetBlockHash(ctx context.Context, height int64, hash string) error {
	if height < 0 || hash == "" {
		return storage.ErrInvalidInput
	}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO block_hashes (height, hash) VALUES ($1, $2)
		ON CONFLICT (height) DO UPDATE SET hash = EXCLUDED.hash
	`, height, hash)
	if err != nil {
		return fmt.Errorf("set block hash: %w", err)
	}
	return nil
}

// GetBlock returns the block record cached for a hash.
func (c *Cache) GetBlock(ctx context.Context, hash string) (*zcash.BlockRecord, bool, error) {
	var raw []byte
	err := c.pool.QueryRow(ctx,
		`SELECT data FROM blocks WHERE hash = $1`, hash,
	).Scan(&raw)
	if err != nil {
		if isNotFoundError(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get block: %w", err)
	}

	var block zcash.BlockRecord
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, false, fmt.Errorf("decode block: %w", err)
	}
	return &block, true, nil
}

// SetBlock caches a block record by hash. Last writer wins.
func (c *Cache) SetBlock(ctx context.Context, hash string, block *zcash.BlockRecord) error {
	if hash == "" || block == nil {
		return storage.ErrInvalidInput
	}

	raw, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	_, err = c.pool.Exec(ctx, `
		INSERT INTO blocks (hash, data) VALUES ($1, $2)
		ON CONFLICT (hash) DO UPDATE SET data = EXCLUDED.data
	`, hash, raw)
	if err != nil {
		return fmt.Errorf("set block: %w", err)
	}
	return nil
}

// GetRawTransaction returns the hex payload cached for a transaction id.
func (c *Cache) GetRawTransaction(ctx context.Context, txid string) (string, bool, error) {
	var hex string
	err := c.pool.QueryRow(ctx,
		`SELECT hex FROM raw_transactions WHERE txid = $1`, txid,
	).Scan(&hex)
	if err != nil {
		if isNotFoundError(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get raw transaction: %w", err)
	}
	return hex, true, nil
}

// SetRawTransaction caches the hex payload for a transaction id.
func (c *Cache) SetRawTransaction(ctx context.Context, txid string, hex string) error {
	if txid == "" || hex == "" {
		return storage.ErrInvalidInput
	}

	_, err := c.pool.Exec(ctx, `
		INSERT INTO raw_transactions (txid, hex) VALUES ($1, $2)
		ON CONFLICT (txid) DO UPDATE SET hex = EXCLUDED.hex
	`, txid, hex)
	if err != nil {
		return fmt.Errorf("set raw transaction: %w", err)
	}
	return nil
}

// Close closes the underlying pool.
func (c *Cache) Close() error {
	c.pool.Close()
	return nil
}
