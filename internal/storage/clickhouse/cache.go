package clickhouse

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"zcash-view-scanner/internal/storage"
	"zcash-view-scanner/internal/zcash"
)

// Cache implements storage.Cache using ClickHouse.
type Cache struct {
	conn *Conn
}

// New creates a new ClickHouse cache over an existing connection.
func New(conn *Conn) *Cache {
	return &Cache{conn: conn}
}

// Compile-time interface check.
var _ storage.Cache = (*Cache)(nil)

// Init creates the three logical tables if absent. Safe to call repeatedly.
func (c *Cache) Init(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS block_hashes (
			height Int64,
			hash String
		) ENGINE = ReplacingMergeTree
		ORDER BY height`,
		`CREATE TABLE IF NOT EXISTS blocks (
			hash String,
			data String
		) ENGINE = ReplacingMergeTree
		ORDER BY hash`,
		`CREATE TABLE IF NOT EXISTS raw_transactions (
			txid String,
			hex String
		) ENGINE = ReplacingMergeTree
		ORDER BY txid`,
	}

	for _, stmt := range statements {
		if err := c.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init cache schema: %w", err)
		}
	}
	return nil
}

// scanOne runs a single-value lookup, mapping no-rows to a miss.
func (c *Cache) scanOne(ctx context.Context, query string, key interface{}, dest interface{}) (bool, error) {
	row := c.conn.QueryRow(ctx, query, key)
	if err := row.Scan(dest); err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// isNoRows reports whether the error is the driver's empty-result error.
// The native clickhouse-go driver surfaces sql.ErrNoRows from QueryRow.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// GetBlockHash returns the block hash cached for a height.
func (c *Cache) GetBlockHash(ctx context.Context, height int64) (string, bool, error) {
	var hash string
	ok, err := c.scanOne(ctx,
		`SELECT hash FROM block_hashes FINAL WHERE height = ? LIMIT 1`, height, &hash)
	if err != nil {
		return "", false, fmt.Errorf("get block hash: %w", err)
	}
	return hash, ok, nil
}

// SetBlockHash caches the block hash for a height. Last writer wins.
func (c *Cache) SetBlockHash(ctx context.Context, height int64, hash string) error {
	if height < 0 || hash == "" {
		return storage.ErrInvalidInput
	}

	if err := c.conn.Exec(ctx,
		`INSERT INTO block_hashes (height, hash) VALUES (?, ?)`, height, hash); err != nil {
		return fmt.Errorf("set block hash: %w", err)
	}
	return nil
}

// GetBlock returns the block record cached for a hash.
func (c *Cache) GetBlock(ctx context.Context, hash string) (*zcash.BlockRecord, bool, error) {
	var raw string
	ok, err := c.scanOne(ctx,
		`SELECT data FROM blocks FINAL WHERE hash = ? LIMIT 1`, hash, &raw)
	if err != nil {
		return nil, false, fmt.Errorf("get block: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var block zcash.BlockRecord
	if err := json.Unmarshal([]byte(raw), &block); err != nil {
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

	if err := c.conn.Exec(ctx,
		`INSERT INTO blocks (hash, data) VALUES (?, ?)`, hash, string(raw)); err != nil {
		return fmt.Errorf("set block: %w", err)
	}
	return nil
}

// GetRawTransaction returns the hex payload cached for a transaction id.
func (c *Cache) GetRawTransaction(ctx context.Context, txid string) (string, bool, error) {
	var hex string
	ok, err := c.scanOne(ctx,
		`SELECT hex FROM raw_transactions FINAL WHERE txid = ? LIMIT 1`, txid, &hex)
	if err != nil {
		return "", false, fmt.Errorf("get raw transaction: %w", err)
	}
	return hex, ok, nil
}

// SetRawTransaction caches the hex payload for a transaction id.
func (c *Cache) SetRawTransaction(ctx context.Context, txid string, hex string) error {
	if txid == "" || hex == "" {
		return storage.ErrInvalidInput
	}

	if err := c.conn.Exec(ctx,
		`INSERT INTO raw_transactions (txid, hex) VALUES (?, ?)`, txid, hex); err != nil {
		return fmt.Errorf("set raw transaction: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (c *Cache) Close() error {
	return c.conn.Close()
}
