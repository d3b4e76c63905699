// Package bolt provides an embedded file-backed cache backend using bbolt.
// It is the default backend for single-node deployments: no external
// service, one file, crash-safe writes.
package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	bbolt "go.etcd.io/bbolt"

	"zcash-view-scanner/internal/storage"
	"zcash-view-scanner/internal/zcash"
)

const (
	// dbFileMode is the file mode for the database file (read-write for owner only).
	dbFileMode = 0600

	bucketBlockHashes     = "block_hashes"
	bucketBlocks          = "blocks"
	bucketRawTransactions = "raw_transactions"
)

// sortableOrder encodes heights big-endian so lexicographic key order
// matches numeric order.
var sortableOrder = binary.BigEndian

// Cache is a bbolt implementation of storage.Cache.
type Cache struct {
	db *bbolt.DB
}

// New opens (or creates) the database file at path.
func New(path string) (*Cache, error) {
	db, err := bbolt.Open(path, dbFileMode, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &Cache{db: db}, nil
}

var _ storage.Cache = (*Cache)(nil)

// Init creates the three buckets if absent. Safe to call repeatedly.
func (c *Cache) Init(_ context.Context) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketBlockHashes, bucketBlocks, bucketRawTransactions} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// heightKey encodes a block height as a sortable fixed-width key.
func heightKey(height int64) []byte {
	key := make([]byte, 8)
	sortableOrder.PutUint64(key, uint64(height))
	return key
}

// bucket returns the named bucket or an error if Init has not run.
func bucket(tx *bbolt.Tx, name string) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(name))
	if b == nil {
		return nil, fmt.Errorf("bucket %s missing: cache not initialized", name)
	}
	return b, nil
}

// GetBlockHash returns the block hash cached for a height.
func (c *Cache) GetBlockHash(_ context.Context, height int64) (string, bool, error) {
	var hash string
	var ok bool

	err := c.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketBlockHashes)
		if err != nil {
			return err
		}
		if v := b.Get(heightKey(height)); v != nil {
			hash = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get block hash: %w", err)
	}
	return hash, ok, nil
}

// SetBlockHash caches the block hash for a height.
func (c *Cache) SetBlockHash(_ context.Context, height int64, hash string) error {
	if height < 0 || hash == "" {
		return storage.ErrInvalidInput
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketBlockHashes)
		if err != nil {
			return err
		}
		return b.Put(heightKey(height), []byte(hash))
	})
	if err != nil {
		return fmt.Errorf("set block hash: %w", err)
	}
	return nil
}

// GetBlock returns the block record cached for a hash.
func (c *Cache) GetBlock(_ context.Context, hash string) (*zcash.BlockRecord, bool, error) {
	var raw []byte

	err := c.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketBlocks)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(hash)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get block: %w", err)
	}
	if raw == nil {
		return nil, false, nil
	}

	var block zcash.BlockRecord
	if err := json.Unmarshal(raw, &block); err != nil {
		return nil, false, fmt.Errorf("decode block: %w", err)
	}
	return &block, true, nil
}

// SetBlock caches a block record by hash.
func (c *Cache) SetBlock(_ context.Context, hash string, block *zcash.BlockRecord) error {
	if hash == "" || block == nil {
		return storage.ErrInvalidInput
	}

	raw, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketBlocks)
		if err != nil {
			return err
		}
		return b.Put([]byte(hash), raw)
	})
	if err != nil {
		return fmt.Errorf("set block: %w", err)
	}
	return nil
}

// GetRawTransaction returns the hex payload cached for a transaction id.
func (c *Cache) GetRawTransaction(_ context.Context, txid string) (string, bool, error) {
	var hex string
	var ok bool

	err := c.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRawTransactions)
		if err != nil {
			return err
		}
		if v := b.Get([]byte(txid)); v != nil {
			hex = string(v)
			ok = true
		}
		return nil
	})
	if err != nil {
		return "", false, fmt.Errorf("get raw transaction: %w", err)
	}
	return hex, ok, nil
}

// SetRawTransaction caches the hex payload for a transaction id.
func (c *Cache) SetRawTransaction(_ context.Context, txid string, hex string) error {
	if txid == "" || hex == "" {
		return storage.ErrInvalidInput
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, bucketRawTransactions)
		if err != nil {
			return err
		}
		return b.Put([]byte(txid), []byte(hex))
	})
	if err != nil {
		return fmt.Errorf("set raw transaction: %w", err)
	}
	return nil
}

// Close closes the database file.
func (c *Cache) Close() error {
	return c.db.Close()
}
