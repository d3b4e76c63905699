package zcash

import "context"

// RPCClient defines the zcashd JSON-RPC interface used by the scanner.
type RPCClient interface {
	// GetBlockHash retrieves the block hash at the given height.
	GetBlockHash(ctx context.Context, height int64) (string, error)

	// GetBlock retrieves block metadata and its transaction id list by hash.
	GetBlock(ctx context.Context, hash string) (*BlockRecord, error)

	// GetRawTransaction retrieves the hex-encoded payload of a transaction.
	GetRawTransaction(ctx context.Context, txid string) (string, error)

	// GetBlockCount retrieves the current chain tip height.
	GetBlockCount(ctx context.Context) (int64, error)
}

// BlockRecord holds the subset of getblock output the scanner needs.
// Finalized blocks are immutable, so a record observed once never changes.
type BlockRecord struct {
	Hash   string   `json:"hash"`
	Height int64    `json:"height"`
	Time   int64    `json:"time"`
	TxIDs  []string `json:"tx"`
}

// RawTransaction pairs a transaction id with its hex-encoded payload.
type RawTransaction struct {
	TxID string `json:"txid"`
	Hex  string `json:"hex"`
}
