// Package decrypt invokes the external decryption capability that matches
// raw transactions against a viewing key. The capability is a black box:
// it may be a subprocess, a library call, or a remote service. The scanner
// only depends on the Capability interface.
package decrypt

import (
	"context"
	"time"
)

// Request identifies one transaction to try against a viewing key.
type Request struct {
	TxID   string
	UFVK   string
	RawHex string
	Height int64
}

// Transaction is the decrypted view of one transaction that matched the
// viewing key. Field names mirror the capability's JSON output.
type Transaction struct {
	TransactionID   string    `json:"transaction_id"`
	TransactionHash string    `json:"transaction_hash"`
	AmountZats      int64     `json:"amount_zats"`
	AmountZec       float64   `json:"amount_zec"`
	IncomingZats    int64     `json:"incoming_zats"`
	IncomingZec     float64   `json:"incoming_zec"`
	ChangeZats      int64     `json:"change_zats"`
	ChangeZec       float64   `json:"change_zec"`
	OutgoingZats    int64     `json:"outgoing_zats"`
	OutgoingZec     float64   `json:"outgoing_zec"`
	FeeZats         int64     `json:"fee_zats"`
	FeeZec          float64   `json:"fee_zec"`
	Timestamp       time.Time `json:"timestamp"`
	BlockHeight     int64     `json:"block_height"`
	Outputs         []Output  `json:"outputs"`
	TxSizeBytes     int       `json:"tx_size_bytes"`
}

// Output is one decrypted output within a transaction.
type Output struct {
	Protocol     string  `json:"protocol"` // "Sapling" or "Orchard"
	AmountZats   int64   `json:"amount_zats"`
	AmountZec    float64 `json:"amount_zec"`
	Index        int     `json:"index"`
	TransferType string  `json:"transfer_type"` // Incoming, WalletInternal, Outgoing
	Direction    string  `json:"direction"`     // received, change, sent
	Memo         string  `json:"memo"`
}

// Capability attempts to decrypt one transaction against a viewing key.
// An error or a result with zero outputs means the transaction does not
// belong to the key; callers treat both as a miss, not a failure.
type Capability interface {
	Decrypt(ctx context.Context, req Request) (*Transaction, error)
}
