// Package scan drives a scan request end to end: validate, fetch each
// requested block, attempt decryption of its transactions, and aggregate
// the matches. A failing block is recorded and skipped; it never aborts
// the rest of the request.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"zcash-view-scanner/internal/decrypt"
	"zcash-view-scanner/internal/observability"
	"zcash-view-scanner/internal/zcash"
)

const (
	maxHeightsPerRequest = 100

	// Unified full viewing key markers, longer testnet marker first so a
	// testnet key is never misread as mainnet.
	testnetKeyPrefix = "uviewtest1"
	mainnetKeyPrefix = "uview1"
)

type (
	// BlockSource resolves all transactions of one block. Satisfied by the
	// failover router.
	BlockSource interface {
		GetBlockTransactions(ctx context.Context, height int64) ([]zcash.RawTransaction, error)
	}

	// Decrypter attempts decryption of a batch of transactions. Satisfied
	// by the decrypt gateway.
	Decrypter interface {
		DecryptMany(ctx context.Context, reqs []decrypt.Request) ([]*decrypt.Transaction, error)
	}

	// OrchestratorOpts contains configuration options for creating a new
	// Orchestrator.
	OrchestratorOpts struct {
		Source    BlockSource
		Decrypter Decrypter
		Logg      *slog.Logger
	}

	// Orchestrator runs scan requests. It holds no per-request state and
	// is safe for concurrent use.
	Orchestrator struct {
		source    BlockSource
		decrypter Decrypter
		logg      *slog.Logger
	}

	// Request is one scan request: the block heights to scan and the
	// viewing key to scan with. The key must never be logged or persisted.
	Request struct {
		Heights []int64 `json:"heights"`
		UFVK    string  `json:"ufvk"`
	}

	// Result aggregates one scan. BlocksScanned always equals the number
	// of requested heights; blocks that failed contribute an entry to
	// Errors instead of transactions.
	Result struct {
		BlocksScanned     int                    `json:"blocksScanned"`
		TransactionsFound int                    `json:"transactionsFound"`
		Transactions      []*decrypt.Transaction `json:"transactions"`
		Errors            []string               `json:"errors,omitempty"`
	}
)

// ValidationError reports a malformed scan request. It is surfaced to the
// caller directly and never retried.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(o OrchestratorOpts) *Orchestrator {
	return &Orchestrator{
		source:    o.Source,
		decrypter: o.Decrypter,
		logg:      o.Logg,
	}
}

// Validate checks a request without executing it. It returns a
// *ValidationError describing the first problem found, or nil.
func Validate(req Request) error {
	if len(req.Heights) == 0 {
		return &ValidationError{Reason: "heights must be a non-empty array"}
	}
	if len(req.Heights) > maxHeightsPerRequest {
		return &ValidationError{Reason: fmt.Sprintf("at most %d heights per request, got %d", maxHeightsPerRequest, len(req.Heights))}
	}
	for _, h := range req.Heights {
		if h < 0 {
			return &ValidationError{Reason: fmt.Sprintf("height %d is negative", h)}
		}
	}
	if req.UFVK == "" {
		return &ValidationError{Reason: "viewing key must not be empty"}
	}
	if !strings.HasPrefix(req.UFVK, testnetKeyPrefix) && !strings.HasPrefix(req.UFVK, mainnetKeyPrefix) {
		return &ValidationError{Reason: fmt.Sprintf("viewing key must start with %q or %q", mainnetKeyPrefix, testnetKeyPrefix)}
	}
	return nil
}

// Scan validates and executes a request. Heights are processed strictly in
// the order given, one at a time. A block whose fetch or decryption fails
// is recorded in Result.Errors and skipped.
func (o *Orchestrator) Scan(ctx context.Context, req Request) (*Result, error) {
	if err := Validate(req); err != nil {
		observability.RecordScan("rejected", 0)
		return nil, err
	}

	started := time.Now()
	res := &Result{
		BlocksScanned: len(req.Heights),
		Transactions:  []*decrypt.Transaction{},
	}

	for _, height := range req.Heights {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txs, err := o.scanHeight(ctx, height, req.UFVK)
		if err != nil {
			o.logg.Warn("block scan failed", "height", height, "error", err)
			res.Errors = append(res.Errors, fmt.Sprintf("height %d: %v", height, err))
			continue
		}
		res.Transactions = append(res.Transactions, txs...)
		observability.RecordBlockScanned()
	}

	res.TransactionsFound = len(res.Transactions)

	status := "ok"
	if len(res.Errors) > 0 {
		status = "partial"
	}
	observability.RecordScan(status, time.Since(started).Seconds())
	o.logg.Info("scan complete",
		"heights", len(req.Heights),
		"found", res.TransactionsFound,
		"failed_blocks", len(res.Errors),
		"took", time.Since(started),
	)
	return res, nil
}

// scanHeight fetches one block's transactions and tries each against the
// viewing key. The returned slice preserves block order.
func (o *Orchestrator) scanHeight(ctx context.Context, height int64, ufvk string) ([]*decrypt.Transaction, error) {
	raw, err := o.source.GetBlockTransactions(ctx, height)
	if err != nil {
		return nil, err
	}

	reqs := make([]decrypt.Request, 0, len(raw))
	for _, tx := range raw {
		reqs = append(reqs, decrypt.Request{
			TxID:   tx.TxID,
			UFVK:   ufvk,
			RawHex: tx.Hex,
			Height: height,
		})
	}
	return o.decrypter.DecryptMany(ctx, reqs)
}
