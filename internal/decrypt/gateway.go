package decrypt

import (
	"context"
	"log/slog"

	"zcash-view-scanner/internal/observability"
)

type (
	// GatewayOpts contains configuration options for creating a new Gateway.
	GatewayOpts struct {
		Capability Capability   // decryption capability
		Logg       *slog.Logger // structured logger
	}

	// Gateway adapts the raw Capability to the scanner's needs: a failed
	// or empty decryption is a miss, never an error, so one opaque
	// transaction cannot abort a scan.
	Gateway struct {
		capability Capability
		logg       *slog.Logger
	}
)

// NewGateway creates a new Gateway.
func NewGateway(o GatewayOpts) *Gateway {
	return &Gateway{
		capability: o.Capability,
		logg:       o.Logg,
	}
}

// DecryptOne tries a single transaction against the viewing key. It returns
// (tx, true) only when the capability produced a transaction with at least
// one decrypted output. Capability failures and empty results both return
// (nil, false); the failure is logged without the key material.
func (g *Gateway) DecryptOne(ctx context.Context, req Request) (*Transaction, bool) {
	tx, err := g.capability.Decrypt(ctx, req)
	if err != nil {
		g.logg.Debug("decryption attempt failed", "txid", req.TxID, "height", req.Height, "error", err)
		return nil, false
	}
	if tx == nil || len(tx.Outputs) == 0 {
		return nil, false
	}
	return tx, true
}

// DecryptMany tries each transaction in order and collects the ones that
// decrypted. Requests are processed sequentially: the capability may not be
// safe for concurrent use, and scan throughput is bounded by the network
// anyway.
func (g *Gateway) DecryptMany(ctx context.Context, reqs []Request) ([]*Transaction, error) {
	var found []*Transaction
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if tx, ok := g.DecryptOne(ctx, req); ok {
			found = append(found, tx)
		}
	}
	observability.RecordTransactionsDecrypted(len(found))
	return found, nil
}
