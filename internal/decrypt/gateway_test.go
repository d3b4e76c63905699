package decrypt

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCapability struct {
	results map[string]*Transaction
	errs    map[string]error
	calls   []string
}

func (f *fakeCapability) Decrypt(_ context.Context, req Request) (*Transaction, error) {
	f.calls = append(f.calls, req.TxID)
	if err, ok := f.errs[req.TxID]; ok {
		return nil, err
	}
	return f.results[req.TxID], nil
}

func matched(txid string, outputs int) *Transaction {
	tx := &Transaction{TransactionID: txid}
	for i := 0; i < outputs; i++ {
		tx.Outputs = append(tx.Outputs, Output{
			Protocol:     "Orchard",
			AmountZats:   100_000,
			Index:        i,
			TransferType: "Incoming",
			Direction:    "received",
		})
	}
	return tx
}

func newTestGateway(cap Capability) *Gateway {
	return NewGateway(GatewayOpts{
		Capability: cap,
		Logg:       slog.Default(),
	})
}

func TestGateway_DecryptOne_Match(t *testing.T) {
	cap := &fakeCapability{results: map[string]*Transaction{"aa": matched("aa", 2)}}
	g := newTestGateway(cap)

	tx, ok := g.DecryptOne(context.Background(), Request{TxID: "aa"})
	require.True(t, ok)
	assert.Equal(t, "aa", tx.TransactionID)
	assert.Len(t, tx.Outputs, 2)
}

func TestGateway_DecryptOne_CapabilityErrorIsMiss(t *testing.T) {
	cap := &fakeCapability{errs: map[string]error{"aa": errors.New("no outputs decrypted")}}
	g := newTestGateway(cap)

	tx, ok := g.DecryptOne(context.Background(), Request{TxID: "aa"})
	assert.False(t, ok)
	assert.Nil(t, tx)
}

func TestGateway_DecryptOne_ZeroOutputsIsMiss(t *testing.T) {
	cap := &fakeCapability{results: map[string]*Transaction{"aa": matched("aa", 0)}}
	g := newTestGateway(cap)

	_, ok := g.DecryptOne(context.Background(), Request{TxID: "aa"})
	assert.False(t, ok)
}

func TestGateway_DecryptOne_NilResultIsMiss(t *testing.T) {
	cap := &fakeCapability{}
	g := newTestGateway(cap)

	_, ok := g.DecryptOne(context.Background(), Request{TxID: "aa"})
	assert.False(t, ok)
}

func TestGateway_DecryptMany_SkipsMisses(t *testing.T) {
	cap := &fakeCapability{
		results: map[string]*Transaction{
			"aa": matched("aa", 1),
			"cc": matched("cc", 1),
		},
		errs: map[string]error{"bb": errors.New("boom")},
	}
	g := newTestGateway(cap)

	txs, err := g.DecryptMany(context.Background(), []Request{
		{TxID: "aa"}, {TxID: "bb"}, {TxID: "cc"}, {TxID: "dd"},
	})
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, "aa", txs[0].TransactionID)
	assert.Equal(t, "cc", txs[1].TransactionID)
	assert.Equal(t, []string{"aa", "bb", "cc", "dd"}, cap.calls, "requests processed in order")
}

func TestGateway_DecryptMany_ContextCancelled(t *testing.T) {
	cap := &fakeCapability{results: map[string]*Transaction{"aa": matched("aa", 1)}}
	g := newTestGateway(cap)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.DecryptMany(ctx, []Request{{TxID: "aa"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, cap.calls, "no capability calls after cancellation")
}
