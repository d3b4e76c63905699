package failover

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"zcash-view-scanner/internal/zcash"
)

// fakeProvider is a scripted Provider whose operations all share one
// error switch and a call counter.
type fakeProvider struct {
	name string

	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeProvider) do() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeProvider) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) GetBlockHash(context.Context, int64) (string, error) {
	if err := f.do(); err != nil {
		return "", err
	}
	return "hash-from-" + f.name, nil
}

func (f *fakeProvider) GetBlock(context.Context, string) (*zcash.BlockRecord, error) {
	if err := f.do(); err != nil {
		return nil, err
	}
	return &zcash.BlockRecord{Hash: "h"}, nil
}

func (f *fakeProvider) GetRawTransaction(context.Context, string) (string, error) {
	if err := f.do(); err != nil {
		return "", err
	}
	return "hex", nil
}

func (f *fakeProvider) GetBlockTransactions(context.Context, int64) ([]zcash.RawTransaction, error) {
	if err := f.do(); err != nil {
		return nil, err
	}
	return []zcash.RawTransaction{{TxID: "tx1", Hex: "hex1"}}, nil
}

func (f *fakeProvider) GetBlockCount(context.Context) (int64, error) {
	if err := f.do(); err != nil {
		return 0, err
	}
	return 2500000, nil
}

func newTestRouter(t *testing.T, providers ...Provider) *Router {
	t.Helper()

	r, err := New(Opts{
		Providers:  providers,
		Logg:       slog.Default(),
		RetryDelay: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

func TestNew_NoProviders(t *testing.T) {
	_, err := New(Opts{Logg: slog.Default()})
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
}

func TestRouter_FailoverIsSticky(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("down")}
	b := &fakeProvider{name: "b"}

	r := newTestRouter(t, a, b)
	ctx := context.Background()

	hash, err := r.GetBlockHash(ctx, 100)
	if err != nil {
		t.Fatalf("GetBlockHash: %v", err)
	}
	if hash != "hash-from-b" {
		t.Errorf("expected result from b, got %q", hash)
	}
	if a.callCount() != 1 || b.callCount() != 1 {
		t.Errorf("expected one call each, got a=%d b=%d", a.callCount(), b.callCount())
	}

	// The next call must start at b: a is not consulted again.
	if _, err := r.GetBlockHash(ctx, 101); err != nil {
		t.Fatalf("second GetBlockHash: %v", err)
	}
	if a.callCount() != 1 {
		t.Errorf("expected sticky start at b, but a was called %d times", a.callCount())
	}
	if b.callCount() != 2 {
		t.Errorf("expected b to serve second call, got %d calls", b.callCount())
	}
}

func TestRouter_AllProvidersFail(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("a down")}
	b := &fakeProvider{name: "b", err: errors.New("b down")}
	c := &fakeProvider{name: "c", err: errors.New("c down")}

	r := newTestRouter(t, a, b, c)

	_, err := r.GetBlockCount(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}

	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("expected *AggregateError, got %T: %v", err, err)
	}
	if agg.Providers != 3 {
		t.Errorf("expected 3 providers reported, got %d", agg.Providers)
	}
	if agg.Last == nil || agg.Last.Error() != "c down" {
		t.Errorf("expected last cause from c, got %v", agg.Last)
	}

	// Each provider tried exactly once.
	for _, p := range []*fakeProvider{a, b, c} {
		if p.callCount() != 1 {
			t.Errorf("provider %s tried %d times, want 1", p.name, p.callCount())
		}
	}
}

func TestRouter_CurrentIndexNeverMovesOnFailure(t *testing.T) {
	a := &fakeProvider{name: "a", err: errors.New("a down")}
	b := &fakeProvider{name: "b", err: errors.New("b down")}

	r := newTestRouter(t, a, b)
	ctx := context.Background()

	if _, err := r.GetBlockHash(ctx, 100); err == nil {
		t.Fatal("expected failure")
	}
	if got := r.currentIndex(); got != 0 {
		t.Errorf("current index moved on failure: %d", got)
	}

	// Provider a recovers; the next call must start at a again.
	a.setErr(nil)
	hash, err := r.GetBlockHash(ctx, 100)
	if err != nil {
		t.Fatalf("GetBlockHash after recovery: %v", err)
	}
	if hash != "hash-from-a" {
		t.Errorf("expected recovered a to serve, got %q", hash)
	}
}

func TestRouter_ProtocolErrorStillFailsOver(t *testing.T) {
	// A protocol-level rejection on one provider may still succeed on
	// another whose dataset differs, so rotation continues.
	a := &fakeProvider{name: "a", err: &zcash.RPCError{Code: -8, Message: "pruned"}}
	b := &fakeProvider{name: "b"}

	r := newTestRouter(t, a, b)

	txs, err := r.GetBlockTransactions(context.Background(), 100)
	if err != nil {
		t.Fatalf("GetBlockTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Errorf("expected result from b, got %v", txs)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"protocol", &zcash.RPCError{Code: -8}, "protocol"},
		{"rate limit", &zcash.HTTPError{StatusCode: 429}, "rate_limit"},
		{"server error", &zcash.HTTPError{StatusCode: 503}, "server_error"},
		{"other http", &zcash.HTTPError{StatusCode: 404}, "other"},
		{"plain", errors.New("boom"), "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
