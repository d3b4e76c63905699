package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"zcash-view-scanner/internal/zcash"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	c, err := New(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return c
}

func TestCache_InitIdempotent(t *testing.T) {
	c := newTestCache(t)

	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("second Init: %v", err)
	}
}

func TestCache_BlockHashRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.GetBlockHash(ctx, 2500000)
	if err != nil {
		t.Fatalf("GetBlockHash: %v", err)
	}
	if ok {
		t.Error("expected miss on empty cache")
	}

	if err := c.SetBlockHash(ctx, 2500000, "hash2500000"); err != nil {
		t.Fatalf("SetBlockHash: %v", err)
	}

	// Idempotent upsert.
	if err := c.SetBlockHash(ctx, 2500000, "hash2500000"); err != nil {
		t.Fatalf("re-SetBlockHash: %v", err)
	}

	hash, ok, err := c.GetBlockHash(ctx, 2500000)
	if err != nil {
		t.Fatalf("GetBlockHash: %v", err)
	}
	if !ok || hash != "hash2500000" {
		t.Errorf("expected hash2500000, got %q ok=%v", hash, ok)
	}
}

func TestCache_BlockRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	block := &zcash.BlockRecord{
		Hash:   "hash1",
		Height: 2500000,
		Time:   1700000000,
		TxIDs:  []string{"tx1", "tx2", "tx3"},
	}

	if err := c.SetBlock(ctx, block.Hash, block); err != nil {
		t.Fatalf("SetBlock: %v", err)
	}

	got, ok, err := c.GetBlock(ctx, "hash1")
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Height != block.Height || got.Time != block.Time {
		t.Errorf("metadata mismatch: got %+v", got)
	}
	if len(got.TxIDs) != 3 || got.TxIDs[2] != "tx3" {
		t.Errorf("txid list mismatch: %v", got.TxIDs)
	}
}

func TestCache_RawTransactionRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	if err := c.SetRawTransaction(ctx, "tx1", "0500008085202f89"); err != nil {
		t.Fatalf("SetRawTransaction: %v", err)
	}

	hex, ok, err := c.GetRawTransaction(ctx, "tx1")
	if err != nil {
		t.Fatalf("GetRawTransaction: %v", err)
	}
	if !ok || hex != "0500008085202f89" {
		t.Errorf("expected payload hit, got %q ok=%v", hex, ok)
	}

	_, ok, err = c.GetRawTransaction(ctx, "other")
	if err != nil {
		t.Fatalf("GetRawTransaction miss: %v", err)
	}
	if ok {
		t.Error("expected miss for unknown txid")
	}
}

func TestCache_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.db")
	ctx := context.Background()

	c, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.SetBlockHash(ctx, 42, "hash42"); err != nil {
		t.Fatalf("SetBlockHash: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if err := reopened.Init(ctx); err != nil {
		t.Fatalf("reopen Init: %v", err)
	}

	hash, ok, err := reopened.GetBlockHash(ctx, 42)
	if err != nil {
		t.Fatalf("GetBlockHash after reopen: %v", err)
	}
	if !ok || hash != "hash42" {
		t.Errorf("expected hash42 after reopen, got %q ok=%v", hash, ok)
	}
}
