package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"zcash-view-scanner/internal/zcash"
)

// setupTestCache creates a ClickHouse container and an initialized cache.
func setupTestCache(t *testing.T) *Cache {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()))
	require.NoError(t, err)

	cache := New(conn)
	require.NoError(t, cache.Init(ctx), "failed to init cache schema")

	t.Cleanup(func() {
		cache.Close()
		_ = container.Terminate(ctx)
	})

	return cache
}

func TestCache_InitIdempotent(t *testing.T) {
	cache := setupTestCache(t)

	require.NoError(t, cache.Init(context.Background()))
}

func TestCache_BlockHashRoundTrip(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	_, ok, err := cache.GetBlockHash(ctx, 2500000)
	require.NoError(t, err)
	require.False(t, ok, "expected miss on empty cache")

	require.NoError(t, cache.SetBlockHash(ctx, 2500000, "hash2500000"))

	// ReplacingMergeTree collapses duplicate keys; re-writing the same
	// value must be observably a no-op.
	require.NoError(t, cache.SetBlockHash(ctx, 2500000, "hash2500000"))

	hash, ok, err := cache.GetBlockHash(ctx, 2500000)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hash2500000", hash)
}

func TestCache_BlockRoundTrip(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	block := &zcash.BlockRecord{
		Hash:   "hash1",
		Height: 2500000,
		Time:   1700000000,
		TxIDs:  []string{"tx1", "tx2"},
	}

	require.NoError(t, cache.SetBlock(ctx, block.Hash, block))

	got, ok, err := cache.GetBlock(ctx, "hash1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, block.Height, got.Height)
	require.Equal(t, block.TxIDs, got.TxIDs)
}

func TestCache_RawTransactionRoundTrip(t *testing.T) {
	cache := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, cache.SetRawTransaction(ctx, "tx1", "0500008085202f89"))

	hex, ok, err := cache.GetRawTransaction(ctx, "tx1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "0500008085202f89", hex)

	_, ok, err = cache.GetRawTransaction(ctx, "tx2")
	require.NoError(t, err)
	require.False(t, ok)
}
