package metrics

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weekly-planner/internal/database/dbtest"
)

func TestStoreDailyUsage(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t))

	now := time.Now().UTC()
	require.NoError(t, store.Record(ctx, ExecutionMetric{Operation: "shopping.move", LatencyMS: 10, Timestamp: now}))
	require.NoError(t, store.Record(ctx, ExecutionMetric{Operation: "shopping.move", Outcome: "not_found", LatencyMS: 30, Timestamp: now}))
	require.NoError(t, store.RecordOperation(ctx, "planner.randomize", OutcomeOK, 20*time.Millisecond))
	require.NoError(t, store.Record(ctx, ExecutionMetric{Operation: "shopping.append", LatencyMS: 5, Timestamp: now.AddDate(0, 0, -40)}))

	usage, err := store.GetDailyUsage(ctx, 7)
	require.NoError(t, err)
	require.NotEmpty(t, usage)

	var ops, failures int
	for _, u := range usage {
		ops += u.Operations
		failures += u.Failures
	}
	assert.Equal(t, 3, ops)
	assert.Equal(t, 1, failures)
	assert.Equal(t, now.Format(time.DateOnly), usage[0].Date)
}

func TestStoreCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewStore(dbtest.New(t))

	old := time.Now().AddDate(0, 0, -45)
	require.NoError(t, store.Record(ctx, ExecutionMetric{Operation: "shopping.move", LatencyMS: 1, Timestamp: old}))
	require.NoError(t, store.Record(ctx, ExecutionMetric{Operation: "shopping.move", LatencyMS: 1, Timestamp: old}))
	require.NoError(t, store.Record(ctx, ExecutionMetric{Operation: "shopping.move", LatencyMS: 1}))

	removed, err := store.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	usage, err := store.GetDailyUsage(ctx, 90)
	require.NoError(t, err)
	require.Len(t, usage, 1)
	assert.Equal(t, 1, usage[0].Operations)
}

func TestGetSysHealth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "planner.db"), make([]byte, 2048), 0o644))

	h := GetSysHealth(dir, sql.DBStats{OpenConnections: 3, InUse: 1, Idle: 2})
	assert.Equal(t, "2.0 KB", h.DataDiskSize)
	assert.Equal(t, 3, h.OpenConns)
	assert.Equal(t, 1, h.InUseConns)
	assert.Positive(t, h.Goroutines)

	assert.Equal(t, "n/a", GetSysHealth("", sql.DBStats{}).DataDiskSize)
	assert.Equal(t, "n/a", GetSysHealth(filepath.Join(dir, "missing"), sql.DBStats{}).DataDiskSize)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.5 MB", formatBytes(1536*1024))
}
