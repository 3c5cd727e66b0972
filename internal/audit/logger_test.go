package audit

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tenantscope/internal/platform/config"
)

// mockDB implements database.Querier and records every Exec.
type mockDB struct {
	mu    sync.Mutex
	count int
	rows  int
}

func (m *mockDB) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count++
	m.rows += len(args) / len(eventColumns)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (m *mockDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, nil
}

func (m *mockDB) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	return nil
}

func (m *mockDB) stats() (execs, rows int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count, m.rows
}

func tenantPtr(id int64) *int64 { return &id }

func TestAsyncLogger_FlushesOnInterval(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{
		BufferSize:    100,
		BatchSize:     10,
		FlushInterval: 50 * time.Millisecond,
	})

	logger.Log(context.Background(), Event{TenantID: tenantPtr(1), Action: ActionShareCreated, Source: SourceCLI})

	assert.Eventually(t, func() bool {
		execs, _ := db.stats()
		return execs >= 1
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, logger.Close())
}

func TestAsyncLogger_FlushesOnBatchSize(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{
		BufferSize:    100,
		BatchSize:     3,
		FlushInterval: 10 * time.Second,
	})

	for range 3 {
		logger.Log(context.Background(), Event{TenantID: tenantPtr(1), Action: ActionDataCopied})
	}

	assert.Eventually(t, func() bool {
		_, rows := db.stats()
		return rows == 3
	}, time.Second, 10*time.Millisecond)
	require.NoError(t, logger.Close())
}

func TestAsyncLogger_CloseFlushesPending(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{
		BufferSize:    100,
		BatchSize:     100,
		FlushInterval: 10 * time.Second,
	})

	logger.Log(context.Background(), Event{Action: ActionShareRevoked})
	logger.Log(context.Background(), Event{Action: ActionShareRevoked})
	require.NoError(t, logger.Close())

	_, rows := db.stats()
	assert.Equal(t, 2, rows)
}

// blockingDB holds every Exec until release is closed.
type blockingDB struct {
	mockDB
	release chan struct{}
}

func (b *blockingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	<-b.release
	return b.mockDB.Exec(ctx, sql, args...)
}

func TestAsyncLogger_DropsWhenBufferFull(t *testing.T) {
	var buf bytes.Buffer
	db := &blockingDB{release: make(chan struct{})}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{
		BufferSize:    2,
		BatchSize:     1,
		FlushInterval: 10 * time.Second,
		Logger:        slog.New(slog.NewTextHandler(&buf, nil)),
	})

	// at most one event is held by the blocked worker and two by the buffer
	for range 10 {
		logger.Log(context.Background(), Event{Action: ActionShareCreated})
	}
	close(db.release)
	require.NoError(t, logger.Close())

	stats := logger.Stats()
	assert.GreaterOrEqual(t, stats.Dropped, uint64(7))
	assert.Equal(t, uint64(10), stats.Written+stats.Dropped)
	_, rows := db.stats()
	assert.Equal(t, int(stats.Written), rows)
	assert.Contains(t, buf.String(), "audit buffer full")
}

func TestAsyncLogger_RejectsEventWithoutAction(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{})

	logger.Log(context.Background(), Event{ResourceType: "roles"})
	require.NoError(t, logger.Close())

	assert.Equal(t, Stats{Dropped: 1}, logger.Stats())
	execs, _ := db.stats()
	assert.Zero(t, execs)
}

func TestAsyncLogger_CloseIsIdempotent(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{FlushInterval: time.Hour})

	logger.Log(context.Background(), Event{Action: ActionDataCopied})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())

	assert.Equal(t, uint64(1), logger.Stats().Written)
}

func TestAsyncLogger_LogAfterCloseCountsDropped(t *testing.T) {
	db := &mockDB{}
	logger := NewAsyncLogger(db, NewStore(), LoggerConfig{FlushInterval: time.Hour})

	logger.Log(context.Background(), Event{Action: ActionShareCreated})
	require.NoError(t, logger.Close())
	logger.Log(context.Background(), Event{Action: ActionShareRevoked})

	assert.Equal(t, Stats{Written: 1, Dropped: 1}, logger.Stats())
	execs, rows := db.stats()
	assert.Equal(t, 1, execs)
	assert.Equal(t, 1, rows)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.AuditConfig{BufferSize: 8, BatchSize: 4, FlushIntervalMs: 250}, nil)
	assert.Equal(t, 8, cfg.BufferSize)
	assert.Equal(t, 4, cfg.BatchSize)
	assert.Equal(t, 250*time.Millisecond, cfg.FlushInterval)
}
