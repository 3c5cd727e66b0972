package database

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
)

func TestQueryLogger(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	queryLogger(l).Log(context.Background(), tracelog.LogLevelInfo, "Query", map[string]any{"sql": "SELECT 1"})

	assert.Contains(t, buf.String(), "level=INFO")
	assert.Contains(t, buf.String(), `sql="SELECT 1"`)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, slogLevel(tracelog.LogLevelError))
	assert.Equal(t, slog.LevelWarn, slogLevel(tracelog.LogLevelWarn))
	assert.Equal(t, slog.LevelInfo, slogLevel(tracelog.LogLevelInfo))
	assert.Equal(t, slog.LevelDebug, slogLevel(tracelog.LogLevelTrace))
}
