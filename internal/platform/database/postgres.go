package database

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
)

// Pool is the pgx pool every store runs against.
type Pool = pgxpool.Pool

type connectOptions struct {
	queryLog *slog.Logger
}

// ConnectOption configures Connect.
type ConnectOption func(*connectOptions)

// WithQueryLog records every statement and its arguments on l at debug
// level. Rendered data-scope predicates show up here.
func WithQueryLog(l *slog.Logger) ConnectOption {
	return func(o *connectOptions) { o.queryLog = l }
}

// Connect opens a pool against databaseURL capped at maxConns connections
// and pings it.
func Connect(ctx context.Context, databaseURL string, maxConns int, opts ...ConnectOption) (*Pool, error) {
	var o connectOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}
	if maxConns > 0 && maxConns <= math.MaxInt32 {
		cfg.MaxConns = int32(maxConns) // #nosec G115 -- bounds checked above
	}
	if o.queryLog != nil {
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger(o.queryLog),
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// queryLogger adapts pgx trace output to slog.
func queryLogger(l *slog.Logger) tracelog.Logger {
	return tracelog.LoggerFunc(func(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
		attrs := make([]slog.Attr, 0, len(data))
		for k, v := range data {
			attrs = append(attrs, slog.Any(k, v))
		}
		l.LogAttrs(ctx, slogLevel(level), msg, attrs...)
	})
}

func slogLevel(level tracelog.LogLevel) slog.Level {
	switch level {
	case tracelog.LogLevelError:
		return slog.LevelError
	case tracelog.LogLevelWarn:
		return slog.LevelWarn
	case tracelog.LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
