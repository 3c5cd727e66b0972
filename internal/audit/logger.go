package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/valinor-ai/tenantscope/internal/platform/config"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/platform/telemetry"
)

// LoggerConfig configures the async audit logger.
type LoggerConfig struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// ConfigFrom converts the audit section of the application config.
func ConfigFrom(c config.AuditConfig, l *slog.Logger) LoggerConfig {
	return LoggerConfig{
		BufferSize:    c.BufferSize,
		BatchSize:     c.BatchSize,
		FlushInterval: time.Duration(c.FlushIntervalMs) * time.Millisecond,
		Logger:        l,
	}
}

// Stats counts events by outcome since the logger started.
type Stats struct {
	Written uint64
	Dropped uint64
	Failed  uint64
}

// AsyncLogger buffers events and writes them in batches from one
// background worker, so share and copy operations never wait on audit
// inserts.
type AsyncLogger struct {
	ch     chan Event
	store  *Store
	db     database.Querier
	cfg    LoggerConfig
	log    *slog.Logger
	wg     sync.WaitGroup
	cancel context.CancelFunc
	once   sync.Once

	// closeMu orders Log against Close so nothing is enqueued after the
	// final drain.
	closeMu sync.RWMutex
	closed  bool

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// NewAsyncLogger creates and starts an async audit logger.
func NewAsyncLogger(db database.Querier, store *Store, cfg LoggerConfig) *AsyncLogger {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	l := &AsyncLogger{
		ch:     make(chan Event, cfg.BufferSize),
		store:  store,
		db:     db,
		cfg:    cfg,
		log:    telemetry.Component(cfg.Logger, "audit"),
		cancel: cancel,
	}

	l.wg.Add(1)
	go l.run(ctx)

	return l
}

// Log enqueues event. It drops events without an action, events logged
// after Close, and anything that does not fit in the buffer rather than
// block.
func (l *AsyncLogger) Log(_ context.Context, event Event) {
	if event.Action == "" {
		l.dropped.Add(1)
		l.log.Warn("audit event without action dropped", "resource_type", event.ResourceType)
		return
	}

	l.closeMu.RLock()
	defer l.closeMu.RUnlock()
	if l.closed {
		n := l.dropped.Add(1)
		l.log.Warn("audit logger closed, dropping event", "action", event.Action, "dropped_total", n)
		return
	}

	select {
	case l.ch <- event:
	default:
		n := l.dropped.Add(1)
		l.log.Warn("audit buffer full, dropping event", "action", event.Action, "dropped_total", n)
	}
}

// Close stops the worker and writes whatever is still buffered. It is
// safe to call more than once.
func (l *AsyncLogger) Close() error {
	l.once.Do(func() {
		l.closeMu.Lock()
		l.closed = true
		l.closeMu.Unlock()

		l.cancel()
		l.wg.Wait()
		l.write(l.drain(nil))
	})
	return nil
}

// Stats returns a snapshot of the event counters.
func (l *AsyncLogger) Stats() Stats {
	return Stats{
		Written: l.written.Load(),
		Dropped: l.dropped.Load(),
		Failed:  l.failed.Load(),
	}
}

func (l *AsyncLogger) run(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]Event, 0, l.cfg.BatchSize)
	for {
		select {
		case <-ctx.Done():
			l.write(l.drain(batch))
			return
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= l.cfg.BatchSize {
				l.write(batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			l.write(batch)
			batch = batch[:0]
		}
	}
}

func (l *AsyncLogger) write(events []Event) {
	if len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := l.store.InsertBatch(ctx, l.db, events); err != nil {
		l.failed.Add(uint64(len(events)))
		l.log.Error("audit flush failed", "error", err, "count", len(events))
		return
	}
	l.written.Add(uint64(len(events)))
}

// drain appends every event still queued to batch.
func (l *AsyncLogger) drain(batch []Event) []Event {
	for {
		select {
		case e := <-l.ch:
			batch = append(batch, e)
		default:
			return batch
		}
	}
}
