package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx (savepoints).
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// WithTx runs fn inside a single transaction. The transaction commits only
// when fn returns nil; any error, panic or context cancellation rolls back
// every statement fn issued.
//
// Hooks registered with AfterCommit during fn run once the commit has
// succeeded. When db is itself a transaction the commit only releases a
// savepoint, so the hooks are handed to the enclosing WithTx.
func WithTx(ctx context.Context, db TxBeginner, fn func(ctx context.Context, q Querier) error) error {
	parent, nested := ctx.Value(commitHooksKey{}).(*commitHooks)
	if _, savepoint := db.(pgx.Tx); !savepoint {
		nested = false
	}
	hooks := &commitHooks{}
	ctx = context.WithValue(ctx, commitHooksKey{}, hooks)

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		// Rollback after Commit is a no-op (pgx.ErrTxClosed). The request
		// context may already be canceled, so roll back on a fresh one.
		_ = tx.Rollback(context.Background())
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	fns := hooks.take()
	if nested {
		parent.add(fns...)
		return nil
	}
	for _, f := range fns {
		f()
	}
	return nil
}

type commitHooksKey struct{}

type commitHooks struct {
	mu  sync.Mutex
	fns []func()
}

func (h *commitHooks) add(fns ...func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fns...)
}

func (h *commitHooks) take() []func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	fns := h.fns
	h.fns = nil
	return fns
}

// AfterCommit defers fn until the transaction WithTx opened for ctx
// commits. fn is dropped if that transaction rolls back. Outside WithTx
// the write has already committed, so fn runs immediately.
func AfterCommit(ctx context.Context, fn func()) {
	if hooks, ok := ctx.Value(commitHooksKey{}).(*commitHooks); ok {
		hooks.add(fn)
		return
	}
	fn()
}

// Transactor binds WithTx to a fixed connection source.
type Transactor struct {
	db TxBeginner
}

// NewTransactor creates a Transactor over db.
func NewTransactor(db TxBeginner) *Transactor {
	return &Transactor{db: db}
}

// WithTx runs fn in a transaction on the bound connection source.
func (t *Transactor) WithTx(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	return WithTx(ctx, t.db, fn)
}
