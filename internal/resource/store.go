package resource

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

var ErrRecordNotFound = errors.New("record not found")

// Store reads and writes records of any registered model.
type Store struct{}

// NewStore creates a new record store.
func NewStore() *Store {
	return &Store{}
}

func (s *Store) selectFrom(m *Model) *sql.Selector {
	t := sql.Table(m.Table())
	return sql.Dialect(dialect.Postgres).
		Select(lo.Map(m.Columns(), func(c string, _ int) string { return t.C(c) })...).
		From(t)
}

// FindByID loads a single record.
func (s *Store) FindByID(ctx context.Context, q database.Querier, m *Model, id int64) (Record, error) {
	query, args := s.selectFrom(m).Where(sql.EQ(m.PrimaryKey(), id)).Query()
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", m.Tag(), err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToMap)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s %d", ErrRecordNotFound, m.Tag(), id)
		}
		return nil, fmt.Errorf("scanning %s: %w", m.Tag(), err)
	}
	return rec, nil
}

// FindByIDs loads every record whose primary key is in ids, ordered by
// primary key. Missing ids are silently absent from the result.
func (s *Store) FindByIDs(ctx context.Context, q database.Querier, m *Model, ids []int64) ([]Record, error) {
	ids = lo.Uniq(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	query, args := s.selectFrom(m).
		Where(sql.In(m.PrimaryKey(), lo.ToAnySlice(ids)...)).
		OrderBy(m.PrimaryKey()).
		Query()
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", m.Tag(), err)
	}
	found, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", m.Tag(), err)
	}
	return lo.Map(found, func(r map[string]any, _ int) Record { return r }), nil
}

// Insert writes rec and returns the primary key assigned by the database.
// Columns absent from rec take their column defaults. Keys that are not
// columns of m are rejected.
func (s *Store) Insert(ctx context.Context, q database.Querier, m *Model, rec Record) (int64, error) {
	var cols []string
	var vals []any
	for _, col := range m.Columns() {
		if v, ok := rec[col]; ok {
			cols = append(cols, col)
			vals = append(vals, v)
		}
	}
	if unknown := lo.Without(rec.Columns(), m.Columns()...); len(unknown) > 0 {
		return 0, fmt.Errorf("inserting %s: unknown columns %v", m.Tag(), unknown)
	}

	b := sql.Dialect(dialect.Postgres).Insert(m.Table()).Returning(m.PrimaryKey())
	if len(cols) == 0 {
		b = b.Default()
	} else {
		b = b.Columns(cols...).Values(vals...)
	}
	query, args := b.Query()

	var id int64
	if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("inserting %s: %w", m.Tag(), err)
	}
	return id, nil
}
