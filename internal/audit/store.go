package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

var eventColumns = []string{"tenant_id", "user_id", "action", "resource_type", "resource_id", "metadata", "source"}

// Store handles audit event persistence.
type Store struct{}

// NewStore creates an audit Store.
func NewStore() *Store {
	return &Store{}
}

// InsertBatch writes a batch of events to the database.
func (s *Store) InsertBatch(ctx context.Context, db database.Querier, events []Event) error {
	if len(events) == 0 {
		return nil
	}
	query, args, err := buildBatchInsert(events)
	if err != nil {
		return fmt.Errorf("building batch insert: %w", err)
	}
	if _, err := db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting audit events: %w", err)
	}
	return nil
}

func buildBatchInsert(events []Event) (string, []any, error) {
	b := sql.Dialect(dialect.Postgres).Insert("audit_events").Columns(eventColumns...)
	for _, e := range events {
		var meta []byte
		if e.Metadata != nil {
			var err error
			if meta, err = json.Marshal(e.Metadata); err != nil {
				return "", nil, fmt.Errorf("marshaling metadata: %w", err)
			}
		}
		source := e.Source
		if source == "" {
			source = SourceSystem
		}
		b.Values(e.TenantID, e.UserID, e.Action, nullString(e.ResourceType), e.ResourceID, meta, source)
	}
	query, args := b.Query()
	return query, args, nil
}

// nullString binds an empty string as a NULL parameter. The nil is typed so
// the builder emits a placeholder instead of inlining NULL.
func nullString(s string) any {
	if s == "" {
		return (*string)(nil)
	}
	return s
}

// ListParams filters audit events. Zero values match everything.
type ListParams struct {
	TenantID     *int64
	Action       string
	ResourceType string
	Limit        int
}

func buildListQuery(p ListParams) (string, []any) {
	var preds []*sql.Predicate
	if p.TenantID != nil {
		preds = append(preds, sql.EQ("tenant_id", *p.TenantID))
	}
	if p.Action != "" {
		preds = append(preds, sql.EQ("action", p.Action))
	}
	if p.ResourceType != "" {
		preds = append(preds, sql.EQ("resource_type", p.ResourceType))
	}
	limit := p.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	sel := sql.Dialect(dialect.Postgres).
		Select("id", "tenant_id", "user_id", "action", "resource_type", "resource_id", "metadata", "source", "created_at").
		From(sql.Table("audit_events")).
		OrderBy(sql.Desc("created_at"), sql.Desc("id")).
		Limit(limit)
	if len(preds) > 0 {
		sel.Where(sql.And(preds...))
	}
	return sel.Query()
}

// List returns matching events, newest first.
func (s *Store) List(ctx context.Context, db database.Querier, p ListParams) ([]Event, error) {
	query, args := buildListQuery(p)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit events: %w", err)
	}
	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Event, error) {
		var e Event
		var meta []byte
		var resourceType *string
		err := row.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &resourceType, &e.ResourceID, &meta, &e.Source, &e.CreatedAt)
		if resourceType != nil {
			e.ResourceType = *resourceType
		}
		if err == nil && len(meta) > 0 {
			err = json.Unmarshal(meta, &e.Metadata)
		}
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning audit event: %w", err)
	}
	return events, nil
}
