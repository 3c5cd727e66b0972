package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

var grantColumns = []string{
	"id", "uuid", "resource_type", "resource_id", "target_tenant_id", "share_type", "status",
	"expire_time", "remark", "created_id", "updated_id", "created_at", "updated_at",
}

const grantTable = "data_shares"

// Store handles share grant database operations.
type Store struct{}

// NewStore creates a new share grant store.
func NewStore() *Store {
	return &Store{}
}

func scanGrant(row pgx.Row) (Grant, error) {
	var g Grant
	var id uuid.UUID
	var shareType int16
	var status string
	var remark *string
	err := row.Scan(&g.ID, &id, &g.ResourceType, &g.ResourceID, &g.TargetTenantID, &shareType, &status,
		&g.ExpireTime, &remark, &g.CreatedID, &g.UpdatedID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return Grant{}, err
	}
	g.UUID = id.String()
	g.ShareType = ShareType(shareType)
	g.Status = Status(status)
	if remark != nil {
		g.Remark = *remark
	}
	return g, nil
}

func (s *Store) query(ctx context.Context, q database.Querier, sel *sql.Selector) ([]Grant, error) {
	query, args := sel.Query()
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing share grants: %w", err)
	}
	grants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Grant, error) {
		return scanGrant(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scanning share grant: %w", err)
	}
	return grants, nil
}

func selectGrants() *sql.Selector {
	return sql.Dialect(dialect.Postgres).Select(grantColumns...).From(sql.Table(grantTable))
}

// Create inserts g and returns the stored grant.
func (s *Store) Create(ctx context.Context, q database.Querier, g Grant) (*Grant, error) {
	var remark any
	if g.Remark != "" {
		remark = g.Remark
	}
	query, args := sql.Dialect(dialect.Postgres).
		Insert(grantTable).
		Columns("uuid", "resource_type", "resource_id", "target_tenant_id", "share_type", "status",
			"expire_time", "remark", "created_id", "updated_id").
		Values(g.UUID, g.ResourceType, g.ResourceID, g.TargetTenantID, int16(g.ShareType), string(g.Status),
			g.ExpireTime, remark, g.CreatedID, g.UpdatedID).
		Returning(grantColumns...).
		Query()

	created, err := scanGrant(q.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("creating share grant: %w", err)
	}
	return &created, nil
}

// GetByID retrieves a grant by ID.
func (s *Store) GetByID(ctx context.Context, q database.Querier, id int64) (*Grant, error) {
	query, args := selectGrants().Where(sql.EQ("id", id)).Query()
	g, err := scanGrant(q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGrantNotFound
		}
		return nil, fmt.Errorf("getting share grant: %w", err)
	}
	return &g, nil
}

// Revoke marks an active grant revoked. It reports false when the grant
// was already revoked.
func (s *Store) Revoke(ctx context.Context, q database.Querier, id int64, actorID *int64) (bool, error) {
	tag, err := q.Exec(ctx,
		`UPDATE data_shares SET status = $2, updated_id = $3, updated_at = now()
		 WHERE id = $1 AND status = $4`,
		id, string(StatusRevoked), actorID, string(StatusActive),
	)
	if err != nil {
		return false, fmt.Errorf("revoking share grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	ResourceType   string
	ResourceID     int64
	TargetTenantID int64
	ShareType      ShareType
	Status         Status
	Limit          int
	Offset         int
}

// List returns grants matching f, newest first.
func (s *Store) List(ctx context.Context, q database.Querier, f ListFilter) ([]Grant, error) {
	var preds []*sql.Predicate
	if f.ResourceType != "" {
		preds = append(preds, sql.EQ("resource_type", f.ResourceType))
	}
	if f.ResourceID != 0 {
		preds = append(preds, sql.EQ("resource_id", f.ResourceID))
	}
	if f.TargetTenantID != 0 {
		preds = append(preds, sql.EQ("target_tenant_id", f.TargetTenantID))
	}
	if f.ShareType != 0 {
		preds = append(preds, sql.EQ("share_type", int16(f.ShareType)))
	}
	if f.Status != "" {
		preds = append(preds, sql.EQ("status", string(f.Status)))
	}

	sel := selectGrants().OrderBy(sql.Desc("created_at"), sql.Desc("id"))
	if len(preds) > 0 {
		sel.Where(sql.And(preds...))
	}
	if f.Limit > 0 {
		sel.Limit(f.Limit)
	}
	if f.Offset > 0 {
		sel.Offset(f.Offset)
	}
	return s.query(ctx, q, sel)
}

// ListEffective returns active grants of tag to tenantID with one of
// types that have not expired at now.
func (s *Store) ListEffective(ctx context.Context, q database.Querier, tag string, tenantID int64, types []ShareType, now time.Time) ([]Grant, error) {
	if len(types) == 0 {
		return nil, nil
	}
	sel := selectGrants().Where(sql.And(
		sql.EQ("resource_type", tag),
		sql.EQ("target_tenant_id", tenantID),
		sql.EQ("status", string(StatusActive)),
		sql.In("share_type", lo.Map(types, func(t ShareType, _ int) any { return int16(t) })...),
		sql.Or(sql.IsNull("expire_time"), sql.GT("expire_time", now)),
	)).OrderBy("id")
	return s.query(ctx, q, sel)
}
