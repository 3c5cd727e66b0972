package tenant

import (
	"context"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

const tenantColumns = `id, code, name, is_active, status, created_at, updated_at`

// Store handles tenant database operations.
type Store struct{}

// NewStore creates a new tenant store.
func NewStore() *Store {
	return &Store{}
}

// Create inserts a new active tenant with the given code and name.
func (s *Store) Create(ctx context.Context, q database.Querier, code, name string) (*Tenant, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}

	var t Tenant
	err := q.QueryRow(ctx,
		`INSERT INTO tenants (code, name) VALUES ($1, $2)
		 RETURNING `+tenantColumns,
		code, name,
	).Scan(&t.ID, &t.Code, &t.Name, &t.IsActive, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCodeTaken, code)
		}
		return nil, fmt.Errorf("creating tenant: %w", err)
	}
	return &t, nil
}

// GetByID retrieves a tenant by its identifier.
func (s *Store) GetByID(ctx context.Context, q database.Querier, id int64) (*Tenant, error) {
	var t Tenant
	err := q.QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM tenants WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Code, &t.Name, &t.IsActive, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("getting tenant: %w", err)
	}
	return &t, nil
}

// SetActive toggles the tenant's active flag.
func (s *Store) SetActive(ctx context.Context, q database.Querier, id int64, active bool) error {
	tag, err := q.Exec(ctx,
		`UPDATE tenants SET is_active = $2, updated_at = now() WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("updating tenant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

// ListActiveIDs returns the identifiers of every active, non-deleted tenant
// in ascending order.
func (s *Store) ListActiveIDs(ctx context.Context, q database.Querier) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT id FROM tenants WHERE is_active AND status <> $1 ORDER BY id`, StatusDisabled)
	if err != nil {
		return nil, fmt.Errorf("listing active tenants: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scanning tenant id: %w", err)
	}
	return ids, nil
}

// UpdateInput carries the tenant fields to change. Nil fields are left as is.
type UpdateInput struct {
	Code     *string
	Name     *string
	IsActive *bool
}

// Update applies in to tenant id. A new code must be valid and not used by
// any other tenant.
func (s *Store) Update(ctx context.Context, q database.Querier, id int64, in UpdateInput) (*Tenant, error) {
	current, err := s.GetByID(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if in.Code != nil && *in.Code != current.Code {
		if err := ValidateCode(*in.Code); err != nil {
			return nil, err
		}
		taken, err := s.CodeExists(ctx, q, *in.Code, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, fmt.Errorf("%w: %s", ErrCodeTaken, *in.Code)
		}
	}

	var t Tenant
	err = q.QueryRow(ctx,
		`UPDATE tenants SET
		    code = COALESCE($2, code),
		    name = COALESCE($3, name),
		    is_active = COALESCE($4, is_active),
		    updated_at = now()
		 WHERE id = $1
		 RETURNING `+tenantColumns,
		id, in.Code, in.Name, in.IsActive,
	).Scan(&t.ID, &t.Code, &t.Name, &t.IsActive, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCodeTaken, *in.Code)
		}
		return nil, fmt.Errorf("updating tenant: %w", err)
	}
	return &t, nil
}

// CodeExists reports whether a tenant other than excludeID uses code.
// Pass zero to check every tenant.
func (s *Store) CodeExists(ctx context.Context, q database.Querier, code string, excludeID int64) (bool, error) {
	var exists bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE code = $1 AND id <> $2)`,
		code, excludeID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking tenant code: %w", err)
	}
	return exists, nil
}

// Delete soft-deletes the given tenants by marking them disabled and
// returns how many changed. Unknown and already deleted ids are skipped.
// Nothing is deleted when any tenant still owns users, departments or
// roles.
func (s *Store) Delete(ctx context.Context, q database.Querier, ids ...int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	rows, err := q.Query(ctx,
		`SELECT t.id FROM tenants t
		 WHERE t.id = ANY($1) AND (
		    EXISTS (SELECT 1 FROM users u WHERE u.tenant_id = t.id)
		    OR EXISTS (SELECT 1 FROM departments d WHERE d.tenant_id = t.id)
		    OR EXISTS (SELECT 1 FROM roles r WHERE r.tenant_id = t.id))
		 ORDER BY t.id`,
		ids,
	)
	if err != nil {
		return 0, fmt.Errorf("checking tenant references: %w", err)
	}
	inUse, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return 0, fmt.Errorf("scanning tenant id: %w", err)
	}
	if len(inUse) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrTenantInUse, inUse)
	}

	tag, err := q.Exec(ctx,
		`UPDATE tenants SET status = $2, updated_at = now()
		 WHERE id = ANY($1) AND status <> $2`,
		ids, StatusDisabled,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting tenants: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListParams filters tenants. Name and Code match substrings; zero values
// match everything.
type ListParams struct {
	Name     string
	Code     string
	IsActive *bool
	Status   string
	Limit    int
	Offset   int
}

func buildListQuery(p ListParams) (string, []any) {
	var preds []*sql.Predicate
	if p.Name != "" {
		preds = append(preds, sql.Contains("name", p.Name))
	}
	if p.Code != "" {
		preds = append(preds, sql.Contains("code", p.Code))
	}
	if p.IsActive != nil {
		preds = append(preds, sql.EQ("is_active", *p.IsActive))
	}
	if p.Status != "" {
		preds = append(preds, sql.EQ("status", p.Status))
	}

	sel := sql.Dialect(dialect.Postgres).
		Select("id", "code", "name", "is_active", "status", "created_at", "updated_at").
		From(sql.Table("tenants")).
		OrderBy(sql.Desc("created_at"), sql.Desc("id"))
	if len(preds) > 0 {
		sel.Where(sql.And(preds...))
	}
	if p.Limit > 0 {
		sel.Limit(p.Limit)
	}
	if p.Offset > 0 {
		sel.Offset(p.Offset)
	}
	return sel.Query()
}

// List returns matching tenants, newest first.
func (s *Store) List(ctx context.Context, q database.Querier, p ListParams) ([]Tenant, error) {
	query, args := buildListQuery(p)
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	tenants, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Tenant, error) {
		var t Tenant
		err := row.Scan(&t.ID, &t.Code, &t.Name, &t.IsActive, &t.Status, &t.CreatedAt, &t.UpdatedAt)
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning tenant: %w", err)
	}
	return tenants, nil
}
