package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

const departmentColumns = `id, tenant_id, parent_id, name, created_at`

// DepartmentStore handles department database operations.
type DepartmentStore struct {
	onChange []func()
}

// DepartmentStoreOption configures a DepartmentStore.
type DepartmentStoreOption func(*DepartmentStore)

// WithChangeNotifier registers fn to be called once a department write is
// committed. Writes made inside database.WithTx notify after its commit
// and not at all on rollback. Used to invalidate cached hierarchy indexes.
func WithChangeNotifier(fn func()) DepartmentStoreOption {
	return func(s *DepartmentStore) {
		if fn != nil {
			s.onChange = append(s.onChange, fn)
		}
	}
}

// NewDepartmentStore creates a new department store.
func NewDepartmentStore(opts ...DepartmentStoreOption) *DepartmentStore {
	s := &DepartmentStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *DepartmentStore) notify() {
	for _, fn := range s.onChange {
		fn()
	}
}

// Create inserts a new department. If parentID is set it must reference an
// existing department of the same tenant.
func (s *DepartmentStore) Create(ctx context.Context, q database.Querier, tenantID *int64, name string, parentID *int64) (*Department, error) {
	if err := ValidateDepartmentName(name); err != nil {
		return nil, err
	}

	if parentID != nil {
		parent, err := s.GetByID(ctx, q, *parentID)
		if err != nil {
			return nil, fmt.Errorf("invalid parent department: %w", err)
		}
		if !parent.BelongsTo(tenantID) {
			return nil, fmt.Errorf("invalid parent department: %w", ErrDepartmentNotFound)
		}
	}

	var dept Department
	err := q.QueryRow(ctx,
		`INSERT INTO departments (tenant_id, name, parent_id)
		 VALUES ($1, $2, $3)
		 RETURNING `+departmentColumns,
		tenantID, name, parentID,
	).Scan(&dept.ID, &dept.TenantID, &dept.ParentID, &dept.Name, &dept.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating department: %w", err)
	}
	database.AfterCommit(ctx, s.notify)
	return &dept, nil
}

// GetByID retrieves a department by ID.
func (s *DepartmentStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Department, error) {
	var dept Department
	err := q.QueryRow(ctx,
		`SELECT `+departmentColumns+` FROM departments WHERE id = $1`,
		id,
	).Scan(&dept.ID, &dept.TenantID, &dept.ParentID, &dept.Name, &dept.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepartmentNotFound
		}
		return nil, fmt.Errorf("getting department: %w", err)
	}
	return &dept, nil
}

// ListAll returns every department of every tenant, ordered by id.
func (s *DepartmentStore) ListAll(ctx context.Context, q database.Querier) ([]Department, error) {
	rows, err := q.Query(ctx,
		`SELECT `+departmentColumns+` FROM departments ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing departments: %w", err)
	}
	defer rows.Close()

	var depts []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.TenantID, &d.ParentID, &d.Name, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning department: %w", err)
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

// Move re-parents a department. A nil parentID makes it a root. Moving a
// department beneath itself or one of its descendants is rejected.
func (s *DepartmentStore) Move(ctx context.Context, q database.Querier, id int64, parentID *int64) error {
	dept, err := s.GetByID(ctx, q, id)
	if err != nil {
		return err
	}

	if parentID != nil {
		if *parentID == id {
			return ErrDepartmentCycle
		}
		parent, err := s.GetByID(ctx, q, *parentID)
		if err != nil {
			return fmt.Errorf("invalid parent department: %w", err)
		}
		if !parent.BelongsTo(dept.TenantID) {
			return fmt.Errorf("invalid parent department: %w", ErrDepartmentNotFound)
		}

		var isDescendant bool
		err = q.QueryRow(ctx,
			`WITH RECURSIVE subtree(id) AS (
			     SELECT id FROM departments WHERE parent_id = $1
			     UNION
			     SELECT d.id FROM departments d JOIN subtree s ON d.parent_id = s.id
			 )
			 SELECT EXISTS (SELECT 1 FROM subtree WHERE id = $2)`,
			id, *parentID,
		).Scan(&isDescendant)
		if err != nil {
			return fmt.Errorf("checking department ancestry: %w", err)
		}
		if isDescendant {
			return ErrDepartmentCycle
		}
	}

	_, err = q.Exec(ctx,
		`UPDATE departments SET parent_id = $2, updated_at = now() WHERE id = $1`,
		id, parentID,
	)
	if err != nil {
		return fmt.Errorf("moving department: %w", err)
	}
	database.AfterCommit(ctx, s.notify)
	return nil
}
