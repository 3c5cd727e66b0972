package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/samber/lo"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

// RoleStore handles role database operations.
type RoleStore struct{}

// NewRoleStore creates a new role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{}
}

// Create inserts a new role with the given data scope.
func (s *RoleStore) Create(ctx context.Context, q database.Querier, tenantID *int64, name string, scope DataScope) (*Role, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrRoleNameEmpty
	}
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDataScope, int(scope))
	}

	var role Role
	var rawScope int16
	err := q.QueryRow(ctx,
		`INSERT INTO roles (tenant_id, name, data_scope)
		 VALUES ($1, $2, $3)
		 RETURNING id, tenant_id, name, data_scope, created_at`,
		tenantID, name, int16(scope),
	).Scan(&role.ID, &role.TenantID, &role.Name, &rawScope, &role.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrRoleDuplicate, name)
		}
		return nil, fmt.Errorf("creating role: %w", err)
	}
	role.DataScope = DataScope(rawScope)
	return &role, nil
}

// SetDepartments replaces the custom department grants of a role.
func (s *RoleStore) SetDepartments(ctx context.Context, q database.Querier, roleID int64, departmentIDs []int64) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
		return fmt.Errorf("checking role: %w", err)
	}
	if !exists {
		return ErrRoleNotFound
	}

	if _, err := q.Exec(ctx, `DELETE FROM role_departments WHERE role_id = $1`, roleID); err != nil {
		return fmt.Errorf("clearing role departments: %w", err)
	}
	ids := lo.Uniq(departmentIDs)
	if len(ids) == 0 {
		return nil
	}
	_, err := q.Exec(ctx,
		`INSERT INTO role_departments (role_id, department_id)
		 SELECT $1, unnest($2::BIGINT[])`,
		roleID, ids,
	)
	if err != nil {
		return fmt.Errorf("setting role departments: %w", err)
	}
	return nil
}

// AssignToUser grants a role to a user. Assigning twice is a no-op.
func (s *RoleStore) AssignToUser(ctx context.Context, q database.Querier, userID, roleID int64) error {
	_, err := q.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		userID, roleID,
	)
	if err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}
	return nil
}

// ListForUser returns the roles held by a user, each with its custom
// department grants.
func (s *RoleStore) ListForUser(ctx context.Context, q database.Querier, userID int64) ([]Role, error) {
	rows, err := q.Query(ctx,
		`SELECT r.id, r.tenant_id, r.name, r.data_scope, r.created_at,
		        COALESCE(array_agg(rd.department_id ORDER BY rd.department_id)
		                 FILTER (WHERE rd.department_id IS NOT NULL), '{}')
		 FROM roles r
		 JOIN user_roles ur ON ur.role_id = r.id
		 LEFT JOIN role_departments rd ON rd.role_id = r.id
		 WHERE ur.user_id = $1
		 GROUP BY r.id
		 ORDER BY r.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing user roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		var rawScope int16
		if err := rows.Scan(&r.ID, &r.TenantID, &r.Name, &rawScope, &r.CreatedAt, &r.DepartmentIDs); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		r.DataScope = DataScope(rawScope)
		if len(r.DepartmentIDs) == 0 {
			r.DepartmentIDs = nil
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// GetByID retrieves a role by ID, including its custom department grants.
func (s *RoleStore) GetByID(ctx context.Context, q database.Querier, id int64) (*Role, error) {
	var r Role
	var rawScope int16
	err := q.QueryRow(ctx,
		`SELECT r.id, r.tenant_id, r.name, r.data_scope, r.created_at,
		        COALESCE(array_agg(rd.department_id ORDER BY rd.department_id)
		                 FILTER (WHERE rd.department_id IS NOT NULL), '{}')
		 FROM roles r
		 LEFT JOIN role_departments rd ON rd.role_id = r.id
		 WHERE r.id = $1
		 GROUP BY r.id`,
		id,
	).Scan(&r.ID, &r.TenantID, &r.Name, &rawScope, &r.CreatedAt, &r.DepartmentIDs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, fmt.Errorf("getting role: %w", err)
	}
	r.DataScope = DataScope(rawScope)
	if len(r.DepartmentIDs) == 0 {
		r.DepartmentIDs = nil
	}
	return &r, nil
}
