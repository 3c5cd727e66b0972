package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

const userColumns = `id, tenant_id, department_id, username, COALESCE(display_name, ''), is_superuser, status, created_at`

// UserStore handles user database operations.
type UserStore struct{}

// NewUserStore creates a new user store.
func NewUserStore() *UserStore {
	return &UserStore{}
}

// Create inserts a new user. ID, Status and CreatedAt of in are ignored.
func (s *UserStore) Create(ctx context.Context, q database.Querier, in User) (*User, error) {
	if err := ValidateUsername(in.Username); err != nil {
		return nil, err
	}

	var user User
	err := q.QueryRow(ctx,
		`INSERT INTO users (tenant_id, department_id, username, display_name, is_superuser)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		 RETURNING `+userColumns,
		in.TenantID, in.DepartmentID, in.Username, in.DisplayName, in.IsSuperuser,
	).Scan(&user.ID, &user.TenantID, &user.DepartmentID, &user.Username, &user.DisplayName,
		&user.IsSuperuser, &user.Status, &user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrUsernameDuplicate, in.Username)
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (s *UserStore) GetByID(ctx context.Context, q database.Querier, id int64) (*User, error) {
	var user User
	err := q.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.TenantID, &user.DepartmentID, &user.Username, &user.DisplayName,
		&user.IsSuperuser, &user.Status, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &user, nil
}

// SetDepartment moves a user into a department, or out of any department
// when departmentID is nil.
func (s *UserStore) SetDepartment(ctx context.Context, q database.Querier, userID int64, departmentID *int64) error {
	tag, err := q.Exec(ctx,
		`UPDATE users SET department_id = $2, updated_at = now() WHERE id = $1`,
		userID, departmentID,
	)
	if err != nil {
		return fmt.Errorf("setting user department: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}
