package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

type userStore interface {
	GetByID(ctx context.Context, q database.Querier, id int64) (*tenant.User, error)
}

type roleStore interface {
	ListForUser(ctx context.Context, q database.Querier, userID int64) ([]tenant.Role, error)
}

// Loader materializes an Identity from the user and role tables.
type Loader struct {
	users userStore
	roles roleStore
}

func NewLoader(users userStore, roles roleStore) *Loader {
	return &Loader{users: users, roles: roles}
}

// Load returns the identity of userID with all of its roles. Disabled
// users are rejected with ErrUserDisabled.
func (l *Loader) Load(ctx context.Context, q database.Querier, userID int64) (*Identity, error) {
	u, err := l.users.GetByID(ctx, q, userID)
	if err != nil {
		if errors.Is(err, tenant.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u.Status != tenant.StatusNormal {
		return nil, fmt.Errorf("%w: %d", ErrUserDisabled, u.ID)
	}

	roles, err := l.roles.ListForUser(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("loading roles: %w", err)
	}

	return &Identity{
		UserID:       u.ID,
		TenantID:     u.TenantID,
		DepartmentID: u.DepartmentID,
		Username:     u.Username,
		IsSuperuser:  u.IsSuperuser,
		Roles:        roles,
	}, nil
}
