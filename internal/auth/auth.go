package auth

import (
	"errors"
	"slices"

	"github.com/samber/lo"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserDisabled = errors.New("user disabled")
)

// Identity is the actor on whose behalf records are read or written.
type Identity struct {
	UserID       int64         `json:"user_id"`
	TenantID     *int64        `json:"tenant_id,omitempty"`
	DepartmentID *int64        `json:"department_id,omitempty"`
	Username     string        `json:"username,omitempty"`
	IsSuperuser  bool          `json:"is_superuser"`
	Roles        []tenant.Role `json:"roles,omitempty"`

	// SkipDataScope disables scope filtering for calls made with this
	// identity. Set by trusted internal callers only.
	SkipDataScope bool `json:"-"`
}

// HasTenant reports whether the actor is affiliated with a tenant.
func (i *Identity) HasTenant() bool {
	return i != nil && i.TenantID != nil
}

// DataScopes returns the distinct data scopes across the actor's roles in
// ascending order.
func (i *Identity) DataScopes() []tenant.DataScope {
	if i == nil {
		return nil
	}
	scopes := lo.Uniq(lo.Map(i.Roles, func(r tenant.Role, _ int) tenant.DataScope {
		return r.DataScope
	}))
	slices.Sort(scopes)
	return scopes
}

// HasScope reports whether any of the actor's roles carries scope.
func (i *Identity) HasScope(scope tenant.DataScope) bool {
	if i == nil {
		return false
	}
	return lo.ContainsBy(i.Roles, func(r tenant.Role) bool { return r.DataScope == scope })
}

// CustomDepartmentIDs returns the union of departments granted explicitly
// by the actor's CUSTOM roles, sorted.
func (i *Identity) CustomDepartmentIDs() []int64 {
	if i == nil {
		return nil
	}
	var ids []int64
	for _, r := range i.Roles {
		if r.DataScope == tenant.ScopeCustom {
			ids = append(ids, r.DepartmentIDs...)
		}
	}
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids
}
