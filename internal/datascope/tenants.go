package datascope

import (
	"context"
	"fmt"

	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

type activeTenantLister interface {
	ListActiveIDs(ctx context.Context, q database.Querier) ([]int64, error)
}

// TenantResolver computes the tenants an actor sees directly, without
// sharing.
type TenantResolver struct {
	tenants activeTenantLister
}

func NewTenantResolver(tenants activeTenantLister) *TenantResolver {
	return &TenantResolver{tenants: tenants}
}

// AccessibleTenants returns the actor's own tenant, or every active tenant
// when one of its roles has the ALL scope. An actor without a tenant gets
// nothing.
func (r *TenantResolver) AccessibleTenants(ctx context.Context, q database.Querier, actor *auth.Identity) ([]int64, error) {
	if !actor.HasTenant() {
		return nil, nil
	}
	own := []int64{*actor.TenantID}
	if len(actor.Roles) == 0 {
		return own, nil
	}
	if actor.HasScope(tenant.ScopeAll) {
		ids, err := r.tenants.ListActiveIDs(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("resolving accessible tenants: %w", err)
		}
		return ids, nil
	}
	return own, nil
}
