package share

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/datascope"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

type effectiveGrantLister interface {
	ListEffective(ctx context.Context, q database.Querier, tag string, tenantID int64, types []ShareType, now time.Time) ([]Grant, error)
}

// Resolver finds records shared with an actor's tenant. It implements
// datascope.ShareResolver.
type Resolver struct {
	grants effectiveGrantLister
	now    func() time.Time
}

var _ datascope.ShareResolver = (*Resolver)(nil)

func NewResolver(grants effectiveGrantLister) *Resolver {
	return &Resolver{grants: grants, now: time.Now}
}

// SharedResourceIDs returns the distinct ids of tag records made visible
// to the actor's tenant for op by effective grants.
func (r *Resolver) SharedResourceIDs(ctx context.Context, q database.Querier, tag string, actor *auth.Identity, op datascope.Operation) ([]int64, error) {
	if !actor.HasTenant() {
		return nil, nil
	}
	types := EligibleShareTypes(op)
	if len(types) == 0 {
		return nil, nil
	}

	now := r.now()
	grants, err := r.grants.ListEffective(ctx, q, tag, *actor.TenantID, types, now)
	if err != nil {
		return nil, fmt.Errorf("loading share grants: %w", err)
	}

	var ids []int64
	for _, g := range grants {
		if g.Effective(now) && slices.Contains(types, g.ShareType) {
			ids = append(ids, g.ResourceID)
		}
	}
	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids, nil
}
