package share

import (
	"github.com/google/uuid"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/resource"
)

// Cloner materializes an independent copy of a record for another tenant
// following the model's field policy table.
type Cloner struct {
	newUUID func() string
}

func NewCloner() *Cloner {
	return &Cloner{newUUID: func() string { return uuid.NewString() }}
}

// Clone returns a new record built from src. Primary keys, store-assigned
// timestamps and foreign keys are left out; the tenant is set to
// targetTenantID, external identifiers are regenerated and authorship is
// set to actor when one is given. src is not modified and shares no
// mutable value with the result. No target validation is performed.
func (c *Cloner) Clone(m *resource.Model, src resource.Record, targetTenantID int64, actor *auth.Identity) resource.Record {
	out := make(resource.Record, len(src))
	for _, f := range m.Fields() {
		v, present := src[f.Name]
		switch f.Policy {
		case resource.PolicySkip:
			continue
		case resource.PolicySetTenant:
			out[f.Name] = targetTenantID
		case resource.PolicyRegenerate:
			out[f.Name] = c.newUUID()
		case resource.PolicySetAuthor:
			if actor != nil {
				out[f.Name] = actor.UserID
			} else if present {
				out[f.Name] = resource.CloneValue(v)
			}
		default:
			if present {
				out[f.Name] = resource.CloneValue(v)
			}
		}
	}
	return out
}
