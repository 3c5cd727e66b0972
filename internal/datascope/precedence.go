package datascope

import (
	"slices"

	"github.com/valinor-ai/tenantscope/internal/tenant"
)

// Outcome is what a matched precedence tier contributes to the
// department condition.
type Outcome int

const (
	// OutcomeUnrestricted adds no department narrowing; the tenant
	// condition alone governs.
	OutcomeUnrestricted Outcome = iota
	// OutcomeDepartments narrows to records authored within the
	// accessible departments. Falls through when that set is empty.
	OutcomeDepartments
	// OutcomeSelf narrows to records the actor authored.
	OutcomeSelf
)

// Tier is one rung of the precedence ladder.
type Tier struct {
	Name    string
	Scopes  []tenant.DataScope
	Outcome Outcome
}

// Precedence is consulted top to bottom; the first tier whose scopes the
// actor holds decides. An actor matching no tier is limited to self.
var Precedence = []Tier{
	{Name: "all", Scopes: []tenant.DataScope{tenant.ScopeAll}, Outcome: OutcomeUnrestricted},
	{Name: "tenant", Scopes: []tenant.DataScope{tenant.ScopeTenant}, Outcome: OutcomeUnrestricted},
	{Name: "departments", Scopes: []tenant.DataScope{tenant.ScopeCustom, tenant.ScopeDept, tenant.ScopeDeptAndChildren}, Outcome: OutcomeDepartments},
	{Name: "self", Scopes: []tenant.DataScope{tenant.ScopeSelf}, Outcome: OutcomeSelf},
}

func (t Tier) matches(held []tenant.DataScope) bool {
	return slices.ContainsFunc(t.Scopes, func(s tenant.DataScope) bool {
		return slices.Contains(held, s)
	})
}
