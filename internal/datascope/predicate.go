package datascope

import (
	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
	"github.com/valinor-ai/tenantscope/internal/resource"
)

// DenyID is a primary-key value no record can have.
const DenyID int64 = -1

// DepartmentCondition narrows records by authorship. Either Self is set
// and only UserID's records match, or records whose author belongs to one
// of DepartmentIDs match.
type DepartmentCondition struct {
	Self          bool
	UserID        int64
	DepartmentIDs []int64
	Relation      resource.AuthorRelation
}

// Result is the resolved visibility of one model for one actor and
// operation, before rendering to SQL.
type Result struct {
	// Unrestricted means no filter applies.
	Unrestricted bool
	TenantIDs    []int64
	SharedIDs    []int64
	Department   *DepartmentCondition
	// Degraded is set when the department subtree could not be loaded
	// and the actor's own department was used instead.
	Degraded bool
}

func identity(col string) string { return col }

// Predicate renders r against m. Columns are passed through col, which
// may qualify them for a joined query. A nil predicate means no filter.
func (r *Result) Predicate(m *resource.Model, col func(string) string) *sql.Predicate {
	if r == nil || r.Unrestricted {
		return nil
	}
	if col == nil {
		col = identity
	}

	var conds []*sql.Predicate
	if len(r.TenantIDs) > 0 && m.HasTenantField() {
		conds = append(conds, sql.In(col(m.TenantField()), lo.ToAnySlice(r.TenantIDs)...))
	}
	if len(r.SharedIDs) > 0 {
		conds = append(conds, sql.In(col(m.PrimaryKey()), lo.ToAnySlice(r.SharedIDs)...))
	}
	if d := r.Department; d != nil && m.HasAuthorField() {
		conds = append(conds, d.predicate(col(m.AuthorField())))
	}

	switch len(conds) {
	case 0:
		return sql.EQ(col(m.PrimaryKey()), DenyID)
	case 1:
		return conds[0]
	default:
		return sql.Or(conds...)
	}
}

func (d *DepartmentCondition) predicate(authorCol string) *sql.Predicate {
	if d.Self {
		return sql.EQ(authorCol, d.UserID)
	}
	t := sql.Table(d.Relation.Table)
	authors := sql.Dialect(dialect.Postgres).
		Select(t.C(d.Relation.KeyColumn)).
		From(t).
		Where(sql.In(t.C(d.Relation.DepartmentColumn), lo.ToAnySlice(d.DepartmentIDs)...))
	return sql.In(authorCol, authors)
}

// Apply ANDs p into sel. A nil p leaves sel untouched.
func Apply(sel *sql.Selector, p *sql.Predicate) *sql.Selector {
	if p == nil {
		return sel
	}
	return sel.Where(p)
}
