// Package resource describes the record types that scope predicates and
// cross-tenant copies operate on, and stores them generically.
package resource

import (
	"fmt"
	"slices"
)

// Well-known column names.
const (
	ColumnID        = "id"
	ColumnUUID      = "uuid"
	ColumnTenantID  = "tenant_id"
	ColumnCreatedID = "created_id"
	ColumnUpdatedID = "updated_id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
)

// Policy says what the cloner does with a field.
type Policy int

const (
	PolicyCopy Policy = iota
	PolicySkip
	PolicyRegenerate
	PolicySetTenant
	PolicySetAuthor
)

var policyNames = [...]string{"copy", "skip", "regenerate", "set_tenant", "set_author"}

func (p Policy) String() string {
	if int(p) >= 0 && int(p) < len(policyNames) {
		return policyNames[p]
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// Field is one column of a model together with its clone policy.
type Field struct {
	Name               string
	Policy             Policy
	PrimaryKey         bool
	ImmutableTimestamp bool
}

// AuthorRelation describes how to reach the department of a record's
// author: the author column references Table.KeyColumn, and that row
// carries DepartmentColumn.
type AuthorRelation struct {
	Table            string
	KeyColumn        string
	DepartmentColumn string
}

// Model is the static description of a record type. Build one with
// NewModel; the field policy table is fixed at construction.
type Model struct {
	tag      string
	table    string
	fields   []Field
	byName   map[string]int
	author   *AuthorRelation
	policies map[string]Policy
	fks      []string
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithTag sets the resource-type tag when it differs from the table name.
func WithTag(tag string) ModelOption {
	return func(m *Model) { m.tag = tag }
}

// WithAuthorRelation declares that created_id references a user row whose
// department can be resolved through rel.
func WithAuthorRelation(rel AuthorRelation) ModelOption {
	return func(m *Model) { m.author = &rel }
}

// WithForeignKeys marks columns that reference other records. They are
// never carried over into clones.
func WithForeignKeys(columns ...string) ModelOption {
	return func(m *Model) { m.fks = append(m.fks, columns...) }
}

// WithPolicy overrides the derived policy of a single column.
func WithPolicy(column string, p Policy) ModelOption {
	return func(m *Model) {
		if m.policies == nil {
			m.policies = map[string]Policy{}
		}
		m.policies[column] = p
	}
}

// NewModel describes table with the given columns. Policies are derived
// from column names and may be refined with options.
func NewModel(table string, columns []string, opts ...ModelOption) *Model {
	m := &Model{tag: table, table: table, byName: make(map[string]int, len(columns))}
	for _, opt := range opts {
		opt(m)
	}

	for _, col := range columns {
		if _, dup := m.byName[col]; dup {
			panic(fmt.Sprintf("resource: duplicate column %q in %s", col, table))
		}
		f := Field{Name: col, Policy: derivePolicy(col)}
		switch col {
		case ColumnID:
			f.PrimaryKey = true
		case ColumnCreatedAt, ColumnUpdatedAt:
			f.ImmutableTimestamp = true
		}
		if slices.Contains(m.fks, col) {
			f.Policy = PolicySkip
		}
		if p, ok := m.policies[col]; ok && !f.PrimaryKey {
			f.Policy = p
		}
		m.byName[col] = len(m.fields)
		m.fields = append(m.fields, f)
	}

	if _, ok := m.byName[ColumnID]; !ok {
		panic(fmt.Sprintf("resource: model %s has no %q column", table, ColumnID))
	}
	if m.author != nil && !m.HasAuthorField() {
		m.author = nil
	}
	return m
}

func derivePolicy(col string) Policy {
	switch col {
	case ColumnID, ColumnCreatedAt, ColumnUpdatedAt:
		return PolicySkip
	case ColumnTenantID:
		return PolicySetTenant
	case ColumnUUID:
		return PolicyRegenerate
	case ColumnCreatedID, ColumnUpdatedID:
		return PolicySetAuthor
	default:
		return PolicyCopy
	}
}

// Tag returns the stable resource-type tag.
func (m *Model) Tag() string { return m.tag }

// Table returns the backing table name.
func (m *Model) Table() string { return m.table }

// PrimaryKey returns the primary-key column.
func (m *Model) PrimaryKey() string { return ColumnID }

// Fields returns the field policy table in column order.
func (m *Model) Fields() []Field { return slices.Clone(m.fields) }

// Columns returns every column name in declaration order.
func (m *Model) Columns() []string {
	cols := make([]string, len(m.fields))
	for i, f := range m.fields {
		cols[i] = f.Name
	}
	return cols
}

// Field looks up a column by name.
func (m *Model) Field(name string) (Field, bool) {
	i, ok := m.byName[name]
	if !ok {
		return Field{}, false
	}
	return m.fields[i], true
}

// HasTenantField reports whether records carry tenant ownership.
func (m *Model) HasTenantField() bool {
	_, ok := m.byName[ColumnTenantID]
	return ok
}

// HasAuthorField reports whether records carry a creator reference.
func (m *Model) HasAuthorField() bool {
	_, ok := m.byName[ColumnCreatedID]
	return ok
}

// TenantField returns the tenant-ownership column.
func (m *Model) TenantField() string { return ColumnTenantID }

// AuthorField returns the authorship column.
func (m *Model) AuthorField() string { return ColumnCreatedID }

// AuthorRelation returns the relation through which the author's
// department is resolvable, if the model declares one.
func (m *Model) AuthorRelation() (AuthorRelation, bool) {
	if m.author == nil {
		return AuthorRelation{}, false
	}
	return *m.author, true
}
