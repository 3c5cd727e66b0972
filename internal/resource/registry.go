package resource

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"
)

var ErrUnknownResourceType = errors.New("unknown resource type")

// Registry maps resource-type tags to models. It is immutable once built.
type Registry struct {
	models map[string]*Model
}

// NewRegistry builds a registry. Registering the same tag twice panics.
func NewRegistry(models ...*Model) *Registry {
	r := &Registry{models: make(map[string]*Model, len(models))}
	for _, m := range models {
		if _, dup := r.models[m.Tag()]; dup {
			panic(fmt.Sprintf("resource: tag %q registered twice", m.Tag()))
		}
		r.models[m.Tag()] = m
	}
	return r
}

// Lookup returns the model registered under tag.
func (r *Registry) Lookup(tag string) (*Model, error) {
	m, ok := r.models[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownResourceType, tag)
	}
	return m, nil
}

// Tags returns every registered tag, sorted.
func (r *Registry) Tags() []string {
	tags := lo.Keys(r.models)
	slices.Sort(tags)
	return tags
}

// Users relates created_id to the users table.
var Users = AuthorRelation{Table: "users", KeyColumn: ColumnID, DepartmentColumn: "department_id"}

var (
	DepartmentModel = NewModel("departments",
		[]string{"id", "uuid", "tenant_id", "parent_id", "name", "created_id", "updated_id", "created_at", "updated_at"},
		WithForeignKeys("parent_id"),
		WithAuthorRelation(Users),
	)

	RoleModel = NewModel("roles",
		[]string{"id", "uuid", "tenant_id", "name", "data_scope", "created_id", "updated_id", "created_at", "updated_at"},
		WithAuthorRelation(Users),
	)

	UserModel = NewModel("users",
		[]string{"id", "uuid", "tenant_id", "department_id", "username", "display_name", "is_superuser", "status", "created_id", "updated_id", "created_at", "updated_at"},
		WithForeignKeys("department_id"),
		WithPolicy("is_superuser", PolicySkip),
		WithAuthorRelation(Users),
	)
)

// Copyable returns the registry of record types that may be copied across
// tenants.
func Copyable() *Registry {
	return NewRegistry(DepartmentModel, RoleModel, UserModel)
}
