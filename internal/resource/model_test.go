package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tenantscope/internal/resource"
)

func TestNewModel_DerivesPolicies(t *testing.T) {
	m := resource.NewModel("widgets",
		[]string{"id", "uuid", "tenant_id", "owner_id", "name", "created_id", "updated_id", "created_at", "updated_at"},
		resource.WithForeignKeys("owner_id"),
	)

	want := map[string]resource.Policy{
		"id":         resource.PolicySkip,
		"uuid":       resource.PolicyRegenerate,
		"tenant_id":  resource.PolicySetTenant,
		"owner_id":   resource.PolicySkip,
		"name":       resource.PolicyCopy,
		"created_id": resource.PolicySetAuthor,
		"updated_id": resource.PolicySetAuthor,
		"created_at": resource.PolicySkip,
		"updated_at": resource.PolicySkip,
	}
	for col, p := range want {
		f, ok := m.Field(col)
		require.True(t, ok, col)
		assert.Equal(t, p, f.Policy, col)
	}

	id, _ := m.Field("id")
	assert.True(t, id.PrimaryKey)
	created, _ := m.Field("created_at")
	assert.True(t, created.ImmutableTimestamp)

	assert.Equal(t, "widgets", m.Tag())
	assert.Equal(t, "id", m.PrimaryKey())
	assert.True(t, m.HasTenantField())
	assert.True(t, m.HasAuthorField())
	_, ok := m.AuthorRelation()
	assert.False(t, ok)
}

func TestNewModel_Options(t *testing.T) {
	m := resource.NewModel("widget_rows", []string{"id", "name", "secret"},
		resource.WithTag("widget"),
		resource.WithPolicy("secret", resource.PolicySkip),
		resource.WithPolicy("id", resource.PolicyCopy),
	)
	assert.Equal(t, "widget", m.Tag())
	assert.Equal(t, "widget_rows", m.Table())
	assert.False(t, m.HasTenantField())
	assert.False(t, m.HasAuthorField())

	secret, _ := m.Field("secret")
	assert.Equal(t, resource.PolicySkip, secret.Policy)
	id, _ := m.Field("id")
	assert.Equal(t, resource.PolicySkip, id.Policy, "primary key policy cannot be overridden")
}

func TestNewModel_AuthorRelationNeedsAuthorField(t *testing.T) {
	m := resource.NewModel("notes", []string{"id", "tenant_id"}, resource.WithAuthorRelation(resource.Users))
	_, ok := m.AuthorRelation()
	assert.False(t, ok)

	rel, ok := resource.DepartmentModel.AuthorRelation()
	require.True(t, ok)
	assert.Equal(t, "users", rel.Table)
	assert.Equal(t, "department_id", rel.DepartmentColumn)
}

func TestNewModel_Panics(t *testing.T) {
	assert.Panics(t, func() { resource.NewModel("t", []string{"name"}) })
	assert.Panics(t, func() { resource.NewModel("t", []string{"id", "id"}) })
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "set_tenant", resource.PolicySetTenant.String())
	assert.Equal(t, "policy(42)", resource.Policy(42).String())
}

func TestBuiltinModels(t *testing.T) {
	is, _ := resource.UserModel.Field("is_superuser")
	assert.Equal(t, resource.PolicySkip, is.Policy)
	dept, _ := resource.UserModel.Field("department_id")
	assert.Equal(t, resource.PolicySkip, dept.Policy)
	parent, _ := resource.DepartmentModel.Field("parent_id")
	assert.Equal(t, resource.PolicySkip, parent.Policy)
	scope, _ := resource.RoleModel.Field("data_scope")
	assert.Equal(t, resource.PolicyCopy, scope.Policy)
}
