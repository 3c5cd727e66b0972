package resource_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tenantscope/internal/resource"
)

func TestRegistry(t *testing.T) {
	reg := resource.Copyable()
	assert.Equal(t, []string{"departments", "roles", "users"}, reg.Tags())

	m, err := reg.Lookup("users")
	require.NoError(t, err)
	assert.Same(t, resource.UserModel, m)

	_, err = reg.Lookup("tenants")
	assert.ErrorIs(t, err, resource.ErrUnknownResourceType)
}

func TestRegistry_DuplicateTag(t *testing.T) {
	a := resource.NewModel("a", []string{"id"})
	b := resource.NewModel("b", []string{"id"}, resource.WithTag("a"))
	assert.Panics(t, func() { resource.NewRegistry(a, b) })
}
