package share_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/resource"
	"github.com/valinor-ai/tenantscope/internal/share"
)

var widgets = resource.NewModel("widgets",
	[]string{"id", "uuid", "tenant_id", "owner_id", "name", "tags", "created_id", "updated_id", "created_at", "updated_at"},
	resource.WithForeignKeys("owner_id"),
)

func TestCloner_Clone(t *testing.T) {
	created := time.Now().Add(-time.Hour)
	src := resource.Record{
		"id": int64(5), "uuid": "u1", "tenant_id": int64(1), "owner_id": int64(77),
		"name": "X", "tags": []any{"a", "b"},
		"created_id": int64(9), "updated_id": int64(9),
		"created_at": created, "updated_at": created,
	}
	snapshot := src.Clone()

	out := share.NewCloner().Clone(widgets, src, 2, &auth.Identity{UserID: 42})

	assert.NotContains(t, out, "id")
	assert.NotContains(t, out, "created_at")
	assert.NotContains(t, out, "updated_at")
	assert.NotContains(t, out, "owner_id")
	assert.NotEqual(t, "u1", out["uuid"])
	assert.NotEmpty(t, out["uuid"])
	assert.Equal(t, int64(2), out["tenant_id"])
	assert.Equal(t, int64(42), out["created_id"])
	assert.Equal(t, int64(42), out["updated_id"])
	assert.Equal(t, "X", out["name"])

	out["tags"].([]any)[0] = "mutated"
	assert.Equal(t, snapshot, src, "source must be unmodified")
}

func TestCloner_CloneWithoutActorKeepsAuthor(t *testing.T) {
	src := resource.Record{"id": int64(5), "tenant_id": int64(1), "created_id": int64(9), "name": "X"}
	out := share.NewCloner().Clone(widgets, src, 2, nil)

	assert.Equal(t, int64(9), out["created_id"])
	assert.NotContains(t, out, "updated_id")
	assert.Equal(t, int64(2), out["tenant_id"])
}

func TestCloner_FreshUUIDs(t *testing.T) {
	c := share.NewCloner()
	src := resource.Record{"id": int64(1), "uuid": "u1", "name": "X"}
	a := c.Clone(widgets, src, 2, nil)
	b := c.Clone(widgets, src, 2, nil)
	assert.NotEqual(t, a["uuid"], b["uuid"])
}

func TestCloner_CloneUserDropsPrivileges(t *testing.T) {
	src := resource.Record{
		"id": int64(3), "uuid": "u3", "tenant_id": int64(1), "department_id": int64(12),
		"username": "root", "display_name": "Root", "is_superuser": true, "status": "0",
	}

	out := share.NewCloner().Clone(resource.UserModel, src, 2, &auth.Identity{UserID: 42})

	assert.NotContains(t, out, "is_superuser", "superuser flag never crosses tenants")
	assert.NotContains(t, out, "department_id")
	assert.NotContains(t, out, "id")
	assert.Equal(t, "root", out["username"])
	assert.Equal(t, "0", out["status"])
	assert.Equal(t, int64(2), out["tenant_id"])
	assert.Equal(t, true, src["is_superuser"], "source must be unmodified")
}
