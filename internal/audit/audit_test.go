package audit_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tenantscope/internal/audit"
	"github.com/valinor-ai/tenantscope/internal/auth"
)

func TestFromActor(t *testing.T) {
	tenantID := int64(2)
	actor := &auth.Identity{UserID: 7, TenantID: &tenantID}

	e := audit.FromActor(actor, audit.Event{Action: audit.ActionShareCreated})
	require.NotNil(t, e.UserID)
	assert.Equal(t, int64(7), *e.UserID)
	require.NotNil(t, e.TenantID)
	assert.Equal(t, tenantID, *e.TenantID)

	explicit := int64(5)
	e = audit.FromActor(actor, audit.Event{TenantID: &explicit})
	assert.Equal(t, int64(5), *e.TenantID)

	e = audit.FromActor(nil, audit.Event{Action: "x"})
	assert.Nil(t, e.UserID)
	assert.Nil(t, e.TenantID)
}
