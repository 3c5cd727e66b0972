package share_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tenantscope/internal/audit"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/share"
)

type memGrants struct {
	grants     map[int64]*share.Grant
	next       int64
	lastFilter share.ListFilter
}

func newMemGrants() *memGrants { return &memGrants{grants: map[int64]*share.Grant{}} }

func (m *memGrants) Create(_ context.Context, _ database.Querier, g share.Grant) (*share.Grant, error) {
	m.next++
	g.ID = m.next
	g.CreatedAt = time.Now()
	m.grants[g.ID] = &g
	out := g
	return &out, nil
}

func (m *memGrants) GetByID(_ context.Context, _ database.Querier, id int64) (*share.Grant, error) {
	g, ok := m.grants[id]
	if !ok {
		return nil, share.ErrGrantNotFound
	}
	out := *g
	return &out, nil
}

func (m *memGrants) Revoke(_ context.Context, _ database.Querier, id int64, actorID *int64) (bool, error) {
	g := m.grants[id]
	if g.Status == share.StatusRevoked {
		return false, nil
	}
	g.Status = share.StatusRevoked
	g.UpdatedID = actorID
	return true, nil
}

func (m *memGrants) List(_ context.Context, _ database.Querier, f share.ListFilter) ([]share.Grant, error) {
	m.lastFilter = f
	var out []share.Grant
	for _, g := range m.grants {
		out = append(out, *g)
	}
	return out, nil
}

func newService() (*share.Service, *memGrants, *recordingAudit, *fakeRecords) {
	grants := newMemGrants()
	rec := &recordingAudit{}
	records := newFakeRecords(widget(5, "five"))
	copier, _ := newCopier(records)
	return share.NewService(grants, testTenants, copier, rec), grants, rec, records
}

func TestService_Create(t *testing.T) {
	svc, grants, rec, _ := newService()
	tenantID := int64(1)
	actor := &auth.Identity{UserID: 42, TenantID: &tenantID}

	g, err := svc.Create(context.Background(), nil, actor, share.CreateInput{
		ResourceType: " widgets ", ResourceID: 5, TargetTenantID: 2, ShareType: share.ViewAndEdit, Remark: "demo",
	})
	require.NoError(t, err)
	assert.Equal(t, "widgets", g.ResourceType)
	assert.Equal(t, share.StatusActive, g.Status)
	assert.NotEmpty(t, g.UUID)
	require.NotNil(t, g.CreatedID)
	assert.Equal(t, int64(42), *g.CreatedID)
	assert.Equal(t, int64(42), *g.UpdatedID)
	assert.Len(t, grants.grants, 1)

	require.Len(t, rec.events, 1)
	e := rec.events[0]
	assert.Equal(t, audit.ActionShareCreated, e.Action)
	assert.Equal(t, int64(42), *e.UserID)
	assert.Equal(t, int64(1), *e.TenantID)
	assert.Equal(t, int64(2), e.Metadata[audit.MetadataTargetTenantID])
}

func TestService_Create_Validation(t *testing.T) {
	svc, grants, rec, _ := newService()
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name string
		in   share.CreateInput
		want error
	}{
		{"EmptyType", share.CreateInput{ResourceType: " ", ResourceID: 1, TargetTenantID: 2, ShareType: share.View}, share.ErrInvalidResourceType},
		{"LongType", share.CreateInput{ResourceType: string(long), ResourceID: 1, TargetTenantID: 2, ShareType: share.View}, share.ErrInvalidResourceType},
		{"BadShareType", share.CreateInput{ResourceType: "widgets", ResourceID: 1, TargetTenantID: 2, ShareType: 7}, share.ErrInvalidShareType},
		{"MissingTenant", share.CreateInput{ResourceType: "widgets", ResourceID: 1, TargetTenantID: 99, ShareType: share.View}, share.ErrInvalidTargetTenant},
		{"InactiveTenant", share.CreateInput{ResourceType: "widgets", ResourceID: 1, TargetTenantID: 3, ShareType: share.View}, share.ErrInvalidTargetTenant},
		{"DeletedTenant", share.CreateInput{ResourceType: "widgets", ResourceID: 1, TargetTenantID: 4, ShareType: share.View}, share.ErrInvalidTargetTenant},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), nil, nil, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, grants.grants)
	assert.Empty(t, rec.events)
}

func TestService_Revoke(t *testing.T) {
	svc, grants, rec, _ := newService()
	actor := &auth.Identity{UserID: 42}
	ctx := context.Background()

	g, err := svc.Create(ctx, nil, actor, share.CreateInput{ResourceType: "widgets", ResourceID: 5, TargetTenantID: 2, ShareType: share.View})
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(ctx, nil, actor, g.ID))
	assert.Equal(t, share.StatusRevoked, grants.grants[g.ID].Status)
	require.Len(t, rec.events, 2)
	assert.Equal(t, audit.ActionShareRevoked, rec.events[1].Action)

	require.NoError(t, svc.Revoke(ctx, nil, actor, g.ID), "revoking twice is a no-op")
	assert.Len(t, rec.events, 2)

	assert.ErrorIs(t, svc.Revoke(ctx, nil, actor, 999), share.ErrGrantNotFound)
}

func TestService_ListClampsPaging(t *testing.T) {
	svc, grants, _, _ := newService()
	_, err := svc.List(context.Background(), nil, share.ListFilter{Limit: 10000, Offset: -3})
	require.NoError(t, err)
	assert.Equal(t, 50, grants.lastFilter.Limit)
	assert.Equal(t, 0, grants.lastFilter.Offset)
}

func TestService_Copy(t *testing.T) {
	svc, _, rec, records := newService()
	res, err := svc.Copy(context.Background(), &auth.Identity{UserID: 42}, share.CopyRequest{
		ResourceType: "widgets", ResourceIDs: []int64{5}, TargetTenantID: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.CopiedCount)
	assert.Len(t, records.committed, 1)

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.ActionDataCopied, rec.events[0].Action)
	assert.Equal(t, map[string]int64{"5": res.IDMapping[5]}, rec.events[0].Metadata[audit.MetadataIDMapping])

	_, err = svc.Copy(context.Background(), nil, share.CopyRequest{ResourceType: "widgets", TargetTenantID: 2})
	assert.ErrorIs(t, err, share.ErrNotFound)
	assert.Len(t, rec.events, 1)
}
