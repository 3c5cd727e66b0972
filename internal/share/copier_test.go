package share_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/resource"
	"github.com/valinor-ai/tenantscope/internal/share"
)

func newCopier(records *fakeRecords) (*share.Copier, *fakeTx) {
	tx := &fakeTx{records: records}
	reg := resource.NewRegistry(widgets)
	return share.NewCopier(reg, records, testTenants, tx, share.NewCloner(), nil), tx
}

func widget(id int64, name string) resource.Record {
	return resource.Record{"id": id, "uuid": "u", "tenant_id": int64(1), "name": name, "created_id": int64(9)}
}

func TestCopier_PartialIDs(t *testing.T) {
	records := newFakeRecords(widget(5, "five"))
	c, tx := newCopier(records)

	res, err := c.Copy(context.Background(), share.CopyRequest{
		ResourceType: "widgets", ResourceIDs: []int64{5, 6}, TargetTenantID: 2,
	}, &auth.Identity{UserID: 42})
	require.NoError(t, err)

	assert.Equal(t, 1, res.CopiedCount)
	assert.Equal(t, int64(2), res.TargetTenantID)
	require.Len(t, res.IDMapping, 1)
	assert.Equal(t, int64(101), res.IDMapping[5])
	assert.Equal(t, 1, tx.commits)

	require.Len(t, records.committed, 1)
	assert.Equal(t, int64(2), records.committed[0]["tenant_id"])
	assert.Equal(t, int64(42), records.committed[0]["created_id"])
	assert.Equal(t, "five", records.committed[0]["name"])
}

func TestCopier_NotFound(t *testing.T) {
	for name, ids := range map[string][]int64{
		"Empty":      {},
		"Nil":        nil,
		"AllMissing": {6, 7},
	} {
		t.Run(name, func(t *testing.T) {
			records := newFakeRecords(widget(5, "five"))
			c, tx := newCopier(records)

			res, err := c.Copy(context.Background(), share.CopyRequest{
				ResourceType: "widgets", ResourceIDs: ids, TargetTenantID: 2,
			}, nil)
			assert.ErrorIs(t, err, share.ErrNotFound)
			assert.Nil(t, res)
			assert.Zero(t, records.inserts)
			assert.Empty(t, records.committed)
			assert.Zero(t, tx.commits)
		})
	}
}

func TestCopier_UnsupportedResourceType(t *testing.T) {
	c, _ := newCopier(newFakeRecords(widget(5, "five")))
	_, err := c.Copy(context.Background(), share.CopyRequest{
		ResourceType: "tenants", ResourceIDs: []int64{5}, TargetTenantID: 2,
	}, nil)
	assert.ErrorIs(t, err, share.ErrUnsupportedResourceType)
}

func TestCopier_InvalidTargetTenant(t *testing.T) {
	for name, target := range map[string]int64{"Missing": 99, "Inactive": 3, "Deleted": 4} {
		t.Run(name, func(t *testing.T) {
			records := newFakeRecords(widget(5, "five"))
			c, _ := newCopier(records)
			_, err := c.Copy(context.Background(), share.CopyRequest{
				ResourceType: "widgets", ResourceIDs: []int64{5}, TargetTenantID: target,
			}, nil)
			assert.ErrorIs(t, err, share.ErrInvalidTargetTenant)
			assert.Zero(t, records.inserts)
		})
	}
}

func TestCopier_FailureRollsBackEverything(t *testing.T) {
	records := newFakeRecords(widget(5, "five"), widget(6, "six"), widget(7, "seven"))
	records.failOn = 2
	c, tx := newCopier(records)

	res, err := c.Copy(context.Background(), share.CopyRequest{
		ResourceType: "widgets", ResourceIDs: []int64{5, 6, 7}, TargetTenantID: 2,
	}, nil)
	require.Error(t, err)
	assert.ErrorContains(t, err, "copying widgets 6")
	assert.Nil(t, res)
	assert.Empty(t, records.committed)
	assert.Zero(t, tx.commits)
}
