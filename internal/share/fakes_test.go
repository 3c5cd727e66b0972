package share_test

import (
	"context"
	"errors"
	"slices"

	"github.com/valinor-ai/tenantscope/internal/audit"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/resource"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

// fakeRecords stages inserts until the fake transaction commits.
type fakeRecords struct {
	rows      map[int64]resource.Record
	nextID    int64
	pending   []resource.Record
	committed []resource.Record
	failOn    int // fail the nth insert (1-based) when > 0
	inserts   int
}

func newFakeRecords(rows ...resource.Record) *fakeRecords {
	f := &fakeRecords{rows: map[int64]resource.Record{}, nextID: 100}
	for _, r := range rows {
		id, _ := r.ID()
		f.rows[id] = r
	}
	return f
}

func (f *fakeRecords) FindByIDs(_ context.Context, _ database.Querier, _ *resource.Model, ids []int64) ([]resource.Record, error) {
	var out []resource.Record
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	for _, id := range slices.Compact(sorted) {
		if r, ok := f.rows[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRecords) Insert(_ context.Context, _ database.Querier, _ *resource.Model, rec resource.Record) (int64, error) {
	f.inserts++
	if f.failOn > 0 && f.inserts == f.failOn {
		return 0, errors.New("duplicate key value violates unique constraint")
	}
	f.nextID++
	f.pending = append(f.pending, rec)
	return f.nextID, nil
}

type fakeTx struct {
	records *fakeRecords
	commits int
}

func (t *fakeTx) WithTx(ctx context.Context, fn func(ctx context.Context, q database.Querier) error) error {
	t.records.pending = nil
	if err := fn(ctx, nil); err != nil {
		t.records.pending = nil
		return err
	}
	t.records.committed = append(t.records.committed, t.records.pending...)
	t.records.pending = nil
	t.commits++
	return nil
}

type fakeTenants map[int64]tenant.Tenant

func (f fakeTenants) GetByID(_ context.Context, _ database.Querier, id int64) (*tenant.Tenant, error) {
	t, ok := f[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	return &t, nil
}

var testTenants = fakeTenants{
	1: {ID: 1, Code: "src", IsActive: true},
	2: {ID: 2, Code: "dst", IsActive: true},
	3: {ID: 3, Code: "off", IsActive: false},
	4: {ID: 4, Code: "gone", IsActive: true, Status: tenant.StatusDisabled},
}

type recordingAudit struct {
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) { r.events = append(r.events, e) }
func (r *recordingAudit) Close() error                         { return nil }
