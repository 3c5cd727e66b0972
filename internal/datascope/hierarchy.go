package datascope

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	cachelib "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	gocache_store "github.com/eko/gocache/store/go_cache/v4"
	"github.com/jackc/pgx/v5"
	gocache "github.com/patrickmn/go-cache"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

// ChildIndex maps a department to its direct children.
type ChildIndex map[int64][]int64

// NewChildIndex builds the parent-to-children adjacency of depts in one pass.
func NewChildIndex(depts []tenant.Department) ChildIndex {
	idx := make(ChildIndex, len(depts))
	for _, d := range depts {
		if d.ParentID != nil {
			idx[*d.ParentID] = append(idx[*d.ParentID], d.ID)
		}
	}
	return idx
}

// Descendants returns root and every department below it, sorted. Cycles
// in the index are tolerated.
func Descendants(root int64, idx ChildIndex) []int64 {
	visited := map[int64]struct{}{root: {}}
	out := []int64{root}
	queue := []int64{root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, child := range idx[id] {
			if _, seen := visited[child]; seen {
				continue
			}
			visited[child] = struct{}{}
			out = append(out, child)
			queue = append(queue, child)
		}
	}
	slices.Sort(out)
	return out
}

type departmentLister interface {
	ListAll(ctx context.Context, q database.Querier) ([]tenant.Department, error)
}

const childIndexKey = "departments:child-index"

// DepartmentResolver answers subtree queries over the department tree.
// The index spans every tenant.
//
// The cache only ever holds committed rows: lookups through a transaction
// bypass it, and a load that overlaps an Invalidate is returned but not
// stored.
type DepartmentResolver struct {
	store departmentLister
	cache cachelib.SetterCacheInterface[ChildIndex]
	ttl   time.Duration

	mu  sync.Mutex
	gen uint64
}

// DepartmentResolverOption configures a DepartmentResolver.
type DepartmentResolverOption func(*DepartmentResolver)

// WithCacheTTL keeps the child index in memory for ttl. Zero or negative
// disables caching, and the index is rebuilt on every call.
func WithCacheTTL(ttl time.Duration) DepartmentResolverOption {
	return func(r *DepartmentResolver) {
		if ttl <= 0 {
			r.cache, r.ttl = nil, 0
			return
		}
		client := gocache.New(ttl, 2*ttl)
		r.cache = cachelib.New[ChildIndex](gocache_store.NewGoCache(client))
		r.ttl = ttl
	}
}

func NewDepartmentResolver(store departmentLister, opts ...DepartmentResolverOption) *DepartmentResolver {
	r := &DepartmentResolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *DepartmentResolver) index(ctx context.Context, q database.Querier) (ChildIndex, error) {
	_, inTx := q.(pgx.Tx)
	cached := r.cache != nil && !inTx

	if cached {
		if idx, err := r.cache.Get(ctx, childIndexKey); err == nil && idx != nil {
			return idx, nil
		}
	}

	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()

	depts, err := r.store.ListAll(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("loading departments: %w", err)
	}
	idx := NewChildIndex(depts)

	if cached {
		r.mu.Lock()
		if r.gen == gen {
			_ = r.cache.Set(ctx, childIndexKey, idx, store.WithExpiration(r.ttl))
		}
		r.mu.Unlock()
	}
	return idx, nil
}

// DescendantsOf returns root and all of its transitive children.
func (r *DepartmentResolver) DescendantsOf(ctx context.Context, q database.Querier, root int64) ([]int64, error) {
	idx, err := r.index(ctx, q)
	if err != nil {
		return nil, err
	}
	return Descendants(root, idx), nil
}

// Invalidate drops the cached index and discards any load still in
// flight. Register it as a department change notifier so committed writes
// are visible to the next lookup.
func (r *DepartmentResolver) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cache != nil {
		_ = r.cache.Delete(context.Background(), childIndexKey)
	}
}
