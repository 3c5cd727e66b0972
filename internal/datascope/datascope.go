// Package datascope derives row-visibility predicates from an actor's
// roles, tenant, department and the share grants made to its tenant.
package datascope

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"entgo.io/ent/dialect/sql"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/platform/telemetry"
	"github.com/valinor-ai/tenantscope/internal/resource"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

// ErrResolverDegraded marks a department lookup that failed and fell back
// to the actor's own department. It is logged, never returned by Build.
var ErrResolverDegraded = errors.New("department resolver degraded")

// Operation is the kind of access a predicate is built for.
type Operation string

const (
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation accepts "read", "update" or "delete".
func ParseOperation(s string) (Operation, error) {
	switch op := Operation(s); op {
	case OpRead, OpUpdate, OpDelete:
		return op, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// ShareResolver returns ids of records of the tagged model shared with the
// actor's tenant and usable for op.
type ShareResolver interface {
	SharedResourceIDs(ctx context.Context, q database.Querier, tag string, actor *auth.Identity, op Operation) ([]int64, error)
}

// Builder combines tenant, share and department visibility into one
// predicate.
type Builder struct {
	tenants     *TenantResolver
	departments *DepartmentResolver
	shares      ShareResolver
	concurrent  bool
	logger      *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithConcurrency resolves the three conditions in parallel. The Querier
// passed to Build must then be safe for concurrent use, such as a pool.
func WithConcurrency(enabled bool) BuilderOption {
	return func(b *Builder) { b.concurrent = enabled }
}

func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = telemetry.Component(l, "datascope") }
}

// NewBuilder creates a Builder. shares may be nil, in which case no
// records are visible through sharing.
func NewBuilder(tenants *TenantResolver, departments *DepartmentResolver, shares ShareResolver, opts ...BuilderOption) *Builder {
	b := &Builder{
		tenants:     tenants,
		departments: departments,
		shares:      shares,
		logger:      telemetry.Component(nil, "datascope"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the predicate restricting m to what actor may access for
// op. A nil predicate means no restriction. When nothing grants access the
// predicate matches no row.
func (b *Builder) Build(ctx context.Context, q database.Querier, m *resource.Model, actor *auth.Identity, op Operation) (*sql.Predicate, error) {
	res, err := b.Resolve(ctx, q, m, actor, op)
	if err != nil {
		return nil, err
	}
	return res.Predicate(m, nil), nil
}

// Filter is Build for a selector: the returned function ANDs the predicate
// into s with columns qualified by s's table.
func (b *Builder) Filter(ctx context.Context, q database.Querier, m *resource.Model, actor *auth.Identity, op Operation) (func(*sql.Selector), error) {
	res, err := b.Resolve(ctx, q, m, actor, op)
	if err != nil {
		return nil, err
	}
	return func(s *sql.Selector) {
		Apply(s, res.Predicate(m, s.C))
	}, nil
}

// Resolve computes the visibility of m for actor without rendering it.
func (b *Builder) Resolve(ctx context.Context, q database.Querier, m *resource.Model, actor *auth.Identity, op Operation) (*Result, error) {
	if actor == nil || actor.SkipDataScope || actor.IsSuperuser {
		return &Result{Unrestricted: true}, nil
	}
	if !m.HasTenantField() && !m.HasAuthorField() {
		return &Result{Unrestricted: true}, nil
	}

	res := &Result{}
	tenantsFn := func(ctx context.Context) error {
		if !m.HasTenantField() {
			return nil
		}
		ids, err := b.tenants.AccessibleTenants(ctx, q, actor)
		res.TenantIDs = ids
		return err
	}
	sharesFn := func(ctx context.Context) error {
		if b.shares == nil {
			return nil
		}
		ids, err := b.shares.SharedResourceIDs(ctx, q, m.Tag(), actor, op)
		if err != nil {
			return fmt.Errorf("resolving shared records: %w", err)
		}
		res.SharedIDs = ids
		return nil
	}
	deptFn := func(ctx context.Context) error {
		cond, degraded, err := b.DepartmentCondition(ctx, q, m, actor)
		res.Department, res.Degraded = cond, degraded
		return err
	}

	if b.concurrent {
		g, gctx := errgroup.WithContext(ctx)
		for _, fn := range []func(context.Context) error{tenantsFn, sharesFn, deptFn} {
			g.Go(func() error { return fn(gctx) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return res, nil
	}

	for _, fn := range []func(context.Context) error{tenantsFn, sharesFn, deptFn} {
		if err := fn(ctx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// DepartmentCondition walks Precedence for actor. A nil condition means
// the department layer adds nothing. The bool reports a degraded subtree
// lookup.
func (b *Builder) DepartmentCondition(ctx context.Context, q database.Querier, m *resource.Model, actor *auth.Identity) (*DepartmentCondition, bool, error) {
	if !m.HasAuthorField() {
		return nil, false, nil
	}
	self := &DepartmentCondition{Self: true, UserID: actor.UserID}
	if len(actor.Roles) == 0 {
		return self, false, nil
	}

	held := actor.DataScopes()
	for _, tier := range Precedence {
		if !tier.matches(held) {
			continue
		}
		switch tier.Outcome {
		case OutcomeUnrestricted:
			return nil, false, nil
		case OutcomeSelf:
			return self, false, nil
		case OutcomeDepartments:
			ids, degraded, err := b.AccessibleDepartments(ctx, q, actor)
			if err != nil {
				return nil, false, err
			}
			if len(ids) == 0 {
				continue
			}
			rel, ok := m.AuthorRelation()
			if !ok {
				return self, degraded, nil
			}
			return &DepartmentCondition{UserID: actor.UserID, DepartmentIDs: ids, Relation: rel}, degraded, nil
		}
	}
	return self, false, nil
}

// AccessibleDepartments unions the departments granted by the actor's
// CUSTOM, DEPT and DEPT_AND_CHILDREN roles. A failed subtree lookup
// degrades to the actor's own department; context errors are returned.
func (b *Builder) AccessibleDepartments(ctx context.Context, q database.Querier, actor *auth.Identity) ([]int64, bool, error) {
	var ids []int64
	degraded := false

	if actor.HasScope(tenant.ScopeCustom) {
		ids = append(ids, actor.CustomDepartmentIDs()...)
	}
	if actor.DepartmentID != nil {
		own := *actor.DepartmentID
		if actor.HasScope(tenant.ScopeDept) {
			ids = append(ids, own)
		}
		if actor.HasScope(tenant.ScopeDeptAndChildren) {
			sub, err := b.departments.DescendantsOf(ctx, q, own)
			switch {
			case err == nil:
				ids = append(ids, sub...)
			case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				return nil, false, err
			default:
				b.logger.Warn("department subtree lookup failed, using own department",
					"user_id", actor.UserID,
					"department_id", own,
					"error", fmt.Errorf("%w: %w", ErrResolverDegraded, err),
				)
				degraded = true
				ids = append(ids, own)
			}
		}
	}

	ids = lo.Uniq(ids)
	slices.Sort(ids)
	return ids, degraded, nil
}
