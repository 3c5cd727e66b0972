package share

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
	"github.com/valinor-ai/tenantscope/internal/platform/telemetry"
	"github.com/valinor-ai/tenantscope/internal/resource"
	"github.com/valinor-ai/tenantscope/internal/tenant"
)

type recordStore interface {
	FindByIDs(ctx context.Context, q database.Querier, m *resource.Model, ids []int64) ([]resource.Record, error)
	Insert(ctx context.Context, q database.Querier, m *resource.Model, rec resource.Record) (int64, error)
}

type tenantGetter interface {
	GetByID(ctx context.Context, q database.Querier, id int64) (*tenant.Tenant, error)
}

type transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, q database.Querier) error) error
}

// CopyRequest names the records to duplicate into TargetTenantID.
type CopyRequest struct {
	ResourceType   string  `json:"resource_type"`
	ResourceIDs    []int64 `json:"resource_ids"`
	TargetTenantID int64   `json:"target_tenant_id"`
}

// CopyResult pairs every copied source id with the id of its clone.
type CopyResult struct {
	CopiedCount    int             `json:"copied_count"`
	TargetTenantID int64           `json:"target_tenant_id"`
	IDMapping      map[int64]int64 `json:"id_mapping"`
}

// Copier duplicates records of registered types into another tenant in a
// single transaction.
type Copier struct {
	registry *resource.Registry
	records  recordStore
	tenants  tenantGetter
	tx       transactor
	cloner   *Cloner
	logger   *slog.Logger
}

func NewCopier(registry *resource.Registry, records recordStore, tenants tenantGetter, tx transactor, cloner *Cloner, logger *slog.Logger) *Copier {
	return &Copier{
		registry: registry,
		records:  records,
		tenants:  tenants,
		tx:       tx,
		cloner:   cloner,
		logger:   telemetry.Component(logger, "share.copier"),
	}
}

// Copy clones every existing record in req.ResourceIDs into the target
// tenant. Any failure rolls back all inserts and no mapping is returned.
func (c *Copier) Copy(ctx context.Context, req CopyRequest, actor *auth.Identity) (*CopyResult, error) {
	m, err := c.registry.Lookup(req.ResourceType)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedResourceType, req.ResourceType)
	}
	if len(req.ResourceIDs) == 0 {
		return nil, ErrNotFound
	}

	var result *CopyResult
	err = c.tx.WithTx(ctx, func(ctx context.Context, q database.Querier) error {
		if err := validateTargetTenant(ctx, q, c.tenants, req.TargetTenantID); err != nil {
			return err
		}

		sources, err := c.records.FindByIDs(ctx, q, m, req.ResourceIDs)
		if err != nil {
			return fmt.Errorf("loading %s: %w", m.Tag(), err)
		}
		if len(sources) == 0 {
			return ErrNotFound
		}

		mapping := make(map[int64]int64, len(sources))
		for _, src := range sources {
			oldID, err := src.ID()
			if err != nil {
				return err
			}
			newID, err := c.records.Insert(ctx, q, m, c.cloner.Clone(m, src, req.TargetTenantID, actor))
			if err != nil {
				return fmt.Errorf("copying %s %d: %w", m.Tag(), oldID, err)
			}
			mapping[oldID] = newID
		}

		result = &CopyResult{
			CopiedCount:    len(mapping),
			TargetTenantID: req.TargetTenantID,
			IDMapping:      mapping,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("records copied",
		"resource_type", m.Tag(),
		"target_tenant_id", req.TargetTenantID,
		"copied", result.CopiedCount,
	)
	return result, nil
}

// validateTargetTenant checks that id names an existing, active tenant that
// has not been deleted.
func validateTargetTenant(ctx context.Context, q database.Querier, tenants tenantGetter, id int64) error {
	t, err := tenants.GetByID(ctx, q, id)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return fmt.Errorf("%w: tenant %d not found", ErrInvalidTargetTenant, id)
		}
		return fmt.Errorf("loading target tenant: %w", err)
	}
	if !t.Usable() {
		return fmt.Errorf("%w: tenant %d is inactive or deleted", ErrInvalidTargetTenant, id)
	}
	return nil
}
