package share

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valinor-ai/tenantscope/internal/audit"
	"github.com/valinor-ai/tenantscope/internal/auth"
	"github.com/valinor-ai/tenantscope/internal/platform/database"
)

type grantStore interface {
	Create(ctx context.Context, q database.Querier, g Grant) (*Grant, error)
	GetByID(ctx context.Context, q database.Querier, id int64) (*Grant, error)
	Revoke(ctx context.Context, q database.Querier, id int64, actorID *int64) (bool, error)
	List(ctx context.Context, q database.Querier, f ListFilter) ([]Grant, error)
}

// CreateInput is a request to share one record with a tenant.
type CreateInput struct {
	ResourceType   string     `json:"resource_type"`
	ResourceID     int64      `json:"resource_id"`
	TargetTenantID int64      `json:"target_tenant_id"`
	ShareType      ShareType  `json:"share_type"`
	ExpireTime     *time.Time `json:"expire_time,omitempty"`
	Remark         string     `json:"remark,omitempty"`
}

func (in CreateInput) validate() error {
	rt := strings.TrimSpace(in.ResourceType)
	if rt == "" {
		return fmt.Errorf("%w: resource type is required", ErrInvalidResourceType)
	}
	if len(rt) > 64 {
		return fmt.Errorf("%w: must not exceed 64 characters", ErrInvalidResourceType)
	}
	if !in.ShareType.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidShareType, int(in.ShareType))
	}
	if in.ResourceID <= 0 {
		return fmt.Errorf("invalid resource id %d", in.ResourceID)
	}
	return nil
}

// Service is the administrative surface over share grants and copies.
type Service struct {
	grants  grantStore
	tenants tenantGetter
	copier  *Copier
	audit   audit.Logger
}

func NewService(grants grantStore, tenants tenantGetter, copier *Copier, auditLog audit.Logger) *Service {
	if auditLog == nil {
		auditLog = audit.NopLogger{}
	}
	return &Service{grants: grants, tenants: tenants, copier: copier, audit: auditLog}
}

func actorID(actor *auth.Identity) *int64 {
	if actor == nil {
		return nil
	}
	id := actor.UserID
	return &id
}

// Create validates in and stores an active grant authored by actor. The
// target tenant must exist and be active.
func (s *Service) Create(ctx context.Context, q database.Querier, actor *auth.Identity, in CreateInput) (*Grant, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := validateTargetTenant(ctx, q, s.tenants, in.TargetTenantID); err != nil {
		return nil, err
	}

	g, err := s.grants.Create(ctx, q, Grant{
		UUID:           uuid.NewString(),
		ResourceType:   strings.TrimSpace(in.ResourceType),
		ResourceID:     in.ResourceID,
		TargetTenantID: in.TargetTenantID,
		ShareType:      in.ShareType,
		Status:         StatusActive,
		ExpireTime:     in.ExpireTime,
		Remark:         in.Remark,
		CreatedID:      actorID(actor),
		UpdatedID:      actorID(actor),
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.FromActor(actor, audit.Event{
		Action:       audit.ActionShareCreated,
		ResourceType: g.ResourceType,
		ResourceID:   &g.ResourceID,
		Metadata: map[string]any{
			"share_id":                   g.ID,
			audit.MetadataTargetTenantID: g.TargetTenantID,
			audit.MetadataShareType:      int(g.ShareType),
		},
		Source: audit.SourceCLI,
	}))
	return g, nil
}

// Revoke deactivates a grant. Revoking an already revoked grant succeeds
// without effect.
func (s *Service) Revoke(ctx context.Context, q database.Querier, actor *auth.Identity, id int64) error {
	g, err := s.grants.GetByID(ctx, q, id)
	if err != nil {
		return err
	}
	changed, err := s.grants.Revoke(ctx, q, id, actorID(actor))
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	s.audit.Log(ctx, audit.FromActor(actor, audit.Event{
		Action:       audit.ActionShareRevoked,
		ResourceType: g.ResourceType,
		ResourceID:   &g.ResourceID,
		Metadata: map[string]any{
			"share_id":                   g.ID,
			audit.MetadataTargetTenantID: g.TargetTenantID,
		},
		Source: audit.SourceCLI,
	}))
	return nil
}

// List returns grants matching f, newest first.
func (s *Service) List(ctx context.Context, q database.Querier, f ListFilter) ([]Grant, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.grants.List(ctx, q, f)
}

// Copy duplicates records into another tenant and records the mapping in
// the audit log.
func (s *Service) Copy(ctx context.Context, actor *auth.Identity, req CopyRequest) (*CopyResult, error) {
	res, err := s.copier.Copy(ctx, req, actor)
	if err != nil {
		return nil, err
	}

	mapping := make(map[string]int64, len(res.IDMapping))
	for oldID, newID := range res.IDMapping {
		mapping[fmt.Sprint(oldID)] = newID
	}
	s.audit.Log(ctx, audit.FromActor(actor, audit.Event{
		Action:       audit.ActionDataCopied,
		ResourceType: req.ResourceType,
		Metadata: map[string]any{
			audit.MetadataTargetTenantID: res.TargetTenantID,
			audit.MetadataResourceIDs:    req.ResourceIDs,
			audit.MetadataCopiedCount:    res.CopiedCount,
			audit.MetadataIDMapping:      mapping,
		},
		Source: audit.SourceCLI,
	}))
	return res, nil
}
