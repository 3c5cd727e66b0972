package audit

import (
	"context"
	"time"

	"github.com/valinor-ai/tenantscope/internal/auth"
)

// Event represents a single auditable action in the system.
type Event struct {
	ID           int64          `json:"id,omitempty"`
	TenantID     *int64         `json:"tenant_id,omitempty"`
	UserID       *int64         `json:"user_id,omitempty"` // nil for system events
	Action       string         `json:"action"`            // e.g. "share.created", "data.copied"
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   *int64         `json:"resource_id,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Source       string         `json:"source"` // "cli", "system"
	CreatedAt    time.Time      `json:"created_at"`
}

const (
	ActionShareCreated = "share.created"
	ActionShareRevoked = "share.revoked"
	ActionDataCopied   = "data.copied"
)

const (
	MetadataTargetTenantID = "target_tenant_id"
	MetadataShareType      = "share_type"
	MetadataResourceIDs    = "resource_ids"
	MetadataIDMapping      = "id_mapping"
	MetadataCopiedCount    = "copied_count"
)

const (
	SourceCLI    = "cli"
	SourceSystem = "system"
)

// Logger is the audit logging interface. Log is fire-and-forget.
type Logger interface {
	Log(ctx context.Context, event Event)
	Close() error
}

// NopLogger is a no-op audit logger for testing and when audit is disabled.
type NopLogger struct{}

func (NopLogger) Log(context.Context, Event) {}
func (NopLogger) Close() error               { return nil }

// FromActor fills the tenant and user of an event from the acting identity.
func FromActor(actor *auth.Identity, e Event) Event {
	if actor == nil {
		return e
	}
	uid := actor.UserID
	e.UserID = &uid
	if e.TenantID == nil && actor.TenantID != nil {
		tid := *actor.TenantID
		e.TenantID = &tid
	}
	return e
}
