// Package share grants foreign tenants access to individual records and
// copies records across tenants.
package share

import (
	"errors"
	"fmt"
	"time"

	"github.com/valinor-ai/tenantscope/internal/datascope"
)

var (
	ErrUnsupportedResourceType = errors.New("unsupported resource type")
	ErrNotFound                = errors.New("no source records found")
	ErrInvalidTargetTenant     = errors.New("invalid target tenant")
	ErrGrantNotFound           = errors.New("share grant not found")
	ErrInvalidShareType        = errors.New("invalid share type")
	ErrInvalidResourceType     = errors.New("invalid resource type")
)

// ShareType is the permission a grant conveys.
type ShareType int

const (
	View        ShareType = 1
	ViewAndEdit ShareType = 2
)

func (t ShareType) Valid() bool { return t == View || t == ViewAndEdit }

func (t ShareType) String() string {
	switch t {
	case View:
		return "view"
	case ViewAndEdit:
		return "view_and_edit"
	default:
		return fmt.Sprintf("share_type(%d)", int(t))
	}
}

// ParseShareType accepts "view", "view_and_edit", "1" or "2".
func ParseShareType(s string) (ShareType, error) {
	switch s {
	case "view", "1":
		return View, nil
	case "view_and_edit", "edit", "2":
		return ViewAndEdit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidShareType, s)
	}
}

// Status is the lifecycle state of a grant. Revocation is one-way.
type Status string

const (
	StatusActive  Status = "0"
	StatusRevoked Status = "1"
)

// Grant makes one record visible to a foreign tenant.
type Grant struct {
	ID             int64      `json:"id"`
	UUID           string     `json:"uuid"`
	ResourceType   string     `json:"resource_type"`
	ResourceID     int64      `json:"resource_id"`
	TargetTenantID int64      `json:"target_tenant_id"`
	ShareType      ShareType  `json:"share_type"`
	Status         Status     `json:"status"`
	ExpireTime     *time.Time `json:"expire_time,omitempty"`
	Remark         string     `json:"remark,omitempty"`
	CreatedID      *int64     `json:"created_id,omitempty"`
	UpdatedID      *int64     `json:"updated_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Effective reports whether g is active and not expired at now. A grant
// expiring exactly at now is expired.
func (g Grant) Effective(now time.Time) bool {
	if g.Status != StatusActive {
		return false
	}
	return g.ExpireTime == nil || g.ExpireTime.After(now)
}

// EligibleShareTypes lists the share types that permit op. Deletion is
// never granted through sharing.
func EligibleShareTypes(op datascope.Operation) []ShareType {
	switch op {
	case datascope.OpRead:
		return []ShareType{View, ViewAndEdit}
	case datascope.OpUpdate:
		return []ShareType{ViewAndEdit}
	default:
		return nil
	}
}
