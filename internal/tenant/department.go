package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDepartmentNotFound  = errors.New("department not found")
	ErrDepartmentNameEmpty = errors.New("department name is required")
	ErrDepartmentCycle     = errors.New("department cannot be its own ancestor")
)

// Department is a node in a tenant's organizational tree. Root departments
// have no parent.
type Department struct {
	ID        int64     `json:"id"`
	TenantID  *int64    `json:"tenant_id,omitempty"`
	ParentID  *int64    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// IsRoot reports whether d has no parent.
func (d Department) IsRoot() bool { return d.ParentID == nil }

// BelongsTo reports whether d is owned by tenantID. A nil tenantID
// matches only departments without a tenant.
func (d Department) BelongsTo(tenantID *int64) bool {
	if d.TenantID == nil || tenantID == nil {
		return d.TenantID == nil && tenantID == nil
	}
	return *d.TenantID == *tenantID
}

// ValidateDepartmentName rejects blank names and names over 255 characters.
func ValidateDepartmentName(name string) error {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return ErrDepartmentNameEmpty
	case len(trimmed) > 255:
		return fmt.Errorf("%w: must not exceed 255 characters", ErrDepartmentNameEmpty)
	}
	return nil
}
