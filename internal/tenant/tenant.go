package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
	ErrCodeTaken      = errors.New("tenant code already in use")
	ErrInvalidCode    = errors.New("invalid tenant code")
	ErrTenantInUse    = errors.New("tenant still has users, departments or roles")
)

// Lifecycle values of Tenant.Status.
const (
	StatusNormal   = "0"
	StatusDisabled = "1"
)

// Tenant is the top-level isolation boundary.
type Tenant struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Usable reports whether records may be shared or copied into t.
func (t *Tenant) Usable() bool {
	return t.IsActive && t.Status != StatusDisabled
}

var codePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,31}$`)

// ValidateCode checks that a tenant code is 2-32 characters of letters,
// digits, underscores or hyphens, starting with a letter or digit.
func ValidateCode(code string) error {
	if !codePattern.MatchString(code) {
		return fmt.Errorf("%w: must be 2-32 letters, digits, '_' or '-', starting with a letter or digit", ErrInvalidCode)
	}
	return nil
}
