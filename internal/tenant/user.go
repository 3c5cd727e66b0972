package tenant

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUsernameInvalid   = errors.New("invalid username")
	ErrUsernameDuplicate = errors.New("username already exists in tenant")
)

// User is an account that can act on records. Tenant and department
// affiliation are both optional.
type User struct {
	ID           int64     `json:"id"`
	TenantID     *int64    `json:"tenant_id,omitempty"`
	DepartmentID *int64    `json:"department_id,omitempty"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name,omitempty"`
	IsSuperuser  bool      `json:"is_superuser"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateUsername checks that a username is non-empty, at most 64
// characters and free of whitespace.
func ValidateUsername(username string) error {
	if username == "" {
		return fmt.Errorf("%w: username is required", ErrUsernameInvalid)
	}
	if len(username) > 64 {
		return fmt.Errorf("%w: must not exceed 64 characters", ErrUsernameInvalid)
	}
	if strings.ContainsAny(username, " \t\r\n") {
		return fmt.Errorf("%w: must not contain whitespace", ErrUsernameInvalid)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "duplicate key") || strings.Contains(err.Error(), "unique constraint")
}
