package tenant

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrRoleNotFound     = errors.New("role not found")
	ErrRoleNameEmpty    = errors.New("role name is required")
	ErrRoleDuplicate    = errors.New("role name already exists in tenant")
	ErrInvalidDataScope = errors.New("invalid data scope")
)

// DataScope is the breadth of records a role grants visibility into.
type DataScope int

const (
	ScopeSelf            DataScope = 1
	ScopeDept            DataScope = 2
	ScopeDeptAndChildren DataScope = 3
	ScopeTenant          DataScope = 4
	ScopeAll             DataScope = 5
	ScopeCustom          DataScope = 6
)

var dataScopeNames = map[DataScope]string{
	ScopeSelf:            "self",
	ScopeDept:            "dept",
	ScopeDeptAndChildren: "dept_and_children",
	ScopeTenant:          "tenant",
	ScopeAll:             "all",
	ScopeCustom:          "custom",
}

func (s DataScope) String() string {
	if name, ok := dataScopeNames[s]; ok {
		return name
	}
	return "unknown(" + strconv.Itoa(int(s)) + ")"
}

// Valid reports whether s is one of the six defined scopes.
func (s DataScope) Valid() bool {
	_, ok := dataScopeNames[s]
	return ok
}

// ParseDataScope accepts either the scope name ("dept_and_children") or
// its numeric code ("3").
func ParseDataScope(raw string) (DataScope, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(raw); err == nil {
		if s := DataScope(n); s.Valid() {
			return s, nil
		}
		return 0, fmt.Errorf("%w: %d", ErrInvalidDataScope, n)
	}
	for s, name := range dataScopeNames {
		if name == raw {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDataScope, raw)
}

// Role is a named data scope within a tenant. DepartmentIDs only carries
// meaning for ScopeCustom.
type Role struct {
	ID            int64     `json:"id"`
	TenantID      *int64    `json:"tenant_id,omitempty"`
	Name          string    `json:"name"`
	DataScope     DataScope `json:"data_scope"`
	DepartmentIDs []int64   `json:"department_ids,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
