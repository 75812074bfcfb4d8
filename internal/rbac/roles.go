package rbac

import (
	"fmt"
	"strings"
)

// Role is one of the fixed department roles. The set is closed; there is no
// role administration surface.
type Role string

const (
	RoleSales       Role = "sales"
	RoleProcurement Role = "procurement"
	RoleLogistics   Role = "logistics"
	RoleCustoms     Role = "customs"
	RoleControl     Role = "control"
	RoleManagement  Role = "management"
	RoleAdmin       Role = "admin"
)

var allRoles = map[Role]struct{}{
	RoleSales: {}, RoleProcurement: {}, RoleLogistics: {}, RoleCustoms: {},
	RoleControl: {}, RoleManagement: {}, RoleAdmin: {},
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := allRoles[role]; !ok {
		return "", fmt.Errorf("rbac: unknown role %q", raw)
	}
	return role, nil
}

// ParseRoles filters a raw list down to known roles, dropping unknown and
// empty entries.
func ParseRoles(raw []string) []string {
	var roles []string
	seen := make(map[Role]struct{}, len(raw))
	for _, r := range raw {
		role, err := ParseRole(r)
		if err != nil {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		roles = append(roles, string(role))
	}
	return roles
}
