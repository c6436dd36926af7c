package roles

import (
	"fmt"
	"strings"
)

// Role is one of a fixed set of named roles ordered by hierarchy weight.
type Role string

const (
	RoleNone       Role = ""
	RoleViewer     Role = "viewer"
	RoleEditor     Role = "editor"
	RoleOperator   Role = "operator"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// weights maps every valid role to exactly one hierarchy weight.
// Comparisons go through Weight, never through identity.
var weights = map[Role]int{
	RoleViewer:     10,
	RoleEditor:     20,
	RoleOperator:   30,
	RoleManager:    40,
	RoleAdmin:      50,
	RoleSuperadmin: 60,
}

// Parse validates a raw role string.
func Parse(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := weights[role]; !ok {
		return RoleNone, fmt.Errorf("roles: unknown role %q", raw)
	}
	return role, nil
}

// Valid reports whether the role belongs to the fixed set.
func (r Role) Valid() bool {
	_, ok := weights[r]
	return ok
}

// Weight returns the hierarchy weight, 0 for unknown roles.
func (r Role) Weight() int {
	return weights[r]
}

// AtLeast reports whether the role ranks at or above other.
func (r Role) AtLeast(other Role) bool {
	if !r.Valid() || !other.Valid() {
		return false
	}
	return r.Weight() >= other.Weight()
}

// Allow reports whether effective satisfies at least the weakest of the
// acceptable roles. An unresolved role never passes: closed by default.
func Allow(effective Role, acceptable ...Role) bool {
	if !effective.Valid() || len(acceptable) == 0 {
		return false
	}
	min := 0
	for _, role := range acceptable {
		if !role.Valid() {
			continue
		}
		if min == 0 || role.Weight() < min {
			min = role.Weight()
		}
	}
	if min == 0 {
		return false
	}
	return effective.Weight() >= min
}

// All lists every valid role in ascending hierarchy order.
func All() []Role {
	return []Role{RoleViewer, RoleEditor, RoleOperator, RoleManager, RoleAdmin, RoleSuperadmin}
}
