package policy

import "fmt"

// Role is the five-value role enum. Every visibility and permission decision
// in the service is keyed on a Role, usually the effective role of a View.
type Role string

const (
	RoleOwner      Role = "owner"
	RoleAdmin      Role = "admin"
	RoleInspector  Role = "inspector"
	RoleContractor Role = "contractor"
	RoleVerifier   Role = "verifier"
)

// AllRoles lists every valid role.
var AllRoles = []Role{RoleOwner, RoleAdmin, RoleInspector, RoleContractor, RoleVerifier}

func ParseRole(s string) (Role, error) {
	r := Role(s)
	for _, v := range AllRoles {
		if r == v {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", s)
}

func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// Unmasked reports whether a role sees sensitive fields raw. Only the owner
// does; every other role gets masked output.
func Unmasked(role Role) bool {
	return role == RoleOwner
}

// IsMinimalDataRole reports whether a role should not see certain sensitive
// columns at all (driver name, national ID), rather than seeing them masked.
func IsMinimalDataRole(role Role) bool {
	return role == RoleContractor || role == RoleVerifier
}

// IsStaff reports whether the role belongs to company personnel who operate
// the system, as opposed to external contractors/verifiers.
func IsStaff(role Role) bool {
	return role == RoleOwner || role == RoleAdmin || role == RoleInspector
}
