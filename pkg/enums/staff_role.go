package enums

import "fmt"

// StaffRole gates register actions such as reconciliation acknowledgement.
type StaffRole string

const (
	StaffRoleCashier StaffRole = "cashier"
	StaffRoleManager StaffRole = "manager"
)

var validStaffRoles = []StaffRole{
	StaffRoleCashier,
	StaffRoleManager,
}

// IsValid reports whether the value is a known StaffRole.
func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStaffRole converts raw input into a StaffRole.
func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
