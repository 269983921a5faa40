package authclient

import "strings"

// UserRole is the role carried by a profile
type UserRole string

// The backend only issues these two roles.
const (
	// RoleMember can read member content
	RoleMember UserRole = "member"
	// RoleAdmin manages content and members
	RoleAdmin UserRole = "admin"
)

var roleHierarchy = map[UserRole]int{
	RoleMember: 1,
	RoleAdmin:  2,
}

// IsValid checks if the role is one of the predefined roles
func (r UserRole) IsValid() bool {
	_, ok := roleHierarchy[r]
	return ok
}

// IsAtLeast checks if this role meets the minimum required level
func (r UserRole) IsAtLeast(minRole UserRole) bool {
	currentLevel, exists := roleHierarchy[r]
	if !exists {
		return false
	}

	minLevel, exists := roleHierarchy[minRole]
	if !exists {
		return false
	}

	return currentLevel >= minLevel
}

// ParseRole normalizes a backend role string
func ParseRole(roleStr string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}

// HasRole reports whether the profile carries exactly role.
func (u *User) HasRole(role UserRole) bool {
	if u == nil {
		return false
	}
	current, _ := ParseRole(string(u.Role))
	return current == role
}

// IsAdmin reports whether the profile can use the admin console.
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	role, _ := ParseRole(string(u.Role))
	return role.IsAtLeast(RoleAdmin)
}

// IsMember reports whether the profile can read member content. Admins are
// members too.
func (u *User) IsMember() bool {
	if u == nil {
		return false
	}
	role, _ := ParseRole(string(u.Role))
	return role.IsAtLeast(RoleMember)
}
