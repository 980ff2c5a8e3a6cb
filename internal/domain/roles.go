package domain

import "strings"

type Role string

const (
	// User is the default role for self-registered accounts.
	RoleUser Role = "user"
	// Guide leads tours.
	RoleGuide Role = "guide"
	// LeadGuide manages guides and can look up accounts.
	RoleLeadGuide Role = "lead-guide"
	// Admin can manage every account.
	RoleAdmin Role = "admin"
)

// Roles lists every known role in ascending privilege.
var Roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

func IsValidRole(r string) bool {
	for _, known := range Roles {
		if string(known) == r {
			return true
		}
	}
	return false
}

// ParseRole normalizes r and falls back to RoleUser when r is empty.
func ParseRole(r string) (Role, error) {
	r = strings.TrimSpace(strings.ToLower(r))
	if r == "" {
		return RoleUser, nil
	}
	if !IsValidRole(r) {
		return "", ErrInvalidRole(r)
	}
	return Role(r), nil
}
