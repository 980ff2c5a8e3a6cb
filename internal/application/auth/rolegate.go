package auth

import (
	"sort"
	"strings"

	"github.com/baechuer/natours-auth/internal/domain"
)

// RoleSet is the set of roles allowed through a route.
type RoleSet map[domain.Role]struct{}

func AllowRoles(roles ...domain.Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

func (s RoleSet) Contains(r domain.Role) bool {
	_, ok := s[r]
	return ok
}

func (s RoleSet) String() string {
	out := make([]string, 0, len(s))
	for r := range s {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

// Authorize admits id only when its role is in allowed.
func Authorize(id Identity, allowed RoleSet) error {
	if allowed.Contains(id.Role) {
		return nil
	}
	return domain.ErrForbidden()
}
