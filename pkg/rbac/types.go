package rbac

import (
	"fmt"
	"time"

	"github.com/digital-lions/backend/pkg/hierarchy"
)

// Role is an enumerated role name.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleCoach Role = "Coach"
)

// ParseRole validates a role name from an API payload.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleCoach:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// Permission is a fine-grained capability tag, resource:action.
type Permission string

const (
	PermChildrenRead     Permission = "children:read"
	PermChildrenWrite    Permission = "children:write"
	PermCommunitiesRead  Permission = "communities:read"
	PermCommunitiesWrite Permission = "communities:write"
	PermTeamsRead        Permission = "teams:read"
	PermTeamsWrite       Permission = "teams:write"
	PermUsersRead        Permission = "users:read"
	PermUsersWrite       Permission = "users:write"
	PermRolesRead        Permission = "roles:read"
	PermWorkshopsRead    Permission = "workshops:read"
	PermWorkshopsWrite   Permission = "workshops:write"
)

// RolePermissions is the fixed role to permission-set mapping. It is
// independent of the resource a role is scoped to.
var RolePermissions = map[Role][]Permission{
	RoleCoach: {
		PermChildrenRead,
		PermTeamsRead,
		PermCommunitiesRead,
		PermWorkshopsRead,
		PermWorkshopsWrite,
	},
	RoleAdmin: {
		PermChildrenRead,
		PermChildrenWrite,
		PermCommunitiesRead,
		PermCommunitiesWrite,
		PermTeamsRead,
		PermTeamsWrite,
		PermRolesRead,
		PermUsersRead,
		PermUsersWrite,
		PermWorkshopsRead,
		PermWorkshopsWrite,
	},
}

// RoleLevels lists the hierarchy levels each role may be granted at.
var RoleLevels = map[Role][]hierarchy.Level{
	RoleAdmin: {hierarchy.LevelImplementingPartner},
	RoleCoach: {hierarchy.LevelCommunity, hierarchy.LevelTeam},
}

// HasPermission reports whether the role's permission set includes perm.
func (r Role) HasPermission(perm Permission) bool {
	for _, p := range RolePermissions[r] {
		if p == perm {
			return true
		}
	}
	return false
}

// AllowedAtLevel reports whether the role may be granted at the level.
func (r Role) AllowedAtLevel(level hierarchy.Level) bool {
	for _, l := range RoleLevels[r] {
		if l == level {
			return true
		}
	}
	return false
}

// DefaultPartnerID is the only implementing partner a role can currently
// be scoped to. The deployment is single-tenant; grants at partner level
// reject every other ID.
const DefaultPartnerID int64 = 1

// Assignment is a scoped role: a user holds a role name at one node of
// the hierarchy, identified by level and materialized path. The path is
// captured at grant time and treated as an opaque, comparable token.
type Assignment struct {
	ID           int64           `json:"id"`
	UserID       string          `json:"user_id"`
	Role         Role            `json:"role"`
	Level        hierarchy.Level `json:"level"`
	ResourcePath string          `json:"resource_path"`
	GrantedAt    time.Time       `json:"granted_at"`
}

// Filter narrows Find queries. Zero values mean "any".
type Filter struct {
	UserID       string
	Role         Role
	Level        hierarchy.Level
	ResourcePath string
}
