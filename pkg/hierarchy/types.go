package hierarchy

import (
	"errors"
	"fmt"
)

// Level identifies the tier of the hierarchy a node lives at.
type Level string

const (
	LevelImplementingPartner Level = "Implementing Partner"
	LevelCommunity           Level = "Community"
	LevelTeam                Level = "Team"
)

// ParentLevel returns the level one tier up, or false at the root.
func (l Level) ParentLevel() (Level, bool) {
	switch l {
	case LevelTeam:
		return LevelCommunity, true
	case LevelCommunity:
		return LevelImplementingPartner, true
	default:
		return "", false
	}
}

// ParseLevel validates a level name coming from an API payload.
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelImplementingPartner, LevelCommunity, LevelTeam:
		return Level(s), nil
	default:
		return "", fmt.Errorf("%w: unknown level %q", ErrBadLevel, s)
	}
}

// Package error kinds. Callers match them with errors.Is.
var (
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("resource already exists")
	ErrHasChildren = errors.New("resource has dependent records")
	ErrBadLevel    = errors.New("invalid hierarchy level")
)

// Node is the unit the authorization engine traverses. Parent resolution
// goes through the store by (ParentLevel, ParentID); the path string is
// treated as an opaque, comparable token and never reparsed.
type Node struct {
	ID          int64
	Name        string
	Level       Level
	Path        string
	ParentLevel Level
	ParentID    int64
}

// Root reports whether the node is at the top of the hierarchy.
func (n *Node) Root() bool {
	return n.ParentLevel == ""
}

// ImplementingPartner is an organization that runs the program in one or
// more communities. It is the root of the hierarchy.
type ImplementingPartner struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"resource_path"`
}

// Node returns the partner's position in the hierarchy.
func (p *ImplementingPartner) Node() *Node {
	return &Node{
		ID:    p.ID,
		Name:  p.Name,
		Level: LevelImplementingPartner,
		Path:  p.Path,
	}
}

// Community is a locality within an implementing partner.
type Community struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	ImplementingPartnerID int64  `json:"implementing_partner_id"`
	Path                  string `json:"resource_path"`
}

// Node returns the community's position in the hierarchy.
func (c *Community) Node() *Node {
	return &Node{
		ID:          c.ID,
		Name:        c.Name,
		Level:       LevelCommunity,
		Path:        c.Path,
		ParentLevel: LevelImplementingPartner,
		ParentID:    c.ImplementingPartnerID,
	}
}

// Team is a group of children following the workshop program together.
type Team struct {
	ID                    int64  `json:"id"`
	Name                  string `json:"name"`
	CommunityID           int64  `json:"community_id"`
	ImplementingPartnerID int64  `json:"implementing_partner_id"`
	IsActive              bool   `json:"is_active"`
	Path                  string `json:"resource_path"`
}

// Node returns the team's position in the hierarchy.
func (t *Team) Node() *Node {
	return &Node{
		ID:          t.ID,
		Name:        t.Name,
		Level:       LevelTeam,
		Path:        t.Path,
		ParentLevel: LevelCommunity,
		ParentID:    t.CommunityID,
	}
}
