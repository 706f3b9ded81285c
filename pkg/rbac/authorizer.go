package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/observability"
)

// AssignmentSource loads a user's scoped role assignments.
type AssignmentSource interface {
	ListByUser(ctx context.Context, userID string) ([]Assignment, error)
}

// HierarchyReader resolves hierarchy nodes for ancestor traversal.
type HierarchyReader interface {
	Node(ctx context.Context, level hierarchy.Level, id int64) (*hierarchy.Node, error)
}

// User is the authenticated caller as the engine sees it: the identity
// provider subject plus the assignments loaded for this request. The
// cache lives for one request only; there is no cross-request state.
type User struct {
	ID string

	assignments []Assignment
	loaded      bool
}

// NewUser wraps an identity-provider subject.
func NewUser(id string) *User {
	return &User{ID: id}
}

// Assignments returns the user's scoped roles, loading them on first use.
func (u *User) Assignments(ctx context.Context, src AssignmentSource) ([]Assignment, error) {
	if !u.loaded {
		assignments, err := src.ListByUser(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		u.assignments = assignments
		u.loaded = true
	}
	return u.assignments, nil
}

// Authorizer evaluates scoped role assignments against hierarchy nodes.
type Authorizer struct {
	assignments AssignmentSource
	nodes       HierarchyReader
	metrics     *observability.Metrics
}

// NewAuthorizer creates an authorizer. metrics may be nil.
func NewAuthorizer(assignments AssignmentSource, nodes HierarchyReader, metrics *observability.Metrics) *Authorizer {
	return &Authorizer{assignments: assignments, nodes: nodes, metrics: metrics}
}

// HasPermissionOnResource reports whether one of the user's assignments
// grants perm on the node or on one of its ancestors.
//
// The walk starts at the target and climbs toward the root, checking
// exact (level, path) equality against each assignment at every step.
// A role scoped to a descendant of the target never matches, so access
// does not flow downward-to-upward. A missing ancestor ends the walk as
// a plain non-match; denial is a false return, never an error.
func (a *Authorizer) HasPermissionOnResource(ctx context.Context, user *User, perm Permission, node *hierarchy.Node) (bool, error) {
	assignments, err := user.Assignments(ctx, a.assignments)
	if err != nil {
		return false, fmt.Errorf("loading assignments: %w", err)
	}

	// Only assignments whose role carries the permission participate.
	var matching []Assignment
	for _, assignment := range assignments {
		if assignment.Role.HasPermission(perm) {
			matching = append(matching, assignment)
		}
	}
	if len(matching) == 0 {
		a.observe(perm, "denied")
		return false, nil
	}

	current := node
	for current != nil {
		for _, assignment := range matching {
			if assignment.Level == current.Level && assignment.ResourcePath == current.Path {
				a.observe(perm, "granted")
				return true, nil
			}
		}
		if current.Root() {
			break
		}
		parent, err := a.nodes.Node(ctx, current.ParentLevel, current.ParentID)
		if errors.Is(err, hierarchy.ErrNotFound) {
			break
		}
		if err != nil {
			return false, fmt.Errorf("resolving ancestor %s %d: %w", current.ParentLevel, current.ParentID, err)
		}
		current = parent
	}

	a.observe(perm, "denied")
	return false, nil
}

// VerifyPermission checks perm against the union of the user's role
// permission sets, ignoring scope. Used for operations not bound to a
// node, such as listing users.
func (a *Authorizer) VerifyPermission(ctx context.Context, user *User, perm Permission) error {
	assignments, err := user.Assignments(ctx, a.assignments)
	if err != nil {
		return fmt.Errorf("loading assignments: %w", err)
	}
	for _, assignment := range assignments {
		if assignment.Role.HasPermission(perm) {
			a.observe(perm, "granted")
			return nil
		}
	}
	a.observe(perm, "denied")
	return fmt.Errorf("%w: %s", ErrInsufficientPermissions, perm)
}

func (a *Authorizer) observe(perm Permission, outcome string) {
	if a.metrics != nil {
		a.metrics.AuthzDecisionsTotal.WithLabelValues(string(perm), outcome).Inc()
	}
}
