package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/observability"
)

// Service owns the grant/revoke/list lifecycle of scoped roles. The local
// store is written first and is the source of truth; the role name is
// mirrored to the identity provider best-effort, so a mirror failure is
// logged and counted but never rolls back the local write. The reconciler
// repairs divergence later.
type Service struct {
	store   *Store
	nodes   HierarchyReader
	idp     idp.Client
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewService creates a role service. metrics may be nil.
func NewService(store *Store, nodes HierarchyReader, client idp.Client, log *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{store: store, nodes: nodes, idp: client, log: log, metrics: metrics}
}

// Grant assigns a role to a user at one node of the hierarchy.
//
// At Implementing Partner level only the default partner is accepted;
// the deployment is single-tenant and partner-level grants for any other
// ID are refused even when the partner row exists.
func (s *Service) Grant(ctx context.Context, userID, roleName, levelName string, resourceID int64) (*Assignment, error) {
	role, err := ParseRole(roleName)
	if err != nil {
		s.countGrant(roleName, "rejected")
		return nil, err
	}
	level, err := hierarchy.ParseLevel(levelName)
	if err != nil {
		s.countGrant(roleName, "rejected")
		return nil, err
	}
	if !role.AllowedAtLevel(level) {
		s.countGrant(roleName, "rejected")
		return nil, fmt.Errorf("%w: %s cannot be granted at %s", ErrRoleLevel, role, level)
	}

	if _, err := s.idp.GetUser(ctx, userID); err != nil {
		if errors.Is(err, idp.ErrNotFound) {
			s.countGrant(roleName, "rejected")
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if level == hierarchy.LevelImplementingPartner && resourceID != DefaultPartnerID {
		s.countGrant(roleName, "rejected")
		return nil, fmt.Errorf("%w: implementing partner grants accept only the default partner (ID %d)",
			ErrResourceNotFound, DefaultPartnerID)
	}
	node, err := s.nodes.Node(ctx, level, resourceID)
	if err != nil {
		if errors.Is(err, hierarchy.ErrNotFound) {
			s.countGrant(roleName, "rejected")
			return nil, fmt.Errorf("%w: %s %d", ErrResourceNotFound, level, resourceID)
		}
		return nil, fmt.Errorf("resolving resource: %w", err)
	}

	assignment := &Assignment{
		UserID:       userID,
		Role:         role,
		Level:        level,
		ResourcePath: node.Path,
	}
	if err := s.store.Create(ctx, assignment); err != nil {
		if errors.Is(err, ErrRoleAlreadyExists) {
			s.countGrant(roleName, "duplicate")
		}
		return nil, err
	}
	s.countGrant(roleName, "granted")

	// The IdP carries one unscoped copy of each role name, so only the
	// user's first assignment of this name needs a mirror call.
	existing, err := s.store.Find(ctx, Filter{UserID: userID, Role: role})
	if err != nil {
		s.mirrorFailed("add", userID, role, err)
		return assignment, nil
	}
	if len(existing) == 1 {
		if err := s.idp.AddRoleName(ctx, userID, string(role)); err != nil {
			s.mirrorFailed("add", userID, role, err)
		}
	}
	return assignment, nil
}

// Revoke removes one assignment of the user by its own ID.
func (s *Service) Revoke(ctx context.Context, userID string, assignmentID int64) error {
	if _, err := s.idp.GetUser(ctx, userID); err != nil {
		if errors.Is(err, idp.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return fmt.Errorf("looking up user: %w", err)
	}

	assignment, err := s.store.Get(ctx, assignmentID)
	if err != nil {
		return err
	}
	if assignment.UserID != userID {
		return fmt.Errorf("%w: assignment %d", ErrRoleNotFoundForUser, assignmentID)
	}

	if err := s.store.Delete(ctx, userID, assignmentID); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.RoleRevokesTotal.WithLabelValues(string(assignment.Role), "revoked").Inc()
	}

	// Drop the mirrored role name only when the last assignment of this
	// name is gone; other scopes may still carry it.
	remaining, err := s.store.Find(ctx, Filter{UserID: userID, Role: assignment.Role})
	if err != nil {
		s.mirrorFailed("remove", userID, assignment.Role, err)
		return nil
	}
	if len(remaining) == 0 {
		if err := s.idp.RemoveRoleName(ctx, userID, string(assignment.Role)); err != nil {
			s.mirrorFailed("remove", userID, assignment.Role, err)
		}
	}
	return nil
}

// List returns all assignments of an existing user.
func (s *Service) List(ctx context.Context, userID string) ([]Assignment, error) {
	if _, err := s.idp.GetUser(ctx, userID); err != nil {
		if errors.Is(err, idp.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	return s.store.ListByUser(ctx, userID)
}

func (s *Service) countGrant(role, result string) {
	if s.metrics != nil {
		s.metrics.RoleGrantsTotal.WithLabelValues(role, result).Inc()
	}
}

func (s *Service) mirrorFailed(operation, userID string, role Role, err error) {
	s.log.WithError(err).WithFields(map[string]interface{}{
		"operation": operation,
		"user_id":   userID,
		"role":      string(role),
	}).Error("identity provider mirror failed, local store kept")
	if s.metrics != nil {
		s.metrics.IdPMirrorFailures.WithLabelValues(operation).Inc()
	}
}
