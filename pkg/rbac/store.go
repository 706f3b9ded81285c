package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/digital-lions/backend/pkg/hierarchy"
)

// Store handles persistence of scoped role assignments and the
// access-filtered hierarchy queries that join against them.
type Store struct {
	db *sql.DB
}

// NewStore creates a new assignment store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create persists a new assignment. An identical (user, role, level, path)
// tuple is rejected with ErrRoleAlreadyExists.
func (s *Store) Create(ctx context.Context, a *Assignment) error {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM roles WHERE user_id = $1 AND role = $2 AND level = $3 AND resource_path = $4`,
		a.UserID, string(a.Role), string(a.Level), a.ResourcePath,
	).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check for existing assignment: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%w: %s at %s %s", ErrRoleAlreadyExists, a.Role, a.Level, a.ResourcePath)
	}

	if a.GrantedAt.IsZero() {
		a.GrantedAt = time.Now().UTC()
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO roles (user_id, role, level, resource_path, granted_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.UserID, string(a.Role), string(a.Level), a.ResourcePath, a.GrantedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

// Get retrieves one assignment by ID
func (s *Store) Get(ctx context.Context, id int64) (*Assignment, error) {
	var a Assignment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, role, level, resource_path, granted_at FROM roles WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.Role, &a.Level, &a.ResourcePath, &a.GrantedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: assignment %d", ErrRoleNotFoundForUser, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// ListByUser returns all assignments of a user
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Assignment, error) {
	return s.Find(ctx, Filter{UserID: userID})
}

// Find returns assignments matching the filter, oldest grant first.
func (s *Store) Find(ctx context.Context, f Filter) ([]Assignment, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if f.UserID != "" {
		add("user_id", f.UserID)
	}
	if f.Role != "" {
		add("role", string(f.Role))
	}
	if f.Level != "" {
		add("level", string(f.Level))
	}
	if f.ResourcePath != "" {
		add("resource_path", f.ResourcePath)
	}

	query := `SELECT id, user_id, role, level, resource_path, granted_at FROM roles`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY granted_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find assignments: %w", err)
	}
	defer rows.Close()

	var assignments []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.Role, &a.Level, &a.ResourcePath, &a.GrantedAt); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// Delete removes one assignment of the user by its own ID. Role changes
// are delete plus re-grant; there is no update.
func (s *Store) Delete(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM roles WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete assignment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: assignment %d", ErrRoleNotFoundForUser, id)
	}
	return nil
}

// DeleteByUser removes every assignment a user holds. Used when the user
// account itself is deleted.
func (s *Store) DeleteByUser(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to delete assignments for user: %w", err)
	}
	return nil
}

// accessCond builds the bidirectional path-prefix join condition between a
// candidate's path expression and an assignment's resource_path. The
// candidate matches when either path is an ancestor of, or equal to, the
// other. This is wider than the point check on purpose: a role scoped to a
// team still lets its holder list the enclosing community.
func accessCond(pathExpr string) string {
	return fmt.Sprintf(
		`(r.resource_path LIKE %[1]s || '/%%' OR r.resource_path = %[1]s
		  OR %[1]s LIKE r.resource_path || '/%%')`, pathExpr)
}

// AccessiblePartners returns the implementing partners reachable by at
// least one of the user's assignments, ordered by name. A user with no
// assignments gets an empty list.
func (s *Store) AccessiblePartners(ctx context.Context, userID string) ([]hierarchy.ImplementingPartner, error) {
	pathExpr := hierarchy.PartnerPathSQL("p")
	query := fmt.Sprintf(
		`SELECT DISTINCT p.id, p.name, %s FROM implementing_partners p
		 JOIN roles r ON r.user_id = $1 AND %s
		 ORDER BY p.name ASC`,
		pathExpr, accessCond(pathExpr),
	)

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible partners: %w", err)
	}
	defer rows.Close()

	var partners []hierarchy.ImplementingPartner
	for rows.Next() {
		var p hierarchy.ImplementingPartner
		if err := rows.Scan(&p.ID, &p.Name, &p.Path); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// AccessibleCommunities returns the communities reachable by the user's
// assignments, ordered by name. A non-zero partnerID is ANDed in after
// the access filter.
func (s *Store) AccessibleCommunities(ctx context.Context, userID string, partnerID int64) ([]hierarchy.Community, error) {
	pathExpr := hierarchy.CommunityPathSQL("c")
	query := fmt.Sprintf(
		`SELECT DISTINCT c.id, c.name, c.implementing_partner_id, %s FROM communities c
		 JOIN roles r ON r.user_id = $1 AND %s`,
		pathExpr, accessCond(pathExpr),
	)
	args := []interface{}{userID}
	if partnerID != 0 {
		query += " WHERE c.implementing_partner_id = $2"
		args = append(args, partnerID)
	}
	query += " ORDER BY c.name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible communities: %w", err)
	}
	defer rows.Close()

	var communities []hierarchy.Community
	for rows.Next() {
		var c hierarchy.Community
		if err := rows.Scan(&c.ID, &c.Name, &c.ImplementingPartnerID, &c.Path); err != nil {
			return nil, fmt.Errorf("failed to scan community: %w", err)
		}
		communities = append(communities, c)
	}
	return communities, rows.Err()
}

// AccessibleTeams returns the teams reachable by the user's assignments,
// ordered by name. A non-zero communityID is ANDed in after the access
// filter.
func (s *Store) AccessibleTeams(ctx context.Context, userID string, communityID int64) ([]hierarchy.Team, error) {
	pathExpr := hierarchy.TeamPathSQL("t")
	query := fmt.Sprintf(
		`SELECT DISTINCT t.id, t.name, t.community_id, t.implementing_partner_id, t.is_active, %s FROM teams t
		 JOIN roles r ON r.user_id = $1 AND %s`,
		pathExpr, accessCond(pathExpr),
	)
	args := []interface{}{userID}
	if communityID != 0 {
		query += " WHERE t.community_id = $2"
		args = append(args, communityID)
	}
	query += " ORDER BY t.name ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible teams: %w", err)
	}
	defer rows.Close()

	var teams []hierarchy.Team
	for rows.Next() {
		var t hierarchy.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.CommunityID, &t.ImplementingPartnerID, &t.IsActive, &t.Path); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}
