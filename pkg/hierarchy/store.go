package hierarchy

import (
	"context"
	"database/sql"
	"fmt"
)

// Store handles persistence of the resource hierarchy
type Store struct {
	db *sql.DB
}

// NewStore creates a new hierarchy store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreatePartner creates a new implementing partner. Names are unique
// across partners.
func (s *Store) CreatePartner(ctx context.Context, name string) (*ImplementingPartner, error) {
	exists, err := s.nameTaken(ctx, "implementing_partners", name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: implementing partner %q", ErrConflict, name)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO implementing_partners (name) VALUES ($1) RETURNING id`, name,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create implementing partner: %w", err)
	}

	return &ImplementingPartner{ID: id, Name: name, Path: PartnerPath(id)}, nil
}

// GetPartner retrieves an implementing partner by ID
func (s *Store) GetPartner(ctx context.Context, id int64) (*ImplementingPartner, error) {
	query := fmt.Sprintf(
		`SELECT p.id, p.name, %s FROM implementing_partners p WHERE p.id = $1`,
		PartnerPathSQL("p"),
	)

	var p ImplementingPartner
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &p.Path)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: implementing partner %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get implementing partner: %w", err)
	}
	return &p, nil
}

// ListPartners lists all implementing partners ordered by name
func (s *Store) ListPartners(ctx context.Context) ([]ImplementingPartner, error) {
	query := fmt.Sprintf(
		`SELECT p.id, p.name, %s FROM implementing_partners p ORDER BY p.name ASC`,
		PartnerPathSQL("p"),
	)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list implementing partners: %w", err)
	}
	defer rows.Close()

	var partners []ImplementingPartner
	for rows.Next() {
		var p ImplementingPartner
		if err := rows.Scan(&p.ID, &p.Name, &p.Path); err != nil {
			return nil, fmt.Errorf("failed to scan implementing partner: %w", err)
		}
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

// UpdatePartner renames an implementing partner
func (s *Store) UpdatePartner(ctx context.Context, id int64, name string) (*ImplementingPartner, error) {
	if _, err := s.GetPartner(ctx, id); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE implementing_partners SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update implementing partner: %w", err)
	}
	return &ImplementingPartner{ID: id, Name: name, Path: PartnerPath(id)}, nil
}

// DeletePartner deletes an implementing partner. Without cascade the
// delete is refused while communities still reference the partner.
func (s *Store) DeletePartner(ctx context.Context, id int64, cascade bool) error {
	if _, err := s.GetPartner(ctx, id); err != nil {
		return err
	}

	var communities int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM communities WHERE implementing_partner_id = $1`, id,
	).Scan(&communities)
	if err != nil {
		return fmt.Errorf("failed to count communities: %w", err)
	}
	if communities > 0 && !cascade {
		return fmt.Errorf("%w: implementing partner %d has communities", ErrHasChildren, id)
	}

	if cascade {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id FROM communities WHERE implementing_partner_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to list communities: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var cid int64
			if err := rows.Scan(&cid); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, cid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, cid := range ids {
			if err := s.DeleteCommunity(ctx, cid, true); err != nil {
				return err
			}
		}
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM implementing_partners WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete implementing partner: %w", err)
	}
	return nil
}

// CreateCommunity creates a new community under an implementing partner.
// Names are unique across communities.
func (s *Store) CreateCommunity(ctx context.Context, partnerID int64, name string) (*Community, error) {
	if _, err := s.GetPartner(ctx, partnerID); err != nil {
		return nil, err
	}

	exists, err := s.nameTaken(ctx, "communities", name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: community %q", ErrConflict, name)
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO communities (name, implementing_partner_id) VALUES ($1, $2) RETURNING id`,
		name, partnerID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create community: %w", err)
	}

	return &Community{
		ID:                    id,
		Name:                  name,
		ImplementingPartnerID: partnerID,
		Path:                  CommunityPath(partnerID, id),
	}, nil
}

// GetCommunity retrieves a community by ID
func (s *Store) GetCommunity(ctx context.Context, id int64) (*Community, error) {
	query := fmt.Sprintf(
		`SELECT c.id, c.name, c.implementing_partner_id, %s
		 FROM communities c WHERE c.id = $1`,
		CommunityPathSQL("c"),
	)

	var c Community
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID, &c.Name, &c.ImplementingPartnerID, &c.Path)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: community %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get community: %w", err)
	}
	return &c, nil
}

// UpdateCommunity renames a community
func (s *Store) UpdateCommunity(ctx context.Context, id int64, name string) (*Community, error) {
	community, err := s.GetCommunity(ctx, id)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE communities SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update community: %w", err)
	}
	community.Name = name
	return community, nil
}

// DeleteCommunity deletes a community. Without cascade the delete is
// refused while teams still reference the community.
func (s *Store) DeleteCommunity(ctx context.Context, id int64, cascade bool) error {
	if _, err := s.GetCommunity(ctx, id); err != nil {
		return err
	}

	var teams int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM teams WHERE community_id = $1`, id).Scan(&teams)
	if err != nil {
		return fmt.Errorf("failed to count teams: %w", err)
	}
	if teams > 0 && !cascade {
		return fmt.Errorf("%w: community %d has teams", ErrHasChildren, id)
	}

	if cascade {
		rows, err := s.db.QueryContext(ctx, `SELECT id FROM teams WHERE community_id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to list teams: %w", err)
		}
		var ids []int64
		for rows.Next() {
			var tid int64
			if err := rows.Scan(&tid); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, tid)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}
		for _, tid := range ids {
			if err := s.DeleteTeam(ctx, tid, true); err != nil {
				return err
			}
		}
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM communities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete community: %w", err)
	}
	return nil
}

// CreateTeam creates a new team. The implementing partner is derived from
// the community, keeping the denormalized parent IDs consistent.
func (s *Store) CreateTeam(ctx context.Context, communityID int64, name string) (*Team, error) {
	community, err := s.GetCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO teams (name, community_id, implementing_partner_id, is_active)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		name, communityID, community.ImplementingPartnerID, true,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}

	return &Team{
		ID:                    id,
		Name:                  name,
		CommunityID:           communityID,
		ImplementingPartnerID: community.ImplementingPartnerID,
		IsActive:              true,
		Path:                  TeamPath(community.ImplementingPartnerID, communityID, id),
	}, nil
}

// GetTeam retrieves a team by ID
func (s *Store) GetTeam(ctx context.Context, id int64) (*Team, error) {
	query := fmt.Sprintf(
		`SELECT t.id, t.name, t.community_id, t.implementing_partner_id, t.is_active, %s
		 FROM teams t WHERE t.id = $1`,
		TeamPathSQL("t"),
	)

	var t Team
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&t.ID, &t.Name, &t.CommunityID, &t.ImplementingPartnerID, &t.IsActive, &t.Path)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: team %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return &t, nil
}

// UpdateTeam renames a team
func (s *Store) UpdateTeam(ctx context.Context, id int64, name string) (*Team, error) {
	team, err := s.GetTeam(ctx, id)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE teams SET name = $1 WHERE id = $2`, name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update team: %w", err)
	}
	team.Name = name
	return team, nil
}

// SetTeamActive marks a team active or inactive. Teams go inactive once
// they complete the final workshop of the program.
func (s *Store) SetTeamActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE teams SET is_active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update team status: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: team %d", ErrNotFound, id)
	}
	return nil
}

// DeleteTeam deletes a team. Without cascade the delete is refused while
// children are still registered on the team.
func (s *Store) DeleteTeam(ctx context.Context, id int64, cascade bool) error {
	if _, err := s.GetTeam(ctx, id); err != nil {
		return err
	}

	var children int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM children WHERE team_id = $1`, id).Scan(&children)
	if err != nil {
		return fmt.Errorf("failed to count children: %w", err)
	}
	if children > 0 && !cascade {
		return fmt.Errorf("%w: team %d has children", ErrHasChildren, id)
	}

	if cascade {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM attendances WHERE child_id IN (SELECT id FROM children WHERE team_id = $1)`, id); err != nil {
			return fmt.Errorf("failed to delete attendances: %w", err)
		}
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM attendances WHERE workshop_id IN (SELECT id FROM workshops WHERE team_id = $1)`, id); err != nil {
			return fmt.Errorf("failed to delete attendances: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM children WHERE team_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete children: %w", err)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM workshops WHERE team_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete workshops: %w", err)
		}
	}

	_, err = s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete team: %w", err)
	}
	return nil
}

// Node looks up a node at any level. Used by the authorization engine
// both for grant-time validation and for parent resolution during the
// upward traversal.
func (s *Store) Node(ctx context.Context, level Level, id int64) (*Node, error) {
	switch level {
	case LevelImplementingPartner:
		p, err := s.GetPartner(ctx, id)
		if err != nil {
			return nil, err
		}
		return p.Node(), nil
	case LevelCommunity:
		c, err := s.GetCommunity(ctx, id)
		if err != nil {
			return nil, err
		}
		return c.Node(), nil
	case LevelTeam:
		t, err := s.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		return t.Node(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadLevel, level)
	}
}

func (s *Store) nameTaken(ctx context.Context, table, name string) (bool, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE name = $1`, table)
	if err := s.db.QueryRowContext(ctx, query, name).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check name uniqueness: %w", err)
	}
	return count > 0, nil
}
