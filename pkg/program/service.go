package program

import (
	"context"
	"fmt"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/observability"
)

// TeamSource is the slice of the hierarchy the program needs: team
// lookups for validation and the active flag for program completion.
type TeamSource interface {
	GetTeam(ctx context.Context, id int64) (*hierarchy.Team, error)
	SetTeamActive(ctx context.Context, id int64, active bool) error
}

// Service validates and orchestrates program operations on top of the
// store.
type Service struct {
	store *Store
	teams TeamSource
	log   *observability.Logger
}

// NewService creates a program service
func NewService(store *Store, teams TeamSource, log *observability.Logger) *Service {
	return &Service{store: store, teams: teams, log: log}
}

// CreateChild adds a child to an existing team. First and last name
// must be unique within the team.
func (s *Service) CreateChild(ctx context.Context, child *Child) error {
	if _, err := s.teams.GetTeam(ctx, child.TeamID); err != nil {
		return err
	}
	taken, err := s.store.ChildNameTaken(ctx, child.TeamID, child.FirstName, child.LastName)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s %s in team %d", ErrChildExists, child.FirstName, child.LastName, child.TeamID)
	}
	if err := s.store.CreateChild(ctx, child); err != nil {
		return err
	}
	s.log.WithFields(map[string]interface{}{
		"child_id": child.ID,
		"team_id":  child.TeamID,
	}).Info("child created")
	return nil
}

// GetChild retrieves a child by ID
func (s *Service) GetChild(ctx context.Context, id int64) (*Child, error) {
	return s.store.GetChild(ctx, id)
}

// ListChildren lists children, optionally for one team.
func (s *Service) ListChildren(ctx context.Context, teamID int64) ([]Child, error) {
	return s.store.ListChildren(ctx, teamID)
}

// UpdateChild updates a child's personal fields. The team binding does
// not change through updates; children move teams by delete and
// re-create.
func (s *Service) UpdateChild(ctx context.Context, child *Child) error {
	current, err := s.store.GetChild(ctx, child.ID)
	if err != nil {
		return err
	}
	child.TeamID = current.TeamID
	return s.store.UpdateChild(ctx, child)
}

// DeleteChild removes a child, refusing while attendance rows exist
// unless cascade is set.
func (s *Service) DeleteChild(ctx context.Context, id int64, cascade bool) error {
	if err := s.store.DeleteChild(ctx, id, cascade); err != nil {
		return err
	}
	s.log.WithField("child_id", id).Info("child deleted")
	return nil
}

// CreateWorkshop records the team's next workshop with attendance for
// every child on the team.
//
// The workshop number must be the successor of the team's last workshop,
// starting at one. The attendance payload must cover the team's children
// exactly: an unknown child rejects the payload, as does a missing one.
// Completing the final workshop retires the team.
func (s *Service) CreateWorkshop(ctx context.Context, teamID int64, date string, workshopNumber int, attendance []ChildAttendance) (*Workshop, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}

	for _, ca := range attendance {
		if _, err := ParseAttendance(string(ca.Attendance)); err != nil {
			return nil, err
		}
	}

	exists, err := s.store.WorkshopExists(ctx, teamID, workshopNumber)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: workshop %d of team %d", ErrWorkshopExists, workshopNumber, teamID)
	}

	current, err := s.store.CurrentWorkshop(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if workshopNumber != current+1 {
		return nil, fmt.Errorf("%w: workshop %d for team %d, expected %d",
			ErrWorkshopNumber, workshopNumber, teamID, current+1)
	}

	children, err := s.store.ListChildren(ctx, teamID)
	if err != nil {
		return nil, err
	}
	teamChildren := make(map[int64]bool, len(children))
	for _, child := range children {
		teamChildren[child.ID] = true
	}
	payloadChildren := make(map[int64]bool, len(attendance))
	for _, ca := range attendance {
		if !teamChildren[ca.ChildID] {
			return nil, fmt.Errorf("%w: child %d is not in team %d", ErrChildNotInTeam, ca.ChildID, teamID)
		}
		payloadChildren[ca.ChildID] = true
	}
	for _, child := range children {
		if !payloadChildren[child.ID] {
			return nil, fmt.Errorf("%w: child %d of team %d missing", ErrIncompleteAttendance, child.ID, teamID)
		}
	}

	workshop := &Workshop{TeamID: teamID, Date: date, WorkshopNumber: workshopNumber}
	if err := s.store.CreateWorkshop(ctx, workshop, attendance); err != nil {
		return nil, err
	}

	if workshopNumber == FinalWorkshopNumber {
		if err := s.teams.SetTeamActive(ctx, teamID, false); err != nil {
			return nil, fmt.Errorf("failed to retire team %d: %w", teamID, err)
		}
		s.log.WithField("team_id", teamID).Info("team completed the program and is now inactive")
	}
	return workshop, nil
}

// ListWorkshops lists a team's workshops in program order.
func (s *Service) ListWorkshops(ctx context.Context, teamID int64) ([]Workshop, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.store.ListWorkshops(ctx, teamID)
}

// GetWorkshopReport returns one workshop of a team with its attendance.
func (s *Service) GetWorkshopReport(ctx context.Context, teamID int64, workshopNumber int) (*WorkshopReport, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	return s.store.GetWorkshopReport(ctx, teamID, workshopNumber)
}

// Progress reports where a team is in the program.
func (s *Service) Progress(ctx context.Context, teamID int64) (*Progress, error) {
	if _, err := s.teams.GetTeam(ctx, teamID); err != nil {
		return nil, err
	}
	current, err := s.store.CurrentWorkshop(ctx, teamID)
	if err != nil {
		return nil, err
	}
	return &Progress{Current: current}, nil
}
