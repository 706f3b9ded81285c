package program

import (
	"context"
	"database/sql"
	"fmt"
)

// Store handles persistence of children, workshops and attendance
type Store struct {
	db *sql.DB
}

// NewStore creates a new program store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateChild adds a child to a team
func (s *Store) CreateChild(ctx context.Context, child *Child) error {
	var age sql.NullInt64
	if child.Age != nil {
		age = sql.NullInt64{Int64: *child.Age, Valid: true}
	}
	var gender sql.NullString
	if child.Gender != nil {
		gender = sql.NullString{String: *child.Gender, Valid: true}
	}

	err := s.db.QueryRowContext(ctx,
		`INSERT INTO children (first_name, last_name, age, gender, team_id)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		child.FirstName, child.LastName, age, gender, child.TeamID,
	).Scan(&child.ID)
	if err != nil {
		return fmt.Errorf("failed to create child: %w", err)
	}
	return nil
}

// GetChild retrieves a child by ID
func (s *Store) GetChild(ctx context.Context, id int64) (*Child, error) {
	var (
		child  Child
		age    sql.NullInt64
		gender sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, age, gender, team_id FROM children WHERE id = $1`, id,
	).Scan(&child.ID, &child.FirstName, &child.LastName, &age, &gender, &child.TeamID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: child %d", ErrChildNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get child: %w", err)
	}
	if age.Valid {
		child.Age = &age.Int64
	}
	if gender.Valid {
		child.Gender = &gender.String
	}
	return &child, nil
}

// ListChildren lists children, optionally restricted to one team,
// ordered by last then first name.
func (s *Store) ListChildren(ctx context.Context, teamID int64) ([]Child, error) {
	query := `SELECT id, first_name, last_name, age, gender, team_id FROM children`
	var args []interface{}
	if teamID != 0 {
		query += ` WHERE team_id = $1`
		args = append(args, teamID)
	}
	query += ` ORDER BY last_name ASC, first_name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list children: %w", err)
	}
	defer rows.Close()

	var children []Child
	for rows.Next() {
		var (
			child  Child
			age    sql.NullInt64
			gender sql.NullString
		)
		if err := rows.Scan(&child.ID, &child.FirstName, &child.LastName, &age, &gender, &child.TeamID); err != nil {
			return nil, fmt.Errorf("failed to scan child: %w", err)
		}
		if age.Valid {
			child.Age = &age.Int64
		}
		if gender.Valid {
			child.Gender = &gender.String
		}
		children = append(children, child)
	}
	return children, rows.Err()
}

// UpdateChild updates a child's fields
func (s *Store) UpdateChild(ctx context.Context, child *Child) error {
	var age sql.NullInt64
	if child.Age != nil {
		age = sql.NullInt64{Int64: *child.Age, Valid: true}
	}
	var gender sql.NullString
	if child.Gender != nil {
		gender = sql.NullString{String: *child.Gender, Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE children SET first_name = $1, last_name = $2, age = $3, gender = $4 WHERE id = $5`,
		child.FirstName, child.LastName, age, gender, child.ID)
	if err != nil {
		return fmt.Errorf("failed to update child: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: child %d", ErrChildNotFound, child.ID)
	}
	return nil
}

// DeleteChild removes a child. Without cascade the delete is refused
// while attendance rows reference the child.
func (s *Store) DeleteChild(ctx context.Context, id int64, cascade bool) error {
	if _, err := s.GetChild(ctx, id); err != nil {
		return err
	}

	var attendances int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attendances WHERE child_id = $1`, id,
	).Scan(&attendances)
	if err != nil {
		return fmt.Errorf("failed to count attendances: %w", err)
	}
	if attendances > 0 {
		if !cascade {
			return fmt.Errorf("%w: child %d", ErrChildHasAttendance, id)
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM attendances WHERE child_id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete attendances: %w", err)
		}
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM children WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete child: %w", err)
	}
	return nil
}

// ChildNameTaken reports whether the team already has a child with the
// exact first and last name.
func (s *Store) ChildNameTaken(ctx context.Context, teamID int64, firstName, lastName string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM children WHERE team_id = $1 AND first_name = $2 AND last_name = $3`,
		teamID, firstName, lastName,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check child name: %w", err)
	}
	return count > 0, nil
}

// ListWorkshops lists a team's workshops in program order.
func (s *Store) ListWorkshops(ctx context.Context, teamID int64) ([]Workshop, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, team_id, date, workshop_number FROM workshops
		 WHERE team_id = $1 ORDER BY workshop_number ASC`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workshops: %w", err)
	}
	defer rows.Close()

	var workshops []Workshop
	for rows.Next() {
		var w Workshop
		if err := rows.Scan(&w.ID, &w.TeamID, &w.Date, &w.WorkshopNumber); err != nil {
			return nil, fmt.Errorf("failed to scan workshop: %w", err)
		}
		workshops = append(workshops, w)
	}
	return workshops, rows.Err()
}

// GetWorkshopReport returns a workshop of a team by number, with its
// attendance rows.
func (s *Store) GetWorkshopReport(ctx context.Context, teamID int64, workshopNumber int) (*WorkshopReport, error) {
	var w Workshop
	err := s.db.QueryRowContext(ctx,
		`SELECT id, team_id, date, workshop_number FROM workshops
		 WHERE team_id = $1 AND workshop_number = $2`, teamID, workshopNumber,
	).Scan(&w.ID, &w.TeamID, &w.Date, &w.WorkshopNumber)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: workshop %d of team %d", ErrWorkshopNotFound, workshopNumber, teamID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workshop: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT child_id, attendance FROM attendances WHERE workshop_id = $1 ORDER BY child_id ASC`, w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendances: %w", err)
	}
	defer rows.Close()

	report := &WorkshopReport{Workshop: w}
	for rows.Next() {
		var ca ChildAttendance
		if err := rows.Scan(&ca.ChildID, &ca.Attendance); err != nil {
			return nil, fmt.Errorf("failed to scan attendance: %w", err)
		}
		report.Attendance = append(report.Attendance, ca)
	}
	return report, rows.Err()
}

// CreateWorkshop inserts a workshop and its attendance rows in one
// transaction. Validation happens in the service; the store only keeps
// the workshop and its attendance atomic.
func (s *Store) CreateWorkshop(ctx context.Context, workshop *Workshop, attendance []ChildAttendance) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx,
		`INSERT INTO workshops (team_id, date, workshop_number) VALUES ($1, $2, $3) RETURNING id`,
		workshop.TeamID, workshop.Date, workshop.WorkshopNumber,
	).Scan(&workshop.ID)
	if err != nil {
		return fmt.Errorf("failed to create workshop: %w", err)
	}

	for _, ca := range attendance {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO attendances (workshop_id, child_id, attendance) VALUES ($1, $2, $3)`,
			workshop.ID, ca.ChildID, string(ca.Attendance))
		if err != nil {
			return fmt.Errorf("failed to create attendance for child %d: %w", ca.ChildID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit workshop: %w", err)
	}
	return nil
}

// WorkshopExists reports whether the team already held the numbered
// workshop.
func (s *Store) WorkshopExists(ctx context.Context, teamID int64, workshopNumber int) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workshops WHERE team_id = $1 AND workshop_number = $2`,
		teamID, workshopNumber,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check workshop: %w", err)
	}
	return count > 0, nil
}

// CurrentWorkshop returns the team's last completed workshop number,
// zero when the team has not started.
func (s *Store) CurrentWorkshop(ctx context.Context, teamID int64) (int, error) {
	var current sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(workshop_number) FROM workshops WHERE team_id = $1`, teamID,
	).Scan(&current)
	if err != nil {
		return 0, fmt.Errorf("failed to get current workshop: %w", err)
	}
	return int(current.Int64), nil
}
