package program

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/observability"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE implementing_partners (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE communities (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			implementing_partner_id INTEGER NOT NULL
		);

		CREATE TABLE teams (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			community_id INTEGER NOT NULL,
			implementing_partner_id INTEGER NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE children (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			age INTEGER,
			gender TEXT,
			team_id INTEGER NOT NULL
		);

		CREATE TABLE workshops (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			team_id INTEGER NOT NULL,
			date TEXT NOT NULL,
			workshop_number INTEGER NOT NULL,
			UNIQUE (team_id, workshop_number)
		);

		CREATE TABLE attendances (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workshop_id INTEGER NOT NULL,
			child_id INTEGER NOT NULL,
			attendance TEXT NOT NULL
		);

		INSERT INTO implementing_partners (id, name) VALUES (1, 'Little Lions');
		INSERT INTO communities (id, name, implementing_partner_id) VALUES (1, 'Kayamandi', 1);
		INSERT INTO teams (id, name, community_id, implementing_partner_id) VALUES (1, 'Team Alpha', 1, 1);
	`)
	require.NoError(t, err)
	return db
}

func newTestService(t *testing.T) (*Service, *hierarchy.Store, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	teams := hierarchy.NewStore(db)
	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	return NewService(NewStore(db), teams, log), teams, db
}

func addChild(t *testing.T, s *Service, first, last string, teamID int64) *Child {
	t.Helper()
	child := &Child{FirstName: first, LastName: last, TeamID: teamID}
	require.NoError(t, s.CreateChild(context.Background(), child))
	return child
}

func fullAttendance(children []*Child, value Attendance) []ChildAttendance {
	out := make([]ChildAttendance, 0, len(children))
	for _, c := range children {
		out = append(out, ChildAttendance{ChildID: c.ID, Attendance: value})
	}
	return out
}

func TestCreateChild(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	age := int64(8)
	child := &Child{FirstName: "Lwazi", LastName: "Ndlovu", Age: &age, TeamID: 1}
	require.NoError(t, s.CreateChild(ctx, child))
	assert.NotZero(t, child.ID)

	got, err := s.GetChild(ctx, child.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lwazi", got.FirstName)
	require.NotNil(t, got.Age)
	assert.Equal(t, int64(8), *got.Age)
}

func TestCreateChildUnknownTeam(t *testing.T) {
	s, _, _ := newTestService(t)

	err := s.CreateChild(context.Background(), &Child{FirstName: "Lwazi", LastName: "Ndlovu", TeamID: 42})
	assert.ErrorIs(t, err, hierarchy.ErrNotFound)
}

func TestCreateChildDuplicateName(t *testing.T) {
	s, _, _ := newTestService(t)
	addChild(t, s, "Lwazi", "Ndlovu", 1)

	err := s.CreateChild(context.Background(), &Child{FirstName: "Lwazi", LastName: "Ndlovu", TeamID: 1})
	assert.ErrorIs(t, err, ErrChildExists)
}

func TestDeleteChildAttendanceGuard(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	child := addChild(t, s, "Lwazi", "Ndlovu", 1)
	_, err := s.CreateWorkshop(ctx, 1, "2026-03-01", 1, fullAttendance([]*Child{child}, AttendancePresent))
	require.NoError(t, err)

	err = s.DeleteChild(ctx, child.ID, false)
	assert.ErrorIs(t, err, ErrChildHasAttendance)

	require.NoError(t, s.DeleteChild(ctx, child.ID, true))
	_, err = s.GetChild(ctx, child.ID)
	assert.ErrorIs(t, err, ErrChildNotFound)
}

func TestCreateWorkshopSequence(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	child := addChild(t, s, "Lwazi", "Ndlovu", 1)
	attendance := fullAttendance([]*Child{child}, AttendancePresent)

	// The first workshop must be number one.
	_, err := s.CreateWorkshop(ctx, 1, "2026-03-01", 2, attendance)
	assert.ErrorIs(t, err, ErrWorkshopNumber)

	w, err := s.CreateWorkshop(ctx, 1, "2026-03-01", 1, attendance)
	require.NoError(t, err)
	assert.Equal(t, 1, w.WorkshopNumber)

	// Repeating a completed number is a conflict, skipping ahead is a
	// sequence error.
	_, err = s.CreateWorkshop(ctx, 1, "2026-03-08", 1, attendance)
	assert.ErrorIs(t, err, ErrWorkshopExists)
	_, err = s.CreateWorkshop(ctx, 1, "2026-03-08", 3, attendance)
	assert.ErrorIs(t, err, ErrWorkshopNumber)

	_, err = s.CreateWorkshop(ctx, 1, "2026-03-08", 2, attendance)
	require.NoError(t, err)

	progress, err := s.Progress(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Current)
}

func TestCreateWorkshopAttendanceValidation(t *testing.T) {
	s, _, db := newTestService(t)
	ctx := context.Background()

	c1 := addChild(t, s, "Lwazi", "Ndlovu", 1)
	c2 := addChild(t, s, "Thandi", "Mokoena", 1)

	// A child outside the team rejects the payload.
	_, err := db.Exec(`INSERT INTO teams (id, name, community_id, implementing_partner_id) VALUES (2, 'Team Beta', 1, 1)`)
	require.NoError(t, err)
	outsider := addChild(t, s, "Sipho", "Dlamini", 2)

	_, err = s.CreateWorkshop(ctx, 1, "2026-03-01", 1, []ChildAttendance{
		{ChildID: c1.ID, Attendance: AttendancePresent},
		{ChildID: c2.ID, Attendance: AttendancePresent},
		{ChildID: outsider.ID, Attendance: AttendancePresent},
	})
	assert.ErrorIs(t, err, ErrChildNotInTeam)

	// A missing team child rejects the payload.
	_, err = s.CreateWorkshop(ctx, 1, "2026-03-01", 1, []ChildAttendance{
		{ChildID: c1.ID, Attendance: AttendancePresent},
	})
	assert.ErrorIs(t, err, ErrIncompleteAttendance)

	// Unknown attendance values are rejected before any write.
	_, err = s.CreateWorkshop(ctx, 1, "2026-03-01", 1, []ChildAttendance{
		{ChildID: c1.ID, Attendance: "late"},
		{ChildID: c2.ID, Attendance: AttendancePresent},
	})
	assert.ErrorIs(t, err, ErrBadAttendance)

	w, err := s.CreateWorkshop(ctx, 1, "2026-03-01", 1, []ChildAttendance{
		{ChildID: c1.ID, Attendance: AttendancePresent},
		{ChildID: c2.ID, Attendance: AttendanceAbsent},
	})
	require.NoError(t, err)

	report, err := s.GetWorkshopReport(ctx, 1, w.WorkshopNumber)
	require.NoError(t, err)
	assert.Len(t, report.Attendance, 2)
}

func TestFinalWorkshopRetiresTeam(t *testing.T) {
	s, teams, _ := newTestService(t)
	ctx := context.Background()
	child := addChild(t, s, "Lwazi", "Ndlovu", 1)
	attendance := fullAttendance([]*Child{child}, AttendancePresent)

	for n := 1; n <= FinalWorkshopNumber; n++ {
		_, err := s.CreateWorkshop(ctx, 1, fmt.Sprintf("2026-03-%02d", n), n, attendance)
		require.NoError(t, err, "workshop %d", n)

		team, err := teams.GetTeam(ctx, 1)
		require.NoError(t, err)
		if n < FinalWorkshopNumber {
			assert.True(t, team.IsActive, "team stays active through workshop %d", n)
		} else {
			assert.False(t, team.IsActive, "final workshop retires the team")
		}
	}
}

func TestProgressStartsAtZero(t *testing.T) {
	s, _, _ := newTestService(t)

	progress, err := s.Progress(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Current)
}

func TestListChildrenOrdering(t *testing.T) {
	s, _, _ := newTestService(t)
	addChild(t, s, "Thandi", "Mokoena", 1)
	addChild(t, s, "Lwazi", "Ndlovu", 1)
	addChild(t, s, "Anele", "Ndlovu", 1)

	children, err := s.ListChildren(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, "Mokoena", children[0].LastName)
	assert.Equal(t, "Anele", children[1].FirstName)
	assert.Equal(t, "Lwazi", children[2].FirstName)
}

func TestGetWorkshopReportNotFound(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.GetWorkshopReport(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrWorkshopNotFound)
}
