package program

import (
	"errors"
	"fmt"
)

// FinalWorkshopNumber is the last workshop of the default program. The
// program table is hardcoded to twelve workshops for now; completing the
// final one sets the team inactive.
const FinalWorkshopNumber = 12

// Child is a member of a team.
type Child struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Age       *int64  `json:"age,omitempty"`
	Gender    *string `json:"gender,omitempty"`
	TeamID    int64   `json:"team_id"`
}

// Attendance is a child's attendance state at one workshop.
type Attendance string

const (
	AttendancePresent   Attendance = "present"
	AttendanceAbsent    Attendance = "absent"
	AttendanceCancelled Attendance = "cancelled"
)

// ParseAttendance validates an attendance value from an API payload.
func ParseAttendance(s string) (Attendance, error) {
	switch Attendance(s) {
	case AttendancePresent, AttendanceAbsent, AttendanceCancelled:
		return Attendance(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrBadAttendance, s)
	}
}

// Workshop is one numbered session a team held on a date.
type Workshop struct {
	ID             int64  `json:"id"`
	TeamID         int64  `json:"team_id"`
	Date           string `json:"date"`
	WorkshopNumber int    `json:"workshop_number"`
}

// ChildAttendance pairs a child with an attendance value.
type ChildAttendance struct {
	ChildID    int64      `json:"child_id"`
	Attendance Attendance `json:"attendance"`
}

// WorkshopReport is a workshop together with its attendance rows.
type WorkshopReport struct {
	Workshop   Workshop          `json:"workshop"`
	Attendance []ChildAttendance `json:"attendance"`
}

// Progress locates a team in the program by its last completed workshop;
// zero means the team has not started.
type Progress struct {
	Current int `json:"current"`
}

// Error kinds owned by this package
var (
	ErrChildNotFound        = errors.New("child not found")
	ErrChildExists          = errors.New("child already exists in team")
	ErrChildHasAttendance   = errors.New("child has attendance records")
	ErrWorkshopNotFound     = errors.New("workshop not found")
	ErrWorkshopExists       = errors.New("workshop already exists for team")
	ErrWorkshopNumber       = errors.New("workshop number out of sequence")
	ErrChildNotInTeam       = errors.New("attendance contains children outside the team")
	ErrIncompleteAttendance = errors.New("attendance does not cover all children of the team")
	ErrBadAttendance        = errors.New("invalid attendance value")
)
