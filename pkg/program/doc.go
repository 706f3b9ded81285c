// Package program manages the workshop program a team runs through:
// the children on a team, the numbered workshops the team completes in
// order, and per-child attendance for every workshop. Completing the
// final workshop retires the team.
package program
