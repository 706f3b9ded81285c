package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/httputil"
	"github.com/digital-lions/backend/pkg/program"
	"github.com/digital-lions/backend/pkg/rbac"
)

// ProgramHandlers serves the child and workshop endpoints.
type ProgramHandlers struct {
	program    *program.Service
	hierarchy  *hierarchy.Store
	authorizer *rbac.Authorizer
}

// NewProgramHandlers creates the child and workshop handlers.
func NewProgramHandlers(programSvc *program.Service, hierarchyStore *hierarchy.Store, authorizer *rbac.Authorizer) *ProgramHandlers {
	return &ProgramHandlers{program: programSvc, hierarchy: hierarchyStore, authorizer: authorizer}
}

// RegisterRoutes registers the child and workshop routes.
func (h *ProgramHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/children", h.ListChildren).Methods("GET")
	router.HandleFunc("/children", h.CreateChild).Methods("POST")
	router.HandleFunc("/children/{child_id}", h.GetChild).Methods("GET")
	router.HandleFunc("/children/{child_id}", h.UpdateChild).Methods("PATCH")
	router.HandleFunc("/children/{child_id}", h.DeleteChild).Methods("DELETE")

	router.HandleFunc("/teams/{team_id}/workshops", h.ListWorkshops).Methods("GET")
	router.HandleFunc("/teams/{team_id}/workshops", h.CreateWorkshop).Methods("POST")
	router.HandleFunc("/teams/{team_id}/workshops/{workshop_number}", h.GetWorkshopReport).Methods("GET")
}

// childTeamNode resolves the team a child belongs to, for the node-bound
// permission check. The child is looked up first so a missing child
// reads as 404 rather than a team error.
func (h *ProgramHandlers) childTeamNode(w http.ResponseWriter, r *http.Request, childID int64) (*program.Child, *hierarchy.Node, bool) {
	child, err := h.program.GetChild(r.Context(), childID)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}
	team, err := h.hierarchy.GetTeam(r.Context(), child.TeamID)
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}
	return child, team.Node(), true
}

// ListChildren lists children, optionally narrowed to one team.
func (h *ProgramHandlers) ListChildren(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}

	teamID, err := httputil.ParseQueryInt64(r, "team_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid team_id")
		return
	}

	if teamID != 0 {
		team, err := h.hierarchy.GetTeam(r.Context(), teamID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !authorizeNode(w, r, h.authorizer, user, rbac.PermChildrenRead, team.Node()) {
			return
		}
	} else if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermChildrenRead); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}

	children, err := h.program.ListChildren(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	if children == nil {
		children = []program.Child{}
	}
	httputil.WriteSuccess(w, children)
}

// CreateChild adds a child to a team.
func (h *ProgramHandlers) CreateChild(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		FirstName string  `json:"first_name"`
		LastName  string  `json:"last_name"`
		Age       *int64  `json:"age"`
		Gender    *string `json:"gender"`
		TeamID    int64   `json:"team_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) ||
		!httputil.RequireNonEmpty(w, req.FirstName, "first_name") ||
		!httputil.RequireNonEmpty(w, req.LastName, "last_name") ||
		!httputil.RequirePositive(w, req.TeamID, "team_id") {
		return
	}

	team, err := h.hierarchy.GetTeam(r.Context(), req.TeamID)
	if err != nil {
		// A missing team is a bad request, not a missing resource.
		if errors.Is(err, hierarchy.ErrNotFound) {
			httputil.WriteError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermChildrenWrite, team.Node()) {
		return
	}

	child := &program.Child{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Age:       req.Age,
		Gender:    req.Gender,
		TeamID:    req.TeamID,
	}
	if err := h.program.CreateChild(r.Context(), child); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, child)
}

// GetChild returns one child.
func (h *ProgramHandlers) GetChild(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "child_id")
	if !ok {
		return
	}

	child, node, ok := h.childTeamNode(w, r, id)
	if !ok {
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermChildrenRead, node) {
		return
	}
	httputil.WriteSuccess(w, child)
}

// UpdateChild updates a child's personal fields.
func (h *ProgramHandlers) UpdateChild(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "child_id")
	if !ok {
		return
	}

	child, node, ok := h.childTeamNode(w, r, id)
	if !ok {
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermChildrenWrite, node) {
		return
	}

	var req struct {
		FirstName *string `json:"first_name"`
		LastName  *string `json:"last_name"`
		Age       *int64  `json:"age"`
		Gender    *string `json:"gender"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if req.FirstName != nil {
		child.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		child.LastName = *req.LastName
	}
	if req.Age != nil {
		child.Age = req.Age
	}
	if req.Gender != nil {
		child.Gender = req.Gender
	}
	if !httputil.RequireNonEmpty(w, child.FirstName, "first_name") ||
		!httputil.RequireNonEmpty(w, child.LastName, "last_name") {
		return
	}

	if err := h.program.UpdateChild(r.Context(), child); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, child)
}

// DeleteChild removes a child. Cascade also removes the child's
// attendance history.
func (h *ProgramHandlers) DeleteChild(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "child_id")
	if !ok {
		return
	}

	_, node, ok := h.childTeamNode(w, r, id)
	if !ok {
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermChildrenWrite, node) {
		return
	}

	cascade, err := httputil.ParseQueryBool(r, "cascade", false)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid cascade value")
		return
	}
	if err := h.program.DeleteChild(r.Context(), id, cascade); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// teamNode resolves a team from the path for the workshop routes.
func (h *ProgramHandlers) teamNode(w http.ResponseWriter, r *http.Request) (int64, *hierarchy.Node, bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
	if !ok {
		return 0, nil, false
	}
	team, err := h.hierarchy.GetTeam(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return 0, nil, false
	}
	return id, team.Node(), true
}

// ListWorkshops lists the workshops a team has completed.
func (h *ProgramHandlers) ListWorkshops(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	teamID, node, ok := h.teamNode(w, r)
	if !ok {
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermWorkshopsRead, node) {
		return
	}

	workshops, err := h.program.ListWorkshops(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	if workshops == nil {
		workshops = []program.Workshop{}
	}
	httputil.WriteSuccess(w, workshops)
}

// CreateWorkshop records the next workshop for a team, with attendance
// for every child on the team.
func (h *ProgramHandlers) CreateWorkshop(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	teamID, node, ok := h.teamNode(w, r)
	if !ok {
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermWorkshopsWrite, node) {
		return
	}

	var req struct {
		Date           string `json:"date"`
		WorkshopNumber int    `json:"workshop_number"`
		Attendance     []struct {
			ChildID    int64  `json:"child_id"`
			Attendance string `json:"attendance"`
		} `json:"attendance"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) ||
		!httputil.RequireNonEmpty(w, req.Date, "date") ||
		!httputil.RequirePositive(w, int64(req.WorkshopNumber), "workshop_number") {
		return
	}

	attendance := make([]program.ChildAttendance, 0, len(req.Attendance))
	for _, a := range req.Attendance {
		attendance = append(attendance, program.ChildAttendance{
			ChildID:    a.ChildID,
			Attendance: program.Attendance(a.Attendance),
		})
	}

	workshop, err := h.program.CreateWorkshop(r.Context(), teamID, req.Date, req.WorkshopNumber, attendance)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, workshop)
}

// GetWorkshopReport returns one workshop of a team with its attendance.
func (h *ProgramHandlers) GetWorkshopReport(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	teamID, node, ok := h.teamNode(w, r)
	if !ok {
		return
	}
	workshopNumber, ok := httputil.ParsePathIntOrError(w, r, "workshop_number")
	if !ok {
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermWorkshopsRead, node) {
		return
	}

	report, err := h.program.GetWorkshopReport(r.Context(), teamID, workshopNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, report)
}
