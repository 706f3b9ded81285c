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

// Team list status filter values.
const (
	teamStatusActive    = "active"
	teamStatusNonActive = "non_active"
	teamStatusAll       = "all"
)

// HierarchyHandlers serves the implementing partner, community and team
// endpoints.
type HierarchyHandlers struct {
	store      *hierarchy.Store
	roles      *rbac.Store
	authorizer *rbac.Authorizer
	program    *program.Service
}

// NewHierarchyHandlers creates the hierarchy CRUD handlers.
func NewHierarchyHandlers(store *hierarchy.Store, roles *rbac.Store, authorizer *rbac.Authorizer, programSvc *program.Service) *HierarchyHandlers {
	return &HierarchyHandlers{store: store, roles: roles, authorizer: authorizer, program: programSvc}
}

// RegisterRoutes registers the hierarchy routes.
func (h *HierarchyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/implementing_partners", h.ListPartners).Methods("GET")
	router.HandleFunc("/implementing_partners", h.CreatePartner).Methods("POST")
	router.HandleFunc("/implementing_partners/{partner_id}", h.GetPartner).Methods("GET")
	router.HandleFunc("/implementing_partners/{partner_id}", h.UpdatePartner).Methods("PATCH")
	router.HandleFunc("/implementing_partners/{partner_id}", h.DeletePartner).Methods("DELETE")

	router.HandleFunc("/communities", h.ListCommunities).Methods("GET")
	router.HandleFunc("/communities", h.CreateCommunity).Methods("POST")
	router.HandleFunc("/communities/{community_id}", h.GetCommunity).Methods("GET")
	router.HandleFunc("/communities/{community_id}", h.UpdateCommunity).Methods("PATCH")
	router.HandleFunc("/communities/{community_id}", h.DeleteCommunity).Methods("DELETE")

	router.HandleFunc("/teams", h.ListTeams).Methods("GET")
	router.HandleFunc("/teams", h.CreateTeam).Methods("POST")
	router.HandleFunc("/teams/{team_id}", h.GetTeam).Methods("GET")
	router.HandleFunc("/teams/{team_id}", h.UpdateTeam).Methods("PATCH")
	router.HandleFunc("/teams/{team_id}", h.DeleteTeam).Methods("DELETE")
}

// ListPartners lists the implementing partners the caller's roles reach.
func (h *HierarchyHandlers) ListPartners(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	partners, err := h.roles.AccessiblePartners(r.Context(), user.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if partners == nil {
		partners = []hierarchy.ImplementingPartner{}
	}
	httputil.WriteSuccess(w, partners)
}

// CreatePartner adds a new implementing partner.
func (h *HierarchyHandlers) CreatePartner(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermCommunitiesWrite); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) || !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	partner, err := h.store.CreatePartner(r.Context(), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, partner)
}

// GetPartner returns one implementing partner.
func (h *HierarchyHandlers) GetPartner(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "partner_id")
	if !ok {
		return
	}

	partner, err := h.store.GetPartner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesRead, partner.Node()) {
		return
	}
	httputil.WriteSuccess(w, partner)
}

// UpdatePartner renames an implementing partner.
func (h *HierarchyHandlers) UpdatePartner(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "partner_id")
	if !ok {
		return
	}

	partner, err := h.store.GetPartner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesWrite, partner.Node()) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) || !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	updated, err := h.store.UpdatePartner(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// DeletePartner removes an implementing partner. With cascade the whole
// subtree underneath it goes too.
func (h *HierarchyHandlers) DeletePartner(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "partner_id")
	if !ok {
		return
	}

	partner, err := h.store.GetPartner(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesWrite, partner.Node()) {
		return
	}

	cascade, err := httputil.ParseQueryBool(r, "cascade", false)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid cascade value")
		return
	}
	if err := h.store.DeletePartner(r.Context(), id, cascade); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListCommunities lists the communities the caller's roles reach,
// within one implementing partner.
func (h *HierarchyHandlers) ListCommunities(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermCommunitiesRead); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}

	partnerID, err := httputil.ParseQueryInt64(r, "implementing_partner_id", rbac.DefaultPartnerID)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid implementing_partner_id")
		return
	}

	communities, err := h.roles.AccessibleCommunities(r.Context(), user.ID, partnerID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if communities == nil {
		communities = []hierarchy.Community{}
	}
	httputil.WriteSuccess(w, communities)
}

// CreateCommunity adds a community under an implementing partner.
func (h *HierarchyHandlers) CreateCommunity(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name                  string `json:"name"`
		ImplementingPartnerID int64  `json:"implementing_partner_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) || !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}
	if req.ImplementingPartnerID == 0 {
		req.ImplementingPartnerID = rbac.DefaultPartnerID
	}

	partner, err := h.store.GetPartner(r.Context(), req.ImplementingPartnerID)
	if err != nil {
		// A missing parent is a bad request, not a missing resource.
		if errors.Is(err, hierarchy.ErrNotFound) {
			httputil.WriteError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesWrite, partner.Node()) {
		return
	}

	community, err := h.store.CreateCommunity(r.Context(), partner.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, community)
}

// GetCommunity returns one community.
func (h *HierarchyHandlers) GetCommunity(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	community, err := h.store.GetCommunity(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesRead, community.Node()) {
		return
	}
	httputil.WriteSuccess(w, community)
}

// UpdateCommunity renames a community.
func (h *HierarchyHandlers) UpdateCommunity(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	community, err := h.store.GetCommunity(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesWrite, community.Node()) {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) || !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	updated, err := h.store.UpdateCommunity(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, updated)
}

// DeleteCommunity removes a community.
func (h *HierarchyHandlers) DeleteCommunity(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "community_id")
	if !ok {
		return
	}

	community, err := h.store.GetCommunity(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermCommunitiesWrite, community.Node()) {
		return
	}

	cascade, err := httputil.ParseQueryBool(r, "cascade", false)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid cascade value")
		return
	}
	if err := h.store.DeleteCommunity(r.Context(), id, cascade); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// ListTeams lists the teams the caller's roles reach, optionally
// narrowed to one community and filtered by active status.
func (h *HierarchyHandlers) ListTeams(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.authorizer.VerifyPermission(r.Context(), user, rbac.PermTeamsRead); err != nil {
		rbac.WriteServiceError(w, err)
		return
	}

	communityID, err := httputil.ParseQueryInt64(r, "community_id", 0)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid community_id")
		return
	}
	status := httputil.ParseQueryString(r, "status", teamStatusActive)
	if status != teamStatusActive && status != teamStatusNonActive && status != teamStatusAll {
		httputil.WriteBadRequest(w, "status must be one of active, non_active, all")
		return
	}

	teams, err := h.roles.AccessibleTeams(r.Context(), user.ID, communityID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	filtered := []hierarchy.Team{}
	for _, team := range teams {
		switch status {
		case teamStatusActive:
			if !team.IsActive {
				continue
			}
		case teamStatusNonActive:
			if team.IsActive {
				continue
			}
		}
		filtered = append(filtered, team)
	}
	httputil.WriteSuccess(w, filtered)
}

// CreateTeam adds a team under a community.
func (h *HierarchyHandlers) CreateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name"`
		CommunityID int64  `json:"community_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) ||
		!httputil.RequireNonEmpty(w, req.Name, "name") ||
		!httputil.RequirePositive(w, req.CommunityID, "community_id") {
		return
	}

	community, err := h.store.GetCommunity(r.Context(), req.CommunityID)
	if err != nil {
		if errors.Is(err, hierarchy.ErrNotFound) {
			httputil.WriteError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermTeamsWrite, community.Node()) {
		return
	}

	team, err := h.store.CreateTeam(r.Context(), community.ID, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteCreated(w, team)
}

// teamDetail is the GET /teams/{id} response: the team plus how far it
// is through the workshop program.
type teamDetail struct {
	hierarchy.Team
	Progress *program.Progress `json:"progress"`
}

// GetTeam returns one team with its program progress.
func (h *HierarchyHandlers) GetTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
	if !ok {
		return
	}

	team, err := h.store.GetTeam(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermTeamsRead, team.Node()) {
		return
	}

	progress, err := h.program.Progress(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteSuccess(w, teamDetail{Team: *team, Progress: progress})
}

// UpdateTeam renames a team or flips its active status.
func (h *HierarchyHandlers) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
	if !ok {
		return
	}

	team, err := h.store.GetTeam(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermTeamsWrite, team.Node()) {
		return
	}

	var req struct {
		Name     *string `json:"name"`
		IsActive *bool   `json:"is_active"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Name == nil && req.IsActive == nil {
		httputil.WriteBadRequest(w, "nothing to update")
		return
	}

	if req.Name != nil {
		if !httputil.RequireNonEmpty(w, *req.Name, "name") {
			return
		}
		if team, err = h.store.UpdateTeam(r.Context(), id, *req.Name); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.IsActive != nil {
		if err := h.store.SetTeamActive(r.Context(), id, *req.IsActive); err != nil {
			writeError(w, err)
			return
		}
		team.IsActive = *req.IsActive
	}
	httputil.WriteSuccess(w, team)
}

// DeleteTeam removes a team. Cascade also removes its children and
// workshop history; without it the delete fails once records exist.
func (h *HierarchyHandlers) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	user, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "team_id")
	if !ok {
		return
	}

	team, err := h.store.GetTeam(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !authorizeNode(w, r, h.authorizer, user, rbac.PermTeamsWrite, team.Node()) {
		return
	}

	cascade, err := httputil.ParseQueryBool(r, "cascade", false)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid cascade value")
		return
	}
	if err := h.store.DeleteTeam(r.Context(), id, cascade); err != nil {
		writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
