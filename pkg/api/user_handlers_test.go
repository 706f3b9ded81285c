package api

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListUsers(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, f.adminID, http.MethodGet, "/api/v1/users", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeList(t, rec), 2)

	// Coaches hold no users:read permission.
	rec = f.do(t, f.coachID, http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetUser(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, f.adminID, http.MethodGet, "/api/v1/users/"+url.PathEscape(f.coachID), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "coach@example.org", decodeObject(t, rec)["email"])

	rec = f.do(t, f.adminID, http.MethodGet, "/api/v1/users/"+url.PathEscape("auth0|missing"), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateUser(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, f.adminID, http.MethodPost, "/api/v1/users",
		map[string]interface{}{"email": "new@example.org"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeObject(t, rec)
	assert.Equal(t, "new@example.org", created["email"])
	assert.NotEmpty(t, created["user_id"])

	// Same email again conflicts.
	rec = f.do(t, f.adminID, http.MethodPost, "/api/v1/users",
		map[string]interface{}{"email": "new@example.org"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, f.adminID, http.MethodPost, "/api/v1/users",
		map[string]interface{}{"email": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUserDropsAssignments(t *testing.T) {
	f := setupServer(t)

	before, err := f.roles.ListByUser(context.Background(), f.coachID)
	require.NoError(t, err)
	require.NotEmpty(t, before)

	rec := f.do(t, f.adminID, http.MethodDelete, "/api/v1/users/"+url.PathEscape(f.coachID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	after, err := f.roles.ListByUser(context.Background(), f.coachID)
	require.NoError(t, err)
	assert.Empty(t, after)

	rec = f.do(t, f.adminID, http.MethodDelete, "/api/v1/users/"+url.PathEscape(f.coachID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserRoutesRequireAuth(t *testing.T) {
	f := setupServer(t)

	rec := f.do(t, "", http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, "", http.MethodPost, "/api/v1/users",
		map[string]interface{}{"email": "x@example.org"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
