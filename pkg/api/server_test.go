package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/middleware"
	"github.com/digital-lions/backend/pkg/observability"
	"github.com/digital-lions/backend/pkg/program"
	"github.com/digital-lions/backend/pkg/rbac"
)

// fixture wires the whole API against an in-memory database and a fake
// identity provider.
type fixture struct {
	server  *Server
	db      *sql.DB
	roles   *rbac.Store
	fake    *idp.Fake
	adminID string
	coachID string
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
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

		CREATE TABLE roles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL,
			level TEXT NOT NULL,
			resource_path TEXT NOT NULL,
			granted_at TIMESTAMP NOT NULL,
			UNIQUE (user_id, role, level, resource_path)
		);

		INSERT INTO implementing_partners (id, name) VALUES (1, 'Little Lions');
		INSERT INTO communities (id, name, implementing_partner_id) VALUES (1, 'Kayamandi', 1);
		INSERT INTO communities (id, name, implementing_partner_id) VALUES (2, 'Zwelihle', 1);
		INSERT INTO teams (id, name, community_id, implementing_partner_id) VALUES (1, 'Team Alpha', 1, 1);
		INSERT INTO teams (id, name, community_id, implementing_partner_id) VALUES (2, 'Team Beta', 2, 1);
	`)
	require.NoError(t, err)
	return db
}

func setupServer(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	log := observability.NewLogger(observability.ErrorLevel, io.Discard)
	hierarchyStore := hierarchy.NewStore(db)
	roleStore := rbac.NewStore(db)
	fake := idp.NewFake()

	adminID := fake.Seed("admin@example.org")
	coachID := fake.Seed("coach@example.org")

	grant(t, roleStore, adminID, rbac.RoleAdmin, hierarchy.LevelImplementingPartner, hierarchy.PartnerPath(1))
	grant(t, roleStore, coachID, rbac.RoleCoach, hierarchy.LevelCommunity, hierarchy.CommunityPath(1, 1))

	authorizer := rbac.NewAuthorizer(roleStore, hierarchyStore, nil)
	roleSvc := rbac.NewService(roleStore, hierarchyStore, fake, log, nil)
	programSvc := program.NewService(program.NewStore(db), hierarchyStore, log)

	server := NewServer(Deps{
		Hierarchy:  hierarchyStore,
		Roles:      roleStore,
		RoleSvc:    roleSvc,
		Authorizer: authorizer,
		Program:    programSvc,
		IdP:        fake,
		Log:        log,
	})

	return &fixture{server: server, db: db, roles: roleStore, fake: fake, adminID: adminID, coachID: coachID}
}

func grant(t *testing.T, store *rbac.Store, userID string, role rbac.Role, level hierarchy.Level, path string) {
	t.Helper()
	err := store.Create(context.Background(), &rbac.Assignment{
		UserID:       userID,
		Role:         role,
		Level:        level,
		ResourcePath: path,
		GrantedAt:    time.Now().UTC(),
	})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, callerID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if callerID != "" {
		ctx := middleware.WithAuthContext(req.Context(), &middleware.AuthContext{Subject: callerID})
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	f.server.ServeHTTP(rec, req)
	return rec
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func decodeObject(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
