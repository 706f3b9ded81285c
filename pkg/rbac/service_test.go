package rbac

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digital-lions/backend/pkg/hierarchy"
	"github.com/digital-lions/backend/pkg/idp"
	"github.com/digital-lions/backend/pkg/observability"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

func newTestService(t *testing.T) (*Service, *Store, *idp.Fake, string) {
	t.Helper()
	db := setupTestDB(t)
	seedHierarchy(t, db)
	store := NewStore(db)
	nodes, _, _, _ := testChain()
	fake := idp.NewFake()
	userID := fake.Seed("coach@example.org")
	service := NewService(store, nodes, fake, testLogger(), nil)
	return service, store, fake, userID
}

func TestGrantHappyPath(t *testing.T) {
	service, store, fake, userID := newTestService(t)
	ctx := context.Background()

	assignment, err := service.Grant(ctx, userID, "Coach", "Community", 1)
	require.NoError(t, err)
	assert.Equal(t, RoleCoach, assignment.Role)
	assert.Equal(t, hierarchy.LevelCommunity, assignment.Level)
	assert.Equal(t, hierarchy.CommunityPath(1, 1), assignment.ResourcePath)
	assert.NotZero(t, assignment.ID)

	persisted, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, persisted, 1)

	names, err := fake.ListRoleNames(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coach"}, names, "first grant mirrors the role name")
}

func TestGrantUnknownRole(t *testing.T) {
	service, _, _, userID := newTestService(t)

	_, err := service.Grant(context.Background(), userID, "Janitor", "Team", 1)
	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestGrantBadLevelName(t *testing.T) {
	service, _, _, userID := newTestService(t)

	_, err := service.Grant(context.Background(), userID, "Coach", "Continent", 1)
	assert.ErrorIs(t, err, hierarchy.ErrBadLevel)
}

func TestGrantRoleLevelCombinations(t *testing.T) {
	service, _, _, userID := newTestService(t)
	ctx := context.Background()

	_, err := service.Grant(ctx, userID, "Coach", "Implementing Partner", 1)
	assert.ErrorIs(t, err, ErrRoleLevel, "Coach is community- or team-scoped only")

	_, err = service.Grant(ctx, userID, "Admin", "Team", 1)
	assert.ErrorIs(t, err, ErrRoleLevel, "Admin is partner-scoped only")

	_, err = service.Grant(ctx, userID, "Admin", "Implementing Partner", 1)
	assert.NoError(t, err)
}

func TestGrantPartnerLevelOnlyDefaultPartner(t *testing.T) {
	service, _, _, userID := newTestService(t)

	_, err := service.Grant(context.Background(), userID, "Admin", "Implementing Partner", 2)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestGrantUnknownResource(t *testing.T) {
	service, _, _, userID := newTestService(t)

	_, err := service.Grant(context.Background(), userID, "Coach", "Team", 42)
	assert.ErrorIs(t, err, ErrResourceNotFound)
}

func TestGrantUnknownUser(t *testing.T) {
	service, _, _, _ := newTestService(t)

	_, err := service.Grant(context.Background(), "auth0|ghost", "Coach", "Team", 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestGrantDuplicate(t *testing.T) {
	service, store, _, userID := newTestService(t)
	ctx := context.Background()

	_, err := service.Grant(ctx, userID, "Coach", "Team", 1)
	require.NoError(t, err)

	_, err = service.Grant(ctx, userID, "Coach", "Team", 1)
	assert.ErrorIs(t, err, ErrRoleAlreadyExists)

	persisted, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, persisted, 1, "duplicate grant must leave exactly one record")
}

func TestGrantMirrorsOnlyFirstAssignmentOfName(t *testing.T) {
	service, _, fake, userID := newTestService(t)
	ctx := context.Background()

	_, err := service.Grant(ctx, userID, "Coach", "Team", 1)
	require.NoError(t, err)
	_, err = service.Grant(ctx, userID, "Coach", "Community", 1)
	require.NoError(t, err)

	assert.Equal(t, 1, fake.AddCalls, "second scope of the same name must not call the IdP")
}

func TestGrantSurvivesMirrorFailure(t *testing.T) {
	service, store, fake, userID := newTestService(t)
	fake.FailAdd = errors.New("idp unreachable")
	ctx := context.Background()

	assignment, err := service.Grant(ctx, userID, "Coach", "Team", 1)
	require.NoError(t, err, "mirror failure must not fail the grant")
	assert.NotZero(t, assignment.ID)

	persisted, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, persisted, 1, "local record is the source of truth")
}

func TestRevokeLastAssignmentRemovesRoleName(t *testing.T) {
	service, _, fake, userID := newTestService(t)
	ctx := context.Background()

	a1, err := service.Grant(ctx, userID, "Coach", "Team", 1)
	require.NoError(t, err)
	a2, err := service.Grant(ctx, userID, "Coach", "Community", 1)
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, userID, a1.ID))
	names, err := fake.ListRoleNames(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Coach"}, names, "name stays while another scope holds it")

	require.NoError(t, service.Revoke(ctx, userID, a2.ID))
	names, err = fake.ListRoleNames(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, names, "last revoke drops the mirrored name")
}

func TestRevokeUnknownAssignment(t *testing.T) {
	service, _, _, userID := newTestService(t)

	err := service.Revoke(context.Background(), userID, 9999)
	assert.ErrorIs(t, err, ErrRoleNotFoundForUser)
}

func TestRevokeForeignAssignment(t *testing.T) {
	service, _, fake, userID := newTestService(t)
	other := fake.Seed("other@example.org")
	ctx := context.Background()

	a, err := service.Grant(ctx, userID, "Coach", "Team", 1)
	require.NoError(t, err)

	err = service.Revoke(ctx, other, a.ID)
	assert.ErrorIs(t, err, ErrRoleNotFoundForUser)
}

func TestRevokeSurvivesMirrorFailure(t *testing.T) {
	service, store, fake, userID := newTestService(t)
	ctx := context.Background()

	a, err := service.Grant(ctx, userID, "Coach", "Team", 1)
	require.NoError(t, err)

	fake.FailRemove = errors.New("idp unreachable")
	require.NoError(t, service.Revoke(ctx, userID, a.ID))

	persisted, err := store.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, persisted, "local delete wins even when the mirror fails")
}

func TestListUnknownUser(t *testing.T) {
	service, _, _, _ := newTestService(t)

	_, err := service.List(context.Background(), "auth0|ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
}
