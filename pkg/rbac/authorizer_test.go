package rbac

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/digital-lions/backend/pkg/hierarchy"
)

type fakeAssignments struct {
	byUser map[string][]Assignment
	err    error
}

func (f *fakeAssignments) ListByUser(_ context.Context, userID string) ([]Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byUser[userID], nil
}

type fakeNodes struct {
	nodes map[string]*hierarchy.Node
}

func nodeKey(level hierarchy.Level, id int64) string {
	return fmt.Sprintf("%s/%d", level, id)
}

func (f *fakeNodes) Node(_ context.Context, level hierarchy.Level, id int64) (*hierarchy.Node, error) {
	n, ok := f.nodes[nodeKey(level, id)]
	if !ok {
		return nil, fmt.Errorf("%w: %s %d", hierarchy.ErrNotFound, level, id)
	}
	return n, nil
}

// testChain builds IP1 -> C1 -> T1 and registers the ancestors for
// parent resolution.
func testChain() (*fakeNodes, *hierarchy.Node, *hierarchy.Node, *hierarchy.Node) {
	partner := (&hierarchy.ImplementingPartner{ID: 1, Name: "Little Lions", Path: hierarchy.PartnerPath(1)}).Node()
	community := (&hierarchy.Community{ID: 1, Name: "Kayamandi", ImplementingPartnerID: 1, Path: hierarchy.CommunityPath(1, 1)}).Node()
	team := (&hierarchy.Team{ID: 1, Name: "Team A", CommunityID: 1, ImplementingPartnerID: 1, Path: hierarchy.TeamPath(1, 1, 1)}).Node()

	nodes := &fakeNodes{nodes: map[string]*hierarchy.Node{
		nodeKey(hierarchy.LevelImplementingPartner, 1): partner,
		nodeKey(hierarchy.LevelCommunity, 1):           community,
		nodeKey(hierarchy.LevelTeam, 1):                team,
	}}
	return nodes, partner, community, team
}

func coachAt(userID string, level hierarchy.Level, path string) Assignment {
	return Assignment{UserID: userID, Role: RoleCoach, Level: level, ResourcePath: path}
}

func TestDirectMatchGrantsOnlyRolePermissions(t *testing.T) {
	nodes, _, community, _ := testChain()
	src := &fakeAssignments{byUser: map[string][]Assignment{
		"u": {coachAt("u", hierarchy.LevelCommunity, community.Path)},
	}}
	authz := NewAuthorizer(src, nodes, nil)
	ctx := context.Background()

	ok, err := authz.HasPermissionOnResource(ctx, NewUser("u"), PermCommunitiesRead, community)
	if err != nil {
		t.Fatalf("HasPermissionOnResource failed: %v", err)
	}
	if !ok {
		t.Error("expected direct match to grant communities:read")
	}

	// Coach has no write permission anywhere, even at the exact scope.
	ok, err = authz.HasPermissionOnResource(ctx, NewUser("u"), PermCommunitiesWrite, community)
	if err != nil {
		t.Fatalf("HasPermissionOnResource failed: %v", err)
	}
	if ok {
		t.Error("communities:write is outside the Coach permission set")
	}
}

func TestAncestorScopeAuthorizesDescendant(t *testing.T) {
	nodes, _, community, team := testChain()
	src := &fakeAssignments{byUser: map[string][]Assignment{
		"u": {coachAt("u", hierarchy.LevelCommunity, community.Path)},
	}}
	authz := NewAuthorizer(src, nodes, nil)

	ok, err := authz.HasPermissionOnResource(context.Background(), NewUser("u"), PermTeamsRead, team)
	if err != nil {
		t.Fatalf("HasPermissionOnResource failed: %v", err)
	}
	if !ok {
		t.Error("a community-scoped role must cover teams inside the community")
	}
}

func TestDescendantScopeDoesNotAuthorizeAncestor(t *testing.T) {
	nodes, partner, community, team := testChain()
	src := &fakeAssignments{byUser: map[string][]Assignment{
		"u": {coachAt("u", hierarchy.LevelTeam, team.Path)},
	}}
	authz := NewAuthorizer(src, nodes, nil)
	ctx := context.Background()

	for _, target := range []*hierarchy.Node{community, partner} {
		ok, err := authz.HasPermissionOnResource(ctx, NewUser("u"), PermTeamsRead, target)
		if err != nil {
			t.Fatalf("HasPermissionOnResource failed: %v", err)
		}
		if ok {
			t.Errorf("team-scoped role must not cover %s %s", target.Level, target.Path)
		}
	}
}

func TestNoAssignmentsNoAccess(t *testing.T) {
	nodes, partner, community, team := testChain()
	authz := NewAuthorizer(&fakeAssignments{byUser: map[string][]Assignment{}}, nodes, nil)
	ctx := context.Background()

	for _, target := range []*hierarchy.Node{partner, community, team} {
		for _, role := range []Role{RoleCoach, RoleAdmin} {
			for _, perm := range RolePermissions[role] {
				ok, err := authz.HasPermissionOnResource(ctx, NewUser("u"), perm, target)
				if err != nil {
					t.Fatalf("HasPermissionOnResource failed: %v", err)
				}
				if ok {
					t.Errorf("user without assignments got %s on %s", perm, target.Path)
				}
			}
		}
	}
}

func TestAdminAtPartnerCoversWholeTree(t *testing.T) {
	nodes, partner, community, team := testChain()
	src := &fakeAssignments{byUser: map[string][]Assignment{
		"admin": {{UserID: "admin", Role: RoleAdmin, Level: hierarchy.LevelImplementingPartner, ResourcePath: partner.Path}},
	}}
	authz := NewAuthorizer(src, nodes, nil)
	ctx := context.Background()

	for _, target := range []*hierarchy.Node{partner, community, team} {
		ok, err := authz.HasPermissionOnResource(ctx, NewUser("admin"), PermTeamsWrite, target)
		if err != nil {
			t.Fatalf("HasPermissionOnResource failed: %v", err)
		}
		if !ok {
			t.Errorf("partner-scoped admin should cover %s %s", target.Level, target.Path)
		}
	}
}

func TestMissingAncestorEndsTraversal(t *testing.T) {
	nodes, _, community, team := testChain()
	// Remove the community so the climb from the team dead-ends.
	delete(nodes.nodes, nodeKey(hierarchy.LevelCommunity, 1))

	src := &fakeAssignments{byUser: map[string][]Assignment{
		"u": {coachAt("u", hierarchy.LevelCommunity, community.Path)},
	}}
	authz := NewAuthorizer(src, nodes, nil)

	ok, err := authz.HasPermissionOnResource(context.Background(), NewUser("u"), PermTeamsRead, team)
	if err != nil {
		t.Fatalf("missing ancestor must not surface as an error, got %v", err)
	}
	if ok {
		t.Error("traversal through a missing ancestor must end as a non-match")
	}
}

func TestAssignmentLoadErrorPropagates(t *testing.T) {
	nodes, _, _, team := testChain()
	authz := NewAuthorizer(&fakeAssignments{err: errors.New("db down")}, nodes, nil)

	_, err := authz.HasPermissionOnResource(context.Background(), NewUser("u"), PermTeamsRead, team)
	if err == nil {
		t.Fatal("expected store error to propagate")
	}
}

func TestVerifyPermission(t *testing.T) {
	nodes, _, community, _ := testChain()
	src := &fakeAssignments{byUser: map[string][]Assignment{
		"u": {coachAt("u", hierarchy.LevelCommunity, community.Path)},
	}}
	authz := NewAuthorizer(src, nodes, nil)
	ctx := context.Background()

	if err := authz.VerifyPermission(ctx, NewUser("u"), PermWorkshopsWrite); err != nil {
		t.Errorf("workshops:write is in the Coach set: %v", err)
	}

	err := authz.VerifyPermission(ctx, NewUser("u"), PermUsersWrite)
	if !errors.Is(err, ErrInsufficientPermissions) {
		t.Errorf("expected ErrInsufficientPermissions, got %v", err)
	}
}

func TestAssignmentsCachedPerUser(t *testing.T) {
	nodes, _, community, team := testChain()
	calls := 0
	src := &countingAssignments{
		inner: &fakeAssignments{byUser: map[string][]Assignment{
			"u": {coachAt("u", hierarchy.LevelCommunity, community.Path)},
		}},
		calls: &calls,
	}
	authz := NewAuthorizer(src, nodes, nil)
	ctx := context.Background()
	user := NewUser("u")

	if _, err := authz.HasPermissionOnResource(ctx, user, PermTeamsRead, team); err != nil {
		t.Fatalf("HasPermissionOnResource failed: %v", err)
	}
	if err := authz.VerifyPermission(ctx, user, PermTeamsRead); err != nil {
		t.Fatalf("VerifyPermission failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one assignment load per request user, got %d", calls)
	}
}

type countingAssignments struct {
	inner AssignmentSource
	calls *int
}

func (c *countingAssignments) ListByUser(ctx context.Context, userID string) ([]Assignment, error) {
	*c.calls++
	return c.inner.ListByUser(ctx, userID)
}

// Mirrors the canonical walkthrough: a coach scoped to C1 can read teams
// in C1 but cannot write the community or act on the partner.
func TestCoachScenario(t *testing.T) {
	nodes, partner, community, team := testChain()
	src := &fakeAssignments{byUser: map[string][]Assignment{
		"coach": {coachAt("coach", hierarchy.LevelCommunity, community.Path)},
	}}
	authz := NewAuthorizer(src, nodes, nil)
	ctx := context.Background()

	cases := []struct {
		perm   Permission
		target *hierarchy.Node
		want   bool
	}{
		{PermTeamsRead, team, true},
		{PermCommunitiesWrite, community, false},
		{PermTeamsRead, partner, false},
	}
	for _, tc := range cases {
		got, err := authz.HasPermissionOnResource(ctx, NewUser("coach"), tc.perm, tc.target)
		if err != nil {
			t.Fatalf("HasPermissionOnResource(%s, %s) failed: %v", tc.perm, tc.target.Path, err)
		}
		if got != tc.want {
			t.Errorf("HasPermissionOnResource(%s, %s) = %v, want %v", tc.perm, tc.target.Path, got, tc.want)
		}
	}
}
