package hierarchy

import "testing"

func TestPathConstruction(t *testing.T) {
	if got := PartnerPath(1); got != "/implementingPartners/1" {
		t.Errorf("PartnerPath(1) = %q", got)
	}
	if got := CommunityPath(1, 2); got != "/implementingPartners/1/communities/2" {
		t.Errorf("CommunityPath(1, 2) = %q", got)
	}
	if got := TeamPath(1, 2, 3); got != "/implementingPartners/1/communities/2/teams/3" {
		t.Errorf("TeamPath(1, 2, 3) = %q", got)
	}
}

func TestPathsAreDistinctAcrossLevels(t *testing.T) {
	// Segment names encode the level, so equal IDs at different levels
	// can never collide.
	paths := map[string]bool{
		PartnerPath(1):       true,
		CommunityPath(1, 1):  true,
		TeamPath(1, 1, 1):    true,
		CommunityPath(1, 11): true,
	}
	if len(paths) != 4 {
		t.Errorf("expected 4 distinct paths, got %d", len(paths))
	}
}

func TestParentLevel(t *testing.T) {
	if parent, ok := Level(LevelTeam).ParentLevel(); !ok || parent != LevelCommunity {
		t.Errorf("team parent = %q, %v", parent, ok)
	}
	if parent, ok := Level(LevelCommunity).ParentLevel(); !ok || parent != LevelImplementingPartner {
		t.Errorf("community parent = %q, %v", parent, ok)
	}
	if _, ok := Level(LevelImplementingPartner).ParentLevel(); ok {
		t.Error("implementing partner must be the root level")
	}
}

func TestParseLevel(t *testing.T) {
	for _, valid := range []string{"Implementing Partner", "Community", "Team"} {
		if _, err := ParseLevel(valid); err != nil {
			t.Errorf("ParseLevel(%q) unexpected error: %v", valid, err)
		}
	}
	if _, err := ParseLevel("Child"); err == nil {
		t.Error("expected error for unknown level")
	}
}
