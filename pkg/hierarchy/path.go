package hierarchy

import "fmt"

// Path segment templates. IDs are unique per table and the segment names
// encode the level, so no two distinct nodes ever share a path.
const (
	partnerSegment   = "/implementingPartners/%d"
	communitySegment = "/communities/%d"
	teamSegment      = "/teams/%d"
)

// PartnerPath returns the materialized path of an implementing partner,
// e.g. /implementingPartners/1.
func PartnerPath(partnerID int64) string {
	return fmt.Sprintf(partnerSegment, partnerID)
}

// CommunityPath returns the materialized path of a community,
// e.g. /implementingPartners/1/communities/2.
func CommunityPath(partnerID, communityID int64) string {
	return PartnerPath(partnerID) + fmt.Sprintf(communitySegment, communityID)
}

// TeamPath returns the materialized path of a team,
// e.g. /implementingPartners/1/communities/2/teams/3.
func TeamPath(partnerID, communityID, teamID int64) string {
	return CommunityPath(partnerID, communityID) + fmt.Sprintf(teamSegment, teamID)
}

// SQL expressions computing the same paths at read time. Kept next to the
// Go constructors so the two encodings cannot drift apart silently.
const (
	partnerPathExpr   = "'/implementingPartners/' || %[1]s.id"
	communityPathExpr = "'/implementingPartners/' || %[1]s.implementing_partner_id || '/communities/' || %[1]s.id"
	teamPathExpr      = "'/implementingPartners/' || %[1]s.implementing_partner_id || '/communities/' || %[1]s.community_id || '/teams/' || %[1]s.id"
)

// PartnerPathSQL returns the SQL expression for a partner's path, with
// columns qualified by the given table alias.
func PartnerPathSQL(alias string) string {
	return fmt.Sprintf(partnerPathExpr, alias)
}

// CommunityPathSQL returns the SQL expression for a community's path.
func CommunityPathSQL(alias string) string {
	return fmt.Sprintf(communityPathExpr, alias)
}

// TeamPathSQL returns the SQL expression for a team's path.
func TeamPathSQL(alias string) string {
	return fmt.Sprintf(teamPathExpr, alias)
}
