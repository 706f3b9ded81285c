package hierarchy

import "github.com/digital-lions/backend/pkg/storage"

// GetMigrations returns the hierarchy schema migrations
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "Create implementing_partners table",
			SQL: `
				CREATE TABLE IF NOT EXISTS implementing_partners (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create communities table",
			SQL: `
				CREATE TABLE IF NOT EXISTS communities (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE,
					implementing_partner_id BIGINT NOT NULL REFERENCES implementing_partners(id) ON DELETE RESTRICT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_communities_implementing_partner_id ON communities(implementing_partner_id);
			`,
		},
		{
			Version:     3,
			Description: "Create teams table",
			SQL: `
				CREATE TABLE IF NOT EXISTS teams (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					community_id BIGINT NOT NULL REFERENCES communities(id) ON DELETE CASCADE,
					implementing_partner_id BIGINT NOT NULL REFERENCES implementing_partners(id) ON DELETE CASCADE,
					is_active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_teams_community_id ON teams(community_id);
				CREATE INDEX idx_teams_implementing_partner_id ON teams(implementing_partner_id);
			`,
		},
	}
}
