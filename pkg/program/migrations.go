package program

import "github.com/digital-lions/backend/pkg/storage"

// GetMigrations returns the schema migrations for children, workshops and attendance.
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "create children table",
			SQL: `
				CREATE TABLE IF NOT EXISTS children (
					id BIGSERIAL PRIMARY KEY,
					first_name TEXT NOT NULL,
					last_name TEXT NOT NULL,
					age BIGINT,
					gender TEXT,
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE
				);
				CREATE INDEX IF NOT EXISTS idx_children_team_id ON children(team_id);
			`,
		},
		{
			Version:     2,
			Description: "create workshops table",
			SQL: `
				CREATE TABLE IF NOT EXISTS workshops (
					id BIGSERIAL PRIMARY KEY,
					team_id BIGINT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
					date TEXT NOT NULL,
					workshop_number INT NOT NULL,
					CONSTRAINT unique_workshop_number_per_team UNIQUE (team_id, workshop_number)
				);
				CREATE INDEX IF NOT EXISTS idx_workshops_team_id ON workshops(team_id);
			`,
		},
		{
			Version:     3,
			Description: "create attendances table",
			SQL: `
				CREATE TABLE IF NOT EXISTS attendances (
					id BIGSERIAL PRIMARY KEY,
					workshop_id BIGINT NOT NULL REFERENCES workshops(id) ON DELETE CASCADE,
					child_id BIGINT NOT NULL REFERENCES children(id) ON DELETE CASCADE,
					attendance TEXT NOT NULL
				);
				CREATE INDEX IF NOT EXISTS idx_attendances_workshop_id ON attendances(workshop_id);
				CREATE INDEX IF NOT EXISTS idx_attendances_child_id ON attendances(child_id);
			`,
		},
	}
}
