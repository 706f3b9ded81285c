package rbac

import "github.com/digital-lions/backend/pkg/storage"

// GetMigrations returns the schema migrations for scoped role assignments.
func GetMigrations() []storage.Migration {
	return []storage.Migration{
		{
			Version:     1,
			Description: "create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id BIGSERIAL PRIMARY KEY,
					user_id TEXT NOT NULL,
					role TEXT NOT NULL,
					level TEXT NOT NULL,
					resource_path TEXT NOT NULL,
					granted_at TIMESTAMP NOT NULL,
					CONSTRAINT roles_scope_unique UNIQUE (user_id, role, level, resource_path)
				);
				CREATE INDEX IF NOT EXISTS idx_roles_user_id ON roles(user_id);
				CREATE INDEX IF NOT EXISTS idx_roles_resource_path ON roles(resource_path);
			`,
		},
	}
}
