package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS notification_cache (
	namespace           TEXT NOT NULL,
	position            INTEGER NOT NULL,
	id                  TEXT NOT NULL,
	user_id             TEXT NOT NULL DEFAULT '',
	type                TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL DEFAULT '',
	message             TEXT NOT NULL DEFAULT '',
	read                INTEGER NOT NULL DEFAULT 0,
	related_entity_id   TEXT NOT NULL DEFAULT '',
	related_entity_type TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL,
	PRIMARY KEY (namespace, position)
);

CREATE INDEX IF NOT EXISTS idx_notification_cache_id ON notification_cache(namespace, id);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS query_cache (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
