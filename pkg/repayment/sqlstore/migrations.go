package sqlstore

// migration is a schema change; each one records its version in schema_version.
type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
			CREATE TABLE IF NOT EXISTS schema_version (
				version INTEGER NOT NULL
			);
			CREATE TABLE IF NOT EXISTS repayments (
				entity_id         TEXT PRIMARY KEY,
				entity_name       TEXT NOT NULL,
				entity_group_id   TEXT NOT NULL DEFAULT '',
				display_name      TEXT NOT NULL DEFAULT '',
				description       TEXT NOT NULL DEFAULT '',
				logo_url          TEXT NOT NULL DEFAULT '',
				keywords          TEXT NOT NULL DEFAULT 'null',
				ranking_hint      REAL,
				expiration_time   REAL,
				modification_time REAL,
				activity_type     TEXT NOT NULL DEFAULT 'null',
				is_public_data    INTEGER,
				extras            TEXT NOT NULL DEFAULT 'null',
				payment_id        TEXT NOT NULL,
				updated_at        INTEGER NOT NULL
			);
			INSERT INTO schema_version (version) VALUES (1);`,
	},
	{
		version: 2,
		sql: `
			CREATE INDEX IF NOT EXISTS idx_repayments_group ON repayments (entity_group_id);
			INSERT INTO schema_version (version) VALUES (2);`,
	},
}
