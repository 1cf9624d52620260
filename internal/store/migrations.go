package store

// migration is a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []migration{
	{
		Version: 1,
		Name:    "create ingestion failures",
		SQL: `
			CREATE TABLE ingestion_failures (
				id          TEXT PRIMARY KEY,
				channel     TEXT NOT NULL,
				topic       TEXT NOT NULL,
				reason      TEXT NOT NULL,
				payload     TEXT NOT NULL,
				created_at  TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_failures_channel ON ingestion_failures (channel, created_at);
		`,
	},
}
