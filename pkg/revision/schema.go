package revision

import "database/sql"

// ddl is the abstract persisted-state schema: portable across Postgres and
// SQLite by storing structured columns as JSON text rather than relying on
// a driver-specific jsonb type.
const ddl = `
CREATE TABLE IF NOT EXISTS revision (
	id          INTEGER PRIMARY KEY,
	created_at  TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS document (
	id                INTEGER PRIMARY KEY,
	revision_id       INTEGER NOT NULL,
	orig_revision_id  INTEGER NOT NULL,
	bucket_id         TEXT NOT NULL,
	schema            TEXT NOT NULL,
	name              TEXT NOT NULL,
	data              TEXT NOT NULL,
	_metadata         TEXT NOT NULL,
	deleted           BOOLEAN NOT NULL DEFAULT FALSE,
	created_at        TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS revision_tag (
	revision_id  INTEGER NOT NULL,
	name         TEXT NOT NULL,
	data         TEXT,
	PRIMARY KEY (revision_id, name)
);

CREATE TABLE IF NOT EXISTS validation_policy (
	revision_id  INTEGER NOT NULL,
	name         TEXT NOT NULL,
	status       TEXT NOT NULL,
	PRIMARY KEY (revision_id, name)
);

CREATE TABLE IF NOT EXISTS validation_entry (
	revision_id  INTEGER NOT NULL,
	policy_name  TEXT NOT NULL,
	entry_id     TEXT NOT NULL,
	status       TEXT NOT NULL,
	details      TEXT,
	PRIMARY KEY (revision_id, policy_name, entry_id)
);
`

// Migrate creates the revision store's tables if they do not already exist.
func Migrate(db *sql.DB) error {
	_, err := db.Exec(ddl)
	return err
}
