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

CREATE TABLE IF NOT EXISTS account_status (
	account_id           TEXT PRIMARY KEY,
	last_operation       TEXT NOT NULL DEFAULT '',
	last_success_at      DATETIME,
	last_failure_at      DATETIME,
	last_error           TEXT NOT NULL DEFAULT '',
	consecutive_failures INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS write_journal (
	id         TEXT PRIMARY KEY,
	account_id TEXT NOT NULL,
	operation  TEXT NOT NULL,
	target_id  TEXT NOT NULL DEFAULT '',
	routing    TEXT NOT NULL DEFAULT '',
	success    INTEGER NOT NULL DEFAULT 0 CHECK(success IN (0, 1)),
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_write_journal_account_id ON write_journal(account_id);
CREATE INDEX IF NOT EXISTS idx_write_journal_created_at ON write_journal(created_at);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE INDEX IF NOT EXISTS idx_write_journal_operation_created
	ON write_journal(operation, created_at);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
