package sqlite

import "database/sql"

// schema holds the document tree as one row per scalar leaf.
// Subtree reads and deletes are range scans over the path primary key:
// every descendant of "p" sorts between "p/" and "p0" ('0' follows '/').
const schema = `
CREATE TABLE IF NOT EXISTS nodes (
    path TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// runMigrations executes the schema setup.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}
