package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateHookEventsDetailIndex adds an index over (node_id, occurred_at) on
// hook_events so per-node lookups in that table stay fast as it grows.
func MigrateHookEventsDetailIndex(db *sql.DB) error {
	var idxName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_hook_events_node'
	`).Scan(&idxName)

	if err == sql.ErrNoRows {
		_, err := db.Exec(`CREATE INDEX idx_hook_events_node ON hook_events(node_id, occurred_at)`)
		if err != nil {
			return fmt.Errorf("failed to create idx_hook_events_node: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check idx_hook_events_node: %w", err)
	}
	return nil
}
