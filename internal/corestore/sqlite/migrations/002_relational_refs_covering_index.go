package migrations

import (
	"database/sql"
	"fmt"
)

// MigrateRelationalRefsCoveringIndex adds a covering index over
// (node_id, entity_id) so a node's outgoing Relational references can be
// listed without touching the primary key's (entity_id, node_id) order.
func MigrateRelationalRefsCoveringIndex(db *sql.DB) error {
	var idxName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_relational_refs_node_entity'
	`).Scan(&idxName)

	if err == sql.ErrNoRows {
		_, err := db.Exec(`CREATE INDEX idx_relational_refs_node_entity ON relational_refs(node_id, entity_id)`)
		if err != nil {
			return fmt.Errorf("failed to create idx_relational_refs_node_entity: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check idx_relational_refs_node_entity: %w", err)
	}
	return nil
}
