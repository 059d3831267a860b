package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/untoldecay/treehouse/internal/corestore/sqlite/migrations"
)

// Migration is one idempotent schema change applied after the base schema.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList runs in order every time the store opens; each Func must
// be safe to run against a database that already has it applied, per the
// teacher's pragma_table_info-guarded column-add convention.
var migrationsList = []Migration{
	{"hook_events_detail_index", migrations.MigrateHookEventsDetailIndex},
	{"relational_refs_backfill_index", migrations.MigrateRelationalRefsCoveringIndex},
}

func runMigrations(db *sql.DB) error {
	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
	}
	return nil
}
