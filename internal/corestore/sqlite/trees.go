package sqlite

import (
	"context"
	"database/sql"

	"github.com/untoldecay/treehouse/internal/types"
)

func (s *Store) CreateTree(ctx context.Context, t types.Tree) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO trees (id, name, root_id, trash_root_id, super_root_id, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, t.ID, t.Name, t.RootID, t.TrashRootID, t.SuperRootID, t.CreatedAt)
		if err != nil {
			return wrapIO("CreateTree", err)
		}

		for _, root := range []struct {
			id       types.NodeId
			parentID types.NodeId
		}{
			{t.SuperRootID, t.SuperRootID},
			{t.RootID, t.SuperRootID},
			{t.TrashRootID, t.SuperRootID},
		} {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO nodes (id, tree_id, parent_id, node_type, name, has_children, version, created_at, updated_at)
				VALUES (?, ?, ?, 'distinguished-root', ?, 1, 1, ?, ?)
			`, root.id, t.ID, root.parentID, root.id, t.CreatedAt, t.CreatedAt)
			if err != nil {
				return wrapIO("CreateTree", err)
			}
		}
		return nil
	})
}

func (s *Store) GetTree(ctx context.Context, id types.TreeId) (*types.Tree, error) {
	var t types.Tree
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, root_id, trash_root_id, super_root_id, created_at
		FROM trees WHERE id = ?
	`, id).Scan(&t.ID, &t.Name, &t.RootID, &t.TrashRootID, &t.SuperRootID, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.KindNotFound, "GetTree", "tree not found", nil)
	}
	if err != nil {
		return nil, wrapIO("GetTree", err)
	}
	return &t, nil
}
