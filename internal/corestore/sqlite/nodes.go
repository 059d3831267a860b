package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/untoldecay/treehouse/internal/types"
)

func scanNode(row interface {
	Scan(dest ...any) error
}) (*types.Node, error) {
	var n types.Node
	var removedAt sql.NullTime
	var originalParentID, originalName sql.NullString
	var isRemoved, hasChildren, isDraft int

	err := row.Scan(
		&n.ID, &n.TreeID, &n.ParentID, &n.NodeType, &n.Name, &n.Description,
		&hasChildren, &isDraft, &n.CreatedAt, &n.UpdatedAt, &n.Version,
		&isRemoved, &removedAt, &originalParentID, &originalName,
	)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.KindNotFound, "GetNode", "node not found", nil)
	}
	if err != nil {
		return nil, wrapIO("scanNode", err)
	}

	n.HasChildren = hasChildren != 0
	n.IsDraft = isDraft != 0
	n.IsRemoved = isRemoved != 0
	if removedAt.Valid {
		t := removedAt.Time
		n.RemovedAt = &t
	}
	if originalParentID.Valid {
		id := types.NodeId(originalParentID.String)
		n.OriginalParentID = &id
	}
	if originalName.Valid {
		s := originalName.String
		n.OriginalName = &s
	}
	return &n, nil
}

const nodeColumns = `
	id, tree_id, parent_id, node_type, name, description,
	has_children, is_draft, created_at, updated_at, version,
	is_removed, removed_at, original_parent_id, original_name
`

func (s *Store) GetNode(ctx context.Context, treeID types.TreeId, id types.NodeId) (*types.Node, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE tree_id = ? AND id = ?`, treeID, id)
	return scanNode(row)
}

func (s *Store) ListChildren(ctx context.Context, treeID types.TreeId, id types.NodeId) ([]*types.Node, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE tree_id = ? AND parent_id = ? ORDER BY created_at, id`, treeID, id)
	if err != nil {
		return nil, wrapIO("ListChildren", err)
	}
	defer rows.Close()

	var out []*types.Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, wrapIO("ListChildren", rows.Err())
}

// SiblingNames returns the names already taken among parentID's live
// (non-removed) children.
func (s *Store) SiblingNames(ctx context.Context, treeID types.TreeId, parentID types.NodeId) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM nodes WHERE tree_id = ? AND parent_id = ? AND is_removed = 0`, treeID, parentID)
	if err != nil {
		return nil, wrapIO("SiblingNames", err)
	}
	defer rows.Close()

	taken := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, wrapIO("SiblingNames", err)
		}
		taken[name] = true
	}
	return taken, wrapIO("SiblingNames", rows.Err())
}

func (s *Store) CreateNode(ctx context.Context, n *types.Node) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return createNodeTx(ctx, tx, n)
	})
}

func createNodeTx(ctx context.Context, tx *sql.Tx, n *types.Node) error {
	now := time.Now()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now
	}
	n.UpdatedAt = now
	n.Version = 1

	_, err := tx.ExecContext(ctx, `
		INSERT INTO nodes (
			id, tree_id, parent_id, node_type, name, description,
			has_children, is_draft, created_at, updated_at, version,
			is_removed, removed_at, original_parent_id, original_name
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?)
	`,
		n.ID, n.TreeID, n.ParentID, n.NodeType, n.Name, n.Description,
		boolToInt(n.HasChildren), boolToInt(n.IsDraft), n.CreatedAt, n.UpdatedAt,
		boolToInt(n.IsRemoved), nullTime(n.RemovedAt), nullNodeID(n.OriginalParentID), nullString(n.OriginalName),
	)
	return wrapIO("CreateNode", err)
}

// UpdateNode applies an optimistic-concurrency update: it fails with
// KindStaleVersion if the stored version does not equal baseVersion.
func (s *Store) UpdateNode(ctx context.Context, n *types.Node, baseVersion int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return updateNodeTx(ctx, tx, n, baseVersion)
	})
}

func updateNodeTx(ctx context.Context, tx *sql.Tx, n *types.Node, baseVersion int64) error {
	var current int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM nodes WHERE tree_id = ? AND id = ?`, n.TreeID, n.ID).Scan(&current)
	if err == sql.ErrNoRows {
		return types.NewError(types.KindNotFound, "UpdateNode", "node not found", nil)
	}
	if err != nil {
		return wrapIO("UpdateNode", err)
	}
	if current != baseVersion {
		return types.NewError(types.KindStaleVersion, "UpdateNode", "", nil)
	}

	n.UpdatedAt = time.Now()
	n.Version = baseVersion + 1

	res, err := tx.ExecContext(ctx, `
		UPDATE nodes SET
			parent_id = ?, node_type = ?, name = ?, description = ?,
			has_children = ?, is_draft = ?, updated_at = ?, version = ?,
			is_removed = ?, removed_at = ?, original_parent_id = ?, original_name = ?
		WHERE tree_id = ? AND id = ? AND version = ?
	`,
		n.ParentID, n.NodeType, n.Name, n.Description,
		boolToInt(n.HasChildren), boolToInt(n.IsDraft), n.UpdatedAt, n.Version,
		boolToInt(n.IsRemoved), nullTime(n.RemovedAt), nullNodeID(n.OriginalParentID), nullString(n.OriginalName),
		n.TreeID, n.ID, baseVersion,
	)
	if err != nil {
		return wrapIO("UpdateNode", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapIO("UpdateNode", err)
	}
	if affected == 0 {
		return types.NewError(types.KindStaleVersion, "UpdateNode", "concurrent write won the race", nil)
	}
	return nil
}

func (s *Store) DeleteNode(ctx context.Context, treeID types.TreeId, id types.NodeId) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE tree_id = ? AND id = ?`, treeID, id)
		if err != nil {
			return wrapIO("DeleteNode", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return wrapIO("DeleteNode", err)
		}
		if affected == 0 {
			return types.NewError(types.KindNotFound, "DeleteNode", "node not found", nil)
		}
		return nil
	})
}

// Subtree returns id and every descendant, in pre-order, via an iterative
// depth-first walk (sqlite's recursive CTEs would work too, but a
// explicit walk keeps the tree_id scoping obvious at each step).
func (s *Store) Subtree(ctx context.Context, treeID types.TreeId, id types.NodeId) ([]*types.Node, error) {
	root, err := s.GetNode(ctx, treeID, id)
	if err != nil {
		return nil, err
	}
	var out []*types.Node
	stack := []*types.Node{root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out = append(out, n)
		children, err := s.ListChildren(ctx, treeID, n.ID)
		if err != nil {
			return nil, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}
	return out, nil
}

// DetectCycle reports whether newParentID is nodeID itself or a descendant
// of nodeID, which would create a cycle if the move proceeded.
func (s *Store) DetectCycle(ctx context.Context, treeID types.TreeId, nodeID, newParentID types.NodeId) (bool, error) {
	if nodeID == newParentID {
		return true, nil
	}
	cur := newParentID
	for {
		n, err := s.GetNode(ctx, treeID, cur)
		if types.Is(err, types.KindNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if n.ParentID == n.ID {
			// Distinguished super-root is its own parent; stop.
			return false, nil
		}
		if n.ParentID == nodeID {
			return true, nil
		}
		cur = n.ParentID
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullNodeID(id *types.NodeId) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*id), Valid: true}
}
