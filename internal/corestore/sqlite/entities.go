package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/untoldecay/treehouse/internal/types"
)

// --- Peer entities: exactly one per node, primary key = nodeID. ---

func (s *Store) GetPeer(ctx context.Context, nodeID types.NodeId) (*types.PeerEntity, error) {
	var e types.PeerEntity
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT node_id, data, version, updated_at FROM peer_entities WHERE node_id = ?
	`, nodeID).Scan(&e.NodeID, &data, &e.Version, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.KindNotFound, "GetPeer", "peer entity not found", nil)
	}
	if err != nil {
		return nil, wrapIO("GetPeer", err)
	}
	e.Data = []byte(data)
	return &e, nil
}

// PutPeer upserts the peer entity for e.NodeID. baseVersion must equal the
// stored version for an update, or 0 for a fresh insert.
func (s *Store) PutPeer(ctx context.Context, e *types.PeerEntity, baseVersion int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM peer_entities WHERE node_id = ?`, e.NodeID).Scan(&current)
		switch {
		case err == sql.ErrNoRows:
			if baseVersion != 0 {
				return types.NewError(types.KindStaleVersion, "PutPeer", "peer entity does not exist", nil)
			}
			e.Version = 1
			e.UpdatedAt = time.Now()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO peer_entities (node_id, data, version, updated_at) VALUES (?, ?, ?, ?)
			`, e.NodeID, string(e.Data), e.Version, e.UpdatedAt)
			return wrapIO("PutPeer", err)
		case err != nil:
			return wrapIO("PutPeer", err)
		}
		if current != baseVersion {
			return types.NewError(types.KindStaleVersion, "PutPeer", "", nil)
		}
		e.Version = baseVersion + 1
		e.UpdatedAt = time.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE peer_entities SET data = ?, version = ?, updated_at = ? WHERE node_id = ? AND version = ?
		`, string(e.Data), e.Version, e.UpdatedAt, e.NodeID, baseVersion)
		return wrapIO("PutPeer", err)
	})
}

func (s *Store) DeletePeer(ctx context.Context, nodeID types.NodeId) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM peer_entities WHERE node_id = ?`, nodeID)
	return wrapIO("DeletePeer", err)
}

// --- Group entities: ordered, zero-or-more per node. ---

func (s *Store) ListGroup(ctx context.Context, nodeID types.NodeId) ([]*types.GroupEntity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, node_id, sort_order, data, version, updated_at
		FROM group_entities WHERE node_id = ? ORDER BY sort_order
	`, nodeID)
	if err != nil {
		return nil, wrapIO("ListGroup", err)
	}
	defer rows.Close()

	var out []*types.GroupEntity
	for rows.Next() {
		var e types.GroupEntity
		var data string
		if err := rows.Scan(&e.ID, &e.NodeID, &e.SortOrder, &data, &e.Version, &e.UpdatedAt); err != nil {
			return nil, wrapIO("ListGroup", err)
		}
		e.Data = []byte(data)
		out = append(out, &e)
	}
	return out, wrapIO("ListGroup", rows.Err())
}

// PutGroupEntity upserts e by id; baseVersion follows the same convention
// as PutPeer (0 for fresh insert, matching stored version for update).
func (s *Store) PutGroupEntity(ctx context.Context, e *types.GroupEntity, baseVersion int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM group_entities WHERE id = ?`, e.ID).Scan(&current)
		switch {
		case err == sql.ErrNoRows:
			if baseVersion != 0 {
				return types.NewError(types.KindStaleVersion, "PutGroupEntity", "group entity does not exist", nil)
			}
			e.Version = 1
			e.UpdatedAt = time.Now()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO group_entities (id, node_id, sort_order, data, version, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
			`, e.ID, e.NodeID, e.SortOrder, string(e.Data), e.Version, e.UpdatedAt)
			return wrapIO("PutGroupEntity", err)
		case err != nil:
			return wrapIO("PutGroupEntity", err)
		}
		if current != baseVersion {
			return types.NewError(types.KindStaleVersion, "PutGroupEntity", "", nil)
		}
		e.Version = baseVersion + 1
		e.UpdatedAt = time.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE group_entities SET node_id = ?, sort_order = ?, data = ?, version = ?, updated_at = ?
			WHERE id = ? AND version = ?
		`, e.NodeID, e.SortOrder, string(e.Data), e.Version, e.UpdatedAt, e.ID, baseVersion)
		return wrapIO("PutGroupEntity", err)
	})
}

func (s *Store) DeleteGroupEntity(ctx context.Context, id types.EntityId) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM group_entities WHERE id = ?`, id)
	return wrapIO("DeleteGroupEntity", err)
}

// ReorderGroup renumbers every entity in order (index 0..n-1 becomes its
// new sort_order) in a single transactional pass, so readers never observe
// a partially-renumbered sequence, per §4.4's ordering contract.
func (s *Store) ReorderGroup(ctx context.Context, nodeID types.NodeId, order []types.EntityId) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for i, id := range order {
			res, err := tx.ExecContext(ctx, `
				UPDATE group_entities SET sort_order = ?, version = version + 1, updated_at = ?
				WHERE id = ? AND node_id = ?
			`, i, time.Now(), id, nodeID)
			if err != nil {
				return wrapIO("ReorderGroup", err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return wrapIO("ReorderGroup", err)
			}
			if affected == 0 {
				return types.NewError(types.KindNotFound, "ReorderGroup", "entity not in this node's group", nil)
			}
		}
		return nil
	})
}

// --- Relational entities: shared across nodes, reference-counted. ---

func (s *Store) GetRelational(ctx context.Context, id types.EntityId) (*types.RelationalEntity, error) {
	var e types.RelationalEntity
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, data, version, updated_at FROM relational_entities WHERE id = ?
	`, id).Scan(&e.ID, &data, &e.Version, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, types.NewError(types.KindNotFound, "GetRelational", "relational entity not found", nil)
	}
	if err != nil {
		return nil, wrapIO("GetRelational", err)
	}
	e.Data = []byte(data)

	refs, err := s.relationalRefs(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Refs = refs
	return &e, nil
}

func (s *Store) relationalRefs(ctx context.Context, id types.EntityId) (map[types.NodeId]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT node_id FROM relational_refs WHERE entity_id = ?`, id)
	if err != nil {
		return nil, wrapIO("relationalRefs", err)
	}
	defer rows.Close()

	refs := make(map[types.NodeId]bool)
	for rows.Next() {
		var n types.NodeId
		if err := rows.Scan(&n); err != nil {
			return nil, wrapIO("relationalRefs", err)
		}
		refs[n] = true
	}
	return refs, wrapIO("relationalRefs", rows.Err())
}

// PutRelational upserts the entity body only; Refs is managed exclusively
// through AddRelationalRef/RemoveRelationalRef and is ignored here.
func (s *Store) PutRelational(ctx context.Context, e *types.RelationalEntity, baseVersion int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM relational_entities WHERE id = ?`, e.ID).Scan(&current)
		switch {
		case err == sql.ErrNoRows:
			if baseVersion != 0 {
				return types.NewError(types.KindStaleVersion, "PutRelational", "relational entity does not exist", nil)
			}
			e.Version = 1
			e.UpdatedAt = time.Now()
			_, err := tx.ExecContext(ctx, `
				INSERT INTO relational_entities (id, data, version, updated_at) VALUES (?, ?, ?, ?)
			`, e.ID, string(e.Data), e.Version, e.UpdatedAt)
			return wrapIO("PutRelational", err)
		case err != nil:
			return wrapIO("PutRelational", err)
		}
		if current != baseVersion {
			return types.NewError(types.KindStaleVersion, "PutRelational", "", nil)
		}
		e.Version = baseVersion + 1
		e.UpdatedAt = time.Now()
		_, err = tx.ExecContext(ctx, `
			UPDATE relational_entities SET data = ?, version = ?, updated_at = ? WHERE id = ? AND version = ?
		`, string(e.Data), e.Version, e.UpdatedAt, e.ID, baseVersion)
		return wrapIO("PutRelational", err)
	})
}

// AddRelationalRef idempotently adds nodeID to entity id's reverse index.
func (s *Store) AddRelationalRef(ctx context.Context, id types.EntityId, nodeID types.NodeId) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO relational_refs (entity_id, node_id) VALUES (?, ?)
	`, id, nodeID)
	return wrapIO("AddRelationalRef", err)
}

// RemoveRelationalRef idempotently drops nodeID's reference; when the
// resulting refcount reaches zero the entity is deleted and deleted is
// true, per invariant 5 in §8.
func (s *Store) RemoveRelationalRef(ctx context.Context, id types.EntityId, nodeID types.NodeId) (bool, error) {
	var deleted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM relational_refs WHERE entity_id = ? AND node_id = ?`, id, nodeID); err != nil {
			return wrapIO("RemoveRelationalRef", err)
		}
		var remaining int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM relational_refs WHERE entity_id = ?`, id).Scan(&remaining); err != nil {
			return wrapIO("RemoveRelationalRef", err)
		}
		if remaining == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM relational_entities WHERE id = ?`, id); err != nil {
				return wrapIO("RemoveRelationalRef", err)
			}
			deleted = true
		}
		return nil
	})
	return deleted, err
}
