// Package corestore defines the Core Store contract (§4.2): the durable,
// version-tracked tree storage every committed node and non-ephemeral
// entity lives in. internal/corestore/sqlite provides the only
// implementation, but callers (internal/workingcopy, internal/treeops,
// internal/engine) depend only on this interface so the storage backend
// stays swappable, mirroring the teacher's internal/storage.Storage
// seam over internal/storage/sqlite.
package corestore

import (
	"context"

	"github.com/untoldecay/treehouse/internal/types"
)

// ChangeSink is the callback installed with SetChangeSink. The Core Store's
// write methods do not invoke it: change events are built by
// internal/workingcopy and internal/treeops and published to the Subscribe
// Service by internal/engine after each successful write.
type ChangeSink func(types.ChangeEvent)

// Store is the durable Core Store. All methods are safe for concurrent
// use; writers serialize internally via the underlying database's
// transaction machinery (§5: the engine itself stays single-threaded, but
// the store contract does not assume that).
type Store interface {
	// CreateTree inserts a brand-new tree along with its three
	// distinguished nodes (root, trash root, super root).
	CreateTree(ctx context.Context, t types.Tree) error
	GetTree(ctx context.Context, id types.TreeId) (*types.Tree, error)

	// GetNode returns a node by id, or a KindNotFound *types.Error.
	GetNode(ctx context.Context, treeID types.TreeId, id types.NodeId) (*types.Node, error)
	// ListChildren returns id's direct children in stable creation order.
	ListChildren(ctx context.Context, treeID types.TreeId, id types.NodeId) ([]*types.Node, error)
	// SiblingNames returns the set of names already taken among parentID's
	// live (non-removed) children, for collision checks.
	SiblingNames(ctx context.Context, treeID types.TreeId, parentID types.NodeId) (map[string]bool, error)

	// CreateNode durably inserts n (n.Version is ignored and set to 1). It
	// publishes no change event (see ChangeSink).
	CreateNode(ctx context.Context, n *types.Node) error
	// UpdateNode applies an optimistic-concurrency update: it fails with
	// KindStaleVersion if the stored version != baseVersion. On success the
	// stored version is baseVersion+1. It publishes no change event.
	UpdateNode(ctx context.Context, n *types.Node, baseVersion int64) error
	// DeleteNode hard-deletes n (post-order callers must have already
	// deleted/orphaned its children). It publishes no change event.
	DeleteNode(ctx context.Context, treeID types.TreeId, id types.NodeId) error

	// Subtree returns id and every descendant, in pre-order.
	Subtree(ctx context.Context, treeID types.TreeId, id types.NodeId) ([]*types.Node, error)
	// DetectCycle reports whether moving nodeID to become a child of
	// newParentID would create a cycle (newParentID is nodeID or a
	// descendant of nodeID).
	DetectCycle(ctx context.Context, treeID types.TreeId, nodeID, newParentID types.NodeId) (bool, error)

	// Entities.
	GetPeer(ctx context.Context, nodeID types.NodeId) (*types.PeerEntity, error)
	PutPeer(ctx context.Context, e *types.PeerEntity, baseVersion int64) error
	DeletePeer(ctx context.Context, nodeID types.NodeId) error

	ListGroup(ctx context.Context, nodeID types.NodeId) ([]*types.GroupEntity, error)
	PutGroupEntity(ctx context.Context, e *types.GroupEntity, baseVersion int64) error
	DeleteGroupEntity(ctx context.Context, id types.EntityId) error
	ReorderGroup(ctx context.Context, nodeID types.NodeId, order []types.EntityId) error

	GetRelational(ctx context.Context, id types.EntityId) (*types.RelationalEntity, error)
	PutRelational(ctx context.Context, e *types.RelationalEntity, baseVersion int64) error
	AddRelationalRef(ctx context.Context, id types.EntityId, nodeID types.NodeId) error
	// RemoveRelationalRef drops nodeID's reference; when the resulting
	// refcount is zero the entity is deleted and deleted reports true.
	RemoveRelationalRef(ctx context.Context, id types.EntityId, nodeID types.NodeId) (deleted bool, err error)

	// SetChangeSink installs the sink callback. Only one sink is supported;
	// internal/engine wires it to internal/subscribe. The write methods
	// above never invoke it.
	SetChangeSink(sink ChangeSink)

	// NextSeq returns a fresh, monotonically increasing sequence number
	// from the store's own counter. The engine assigns command seqs from
	// internal/command.Processor, not from this counter.
	NextSeq(ctx context.Context) (int64, error)

	Close() error
}
