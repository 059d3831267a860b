package types

import (
	"encoding/json"
	"time"
)

// PeerEntity is exactly-one-per-node attached data (primary key = NodeID).
type PeerEntity struct {
	NodeID    NodeId
	Data      json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// GroupEntity is zero-or-more-per-node attached data, ordered by SortOrder
// within a node's group.
type GroupEntity struct {
	ID        EntityId
	NodeID    NodeId
	SortOrder int
	Data      json.RawMessage
	Version   int64
	UpdatedAt time.Time
}

// RelationalEntity is shared across nodes; it persists while len(Refs) > 0
// and is auto-deleted at zero. Refs is the owned reverse index of
// referring node ids, collapsing the node<->entity cycle per §9.
type RelationalEntity struct {
	ID        EntityId
	Data      json.RawMessage
	Refs      map[NodeId]bool
	Version   int64
	UpdatedAt time.Time
}

// RefCount reports how many nodes currently reference the entity.
func (r *RelationalEntity) RefCount() int { return len(r.Refs) }

// EphemeralEntity is tied to a working copy and purged when that working
// copy ends (commit or discard), keyed by the owning working copy's NodeId.
type EphemeralEntity struct {
	ID             EntityId
	WorkingCopyID  NodeId
	Data           json.RawMessage
	Version        int64
	UpdatedAt      time.Time
}

// WorkingCopy is a staged edit kept in the Ephemeral Store until committed
// or discarded, per §3/§4.5.
type WorkingCopy struct {
	NodeID      NodeId
	WorkingCopyOf *NodeId // nil for drafts
	CopiedAt    time.Time
	BaseVersion int64 // meaningful only when WorkingCopyOf != nil
	IsDraft     bool

	// Staged node fields being edited.
	TreeID      TreeId
	ParentID    NodeId
	NodeType    string
	Name        string
	Description string

	// CopiedClasses tracks which entity classes have been copy-on-write
	// staged into the Ephemeral Store during this session.
	CopiedClasses map[EntityClass]bool
}

// NewDraftWorkingCopy builds a working copy for a brand-new node.
func NewDraftWorkingCopy(id NodeId, treeID TreeId, parentID NodeId, nodeType, name string) *WorkingCopy {
	return &WorkingCopy{
		NodeID:        id,
		WorkingCopyOf: nil,
		CopiedAt:      time.Now(),
		IsDraft:       true,
		TreeID:        treeID,
		ParentID:      parentID,
		NodeType:      nodeType,
		Name:          name,
		CopiedClasses: make(map[EntityClass]bool),
	}
}

// NewEditWorkingCopy builds a working copy staging an edit of an existing
// node at its current version.
func NewEditWorkingCopy(n *Node) *WorkingCopy {
	of := n.ID
	return &WorkingCopy{
		NodeID:        n.ID,
		WorkingCopyOf: &of,
		CopiedAt:      time.Now(),
		BaseVersion:   n.Version,
		IsDraft:       false,
		TreeID:        n.TreeID,
		ParentID:      n.ParentID,
		NodeType:      n.NodeType,
		Name:          n.Name,
		Description:   n.Description,
		CopiedClasses: make(map[EntityClass]bool),
	}
}
