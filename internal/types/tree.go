package types

import "time"

// Tree is the tuple (treeId, name, rootId, trashRootId, superRootId) from
// the data model. The three node ids are always derived from TreeId and
// stored denormalized for convenient reads.
type Tree struct {
	ID           TreeId
	Name         string
	RootID       NodeId
	TrashRootID  NodeId
	SuperRootID  NodeId
	CreatedAt    time.Time
}

// NewTree builds a Tree with its three distinguished node ids derived from
// id, matching the bit-exact scheme in spec §6.
func NewTree(id TreeId, name string) Tree {
	return Tree{
		ID:          id,
		Name:        name,
		RootID:      RootId(id),
		TrashRootID: TrashRootId(id),
		SuperRootID: SuperRootId(id),
		CreatedAt:   time.Now(),
	}
}

// Node is a participant in a tree. Optional fields are zero-valued when
// absent; IsRemoved and its three trash-only fields are consistent per
// invariant 3 in spec §8.
type Node struct {
	ID       NodeId
	TreeID   TreeId
	ParentID NodeId
	NodeType string
	Name     string

	Description string
	HasChildren bool
	IsDraft     bool

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64

	IsRemoved        bool
	RemovedAt        *time.Time
	OriginalParentID *NodeId
	OriginalName     *string
}

// IsTrashConsistent checks invariant 3: isRemoved iff parentId=trashRootId
// and both restore fields are set.
func (n *Node) IsTrashConsistent(trashRoot NodeId) bool {
	hasRestoreFields := n.OriginalParentID != nil && n.OriginalName != nil
	inTrash := n.ParentID == trashRoot
	if n.IsRemoved {
		return inTrash && hasRestoreFields
	}
	return !hasRestoreFields || !inTrash
}

// OnNameConflict is the caller-chosen policy for resolving sibling-name
// collisions during commit, move, duplicate, paste, and import.
type OnNameConflict string

const (
	ConflictError      OnNameConflict = "error"
	ConflictAutoRename OnNameConflict = "auto-rename"
)

// ChangeEvent describes one successful node write. internal/workingcopy and
// internal/treeops build them, and internal/engine publishes them to the
// Subscribe Service; the Core Store itself publishes none.
type ChangeEvent struct {
	Type   ChangeType
	NodeID NodeId
	Seq    int64
	Before *Node
	After  *Node
}

// ChangeType enumerates the change event kinds.
type ChangeType int

const (
	ChangeCreate ChangeType = iota
	ChangeUpdate
	ChangeDelete
)

func (c ChangeType) String() string {
	switch c {
	case ChangeCreate:
		return "create"
	case ChangeUpdate:
		return "update"
	case ChangeDelete:
		return "delete"
	default:
		return "unknown"
	}
}
