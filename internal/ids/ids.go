// Package ids generates and derives the branded identifiers used across
// treehouse: fresh NodeIds for drafts and duplicated subtrees, fresh
// EntityIds for Group/Relational entities, and the deterministic
// distinguished-root ids for a Tree.
//
// Grounded on the teacher's internal/storage/sqlite/ids.go and hash_ids.go
// (hierarchical, collision-checked id generation for issues); treehouse
// trades the teacher's content-hash scheme for github.com/google/uuid
// since nodes, unlike issues, have no stable title/description pair to
// hash at creation time (working-copy drafts are often still unnamed).
package ids

import (
	"github.com/google/uuid"

	"github.com/untoldecay/treehouse/internal/types"
)

// NewNodeID returns a fresh, globally-unique NodeId for a draft node or a
// duplicated/imported node.
func NewNodeID() types.NodeId {
	return types.NodeId(uuid.NewString())
}

// NewEntityID returns a fresh, globally-unique EntityId for a Group or
// Relational entity.
func NewEntityID() types.EntityId {
	return types.EntityId(uuid.NewString())
}

// NewTreeID returns a fresh, globally-unique TreeId.
func NewTreeID() types.TreeId {
	return types.TreeId(uuid.NewString())
}
