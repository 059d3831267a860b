// Package treeops implements the Tree Mutation Service (§4.6):
// move/duplicate/trash/recover/remove/paste/import, with name-uniqueness
// resolution, cycle detection, and post-order recursion for destructive
// operations.
//
// Grounded on the teacher's internal/storage/sqlite/resurrection.go
// (tombstone creation and ancestor-chain recreation generalized into
// moveToTrash/recoverFromTrash), collision.go (DetectCollisions /
// CollisionResult generalized into the paste/import name-collision and
// auto-rename path), and the storage.Storage DetectCycles contract
// generalized into the move/duplicate cycle check.
package treeops

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/treehouse/internal/corestore"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/lifecycle"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

// MaxPasteNodes is the boundary in §4.6/§8: a paste or import batch larger
// than this is rejected before any write.
const MaxPasteNodes = 1000

// SeqAllocator assigns the next process-monotone commit sequence number.
type SeqAllocator interface {
	NextSeq(ctx context.Context) (int64, error)
}

// Service implements the Tree Mutation Service.
type Service struct {
	Core      corestore.Store
	Registry  *registry.Registry
	Handlers  entities.HandlerSet
	Lifecycle *lifecycle.Manager
	Seq       SeqAllocator
}

// ClipboardNode is an externally-supplied node body for pasteNodes, keyed
// by its source id so intra-clipboard parent references resolve.
type ClipboardNode struct {
	SourceID       types.NodeId
	SourceParentID types.NodeId // zero value means "root of the pasted batch"
	NodeType       string
	Name           string
	Description    string
}

// MutationResult reports what an operation produced.
type MutationResult struct {
	Seq        int64
	NodeIDs    []types.NodeId
	NewNodeIDs []types.NodeId
	Events     []types.ChangeEvent
}

func (s *Service) nextSeq(ctx context.Context) (int64, error) { return s.Seq.NextSeq(ctx) }

// MoveNodes reparents each of nodeIDs to toParentID, rejecting the whole
// batch with IllegalRelation if toParentID is any input node or a
// descendant of one (a cycle).
func (s *Service) MoveNodes(ctx context.Context, treeID types.TreeId, nodeIDs []types.NodeId, toParentID types.NodeId, onConflict types.OnNameConflict) (*MutationResult, error) {
	for _, id := range nodeIDs {
		if types.IsDistinguishedRoot(treeID, id) {
			return nil, types.NewError(types.KindInvalidArgument, "MoveNodes", "distinguished roots cannot be moved", nil)
		}
		if id == toParentID {
			return nil, types.NewError(types.KindIllegalRelation, "MoveNodes", "cannot move a node under itself", nil)
		}
		cyclic, err := s.Core.DetectCycle(ctx, treeID, id, toParentID)
		if err != nil {
			return nil, err
		}
		if cyclic {
			return nil, types.NewError(types.KindIllegalRelation, "MoveNodes", "would create a cycle", nil)
		}
	}

	movingTypes := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		n, err := s.Core.GetNode(ctx, treeID, id)
		if err != nil {
			return nil, err
		}
		movingTypes = append(movingTypes, n.NodeType)
	}
	if err := s.checkChildPolicy(ctx, treeID, toParentID, movingTypes); err != nil {
		return nil, err
	}

	taken, err := s.Core.SiblingNames(ctx, treeID, toParentID)
	if err != nil {
		return nil, err
	}

	var events []types.ChangeEvent
	for _, id := range nodeIDs {
		n, err := s.Core.GetNode(ctx, treeID, id)
		if err != nil {
			return nil, err
		}
		if cfg, ok := s.Registry.Lookup(n.NodeType); ok && !cfg.CanBeMoved {
			return nil, types.NewError(types.KindInvalidArgument, "MoveNodes", n.NodeType+" cannot be moved", nil)
		}
		oldParent := n.ParentID

		name, err := resolveConflict(n.Name, taken, onConflict)
		if err != nil {
			return nil, err
		}
		taken[name] = true

		if err := s.Lifecycle.BeforeMove(ctx, n, toParentID); err != nil {
			return nil, err
		}

		before := *n
		n.ParentID = toParentID
		n.Name = name
		if err := s.Core.UpdateNode(ctx, n, before.Version); err != nil {
			return nil, err
		}
		s.Lifecycle.AfterMove(ctx, n, oldParent)

		seq, err := s.nextSeq(ctx)
		if err != nil {
			return nil, err
		}
		events = append(events, types.ChangeEvent{Type: types.ChangeUpdate, NodeID: id, Seq: seq, Before: &before, After: n})
	}

	return &MutationResult{Seq: lastSeq(events), NodeIDs: nodeIDs, Events: events}, nil
}

// DuplicateNodes deep-copies each subtree rooted at nodeIDs under
// toParentID. Fresh NodeIds are allocated throughout; Peer/Group entities
// are cloned, Relational entities are re-referenced (addReference on the
// same entity, never duplicated), and Ephemeral attachments are not
// carried (§9 open question: duplication does not open a working-copy
// session for the copies).
func (s *Service) DuplicateNodes(ctx context.Context, treeID types.TreeId, nodeIDs []types.NodeId, toParentID types.NodeId, onConflict types.OnNameConflict) (*MutationResult, error) {
	rootTypes := make([]string, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		n, err := s.Core.GetNode(ctx, treeID, id)
		if err != nil {
			return nil, err
		}
		rootTypes = append(rootTypes, n.NodeType)
	}
	if err := s.checkChildPolicy(ctx, treeID, toParentID, rootTypes); err != nil {
		return nil, err
	}

	taken, err := s.Core.SiblingNames(ctx, treeID, toParentID)
	if err != nil {
		return nil, err
	}

	var newIDs []types.NodeId
	var events []types.ChangeEvent

	for _, rootID := range nodeIDs {
		subtree, err := s.Core.Subtree(ctx, treeID, rootID)
		if err != nil {
			return nil, err
		}

		mapping := make(map[types.NodeId]types.NodeId, len(subtree))
		for _, n := range subtree {
			mapping[n.ID] = ids.NewNodeID()
		}

		for i, n := range subtree {
			newParent := mapping[n.ParentID]
			if i == 0 {
				newParent = toParentID
			}
			newID := mapping[n.ID]

			name := n.Name
			if i == 0 {
				name, err = resolveConflict(n.Name, taken, onConflict)
				if err != nil {
					return nil, err
				}
				taken[name] = true
			}

			copyNode := &types.Node{
				ID: newID, TreeID: treeID, ParentID: newParent,
				NodeType: n.NodeType, Name: name, Description: n.Description,
				HasChildren: n.HasChildren,
			}
			if err := s.Lifecycle.BeforeCreate(ctx, copyNode); err != nil {
				return nil, err
			}
			if err := s.Core.CreateNode(ctx, copyNode); err != nil {
				return nil, err
			}
			s.Lifecycle.AfterCreate(ctx, copyNode)

			if err := s.cloneEntities(ctx, n.NodeType, n.ID, newID); err != nil {
				return nil, err
			}

			newIDs = append(newIDs, newID)
			seq, err := s.nextSeq(ctx)
			if err != nil {
				return nil, err
			}
			events = append(events, types.ChangeEvent{Type: types.ChangeCreate, NodeID: newID, Seq: seq, After: copyNode})
		}
	}

	return &MutationResult{Seq: lastSeq(events), NewNodeIDs: newIDs, Events: events}, nil
}

// cloneEntities duplicates srcID's Peer and Group entities onto dstID.
// Relational entities are never cloned here: DuplicateNodes copies the
// node's relRefField slot onto the new node body, and
// Lifecycle.AfterCreate already adds that entity's reference for the new
// node, satisfying "re-referenced, not duplicated" per §4.6. Ephemeral
// attachments are never carried across duplication, per §9.
func (s *Service) cloneEntities(ctx context.Context, nodeType string, srcID, dstID types.NodeId) error {
	cfg, ok := s.Registry.Lookup(nodeType)
	if !ok {
		return nil
	}
	for _, binding := range cfg.Entities {
		if _, ok := s.Handlers.Lookup(binding.HandlerKey); !ok {
			continue
		}
		switch binding.Class {
		case types.ClassPeer:
			src, err := s.Core.GetPeer(ctx, srcID)
			if types.Is(err, types.KindNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := s.Core.PutPeer(ctx, &types.PeerEntity{NodeID: dstID, Data: src.Data}, 0); err != nil {
				return err
			}
		case types.ClassGroup:
			list, err := s.Core.ListGroup(ctx, srcID)
			if err != nil {
				return err
			}
			for _, e := range list {
				clone := &types.GroupEntity{ID: ids.NewEntityID(), NodeID: dstID, SortOrder: e.SortOrder, Data: e.Data}
				if err := s.Core.PutGroupEntity(ctx, clone, 0); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// MoveNodesToTrash marks each node isRemoved, saving its original parent
// and name, and reparents it to the tree's trash root. Descendants are
// left clean (not marked isRemoved) and reached transitively via the
// parent chain, per the "mark only top" resolution of the §9 open
// question.
func (s *Service) MoveNodesToTrash(ctx context.Context, treeID types.TreeId, nodeIDs []types.NodeId) (*MutationResult, error) {
	tree, err := s.Core.GetTree(ctx, treeID)
	if err != nil {
		return nil, err
	}

	var events []types.ChangeEvent
	for _, id := range nodeIDs {
		n, err := s.Core.GetNode(ctx, treeID, id)
		if err != nil {
			return nil, err
		}
		if types.IsDistinguishedRoot(treeID, id) {
			return nil, types.NewError(types.KindInvalidArgument, "MoveNodesToTrash", "distinguished roots cannot be trashed", nil)
		}
		if cfg, ok := s.Registry.Lookup(n.NodeType); ok && !cfg.CanBeDeleted {
			return nil, types.NewError(types.KindInvalidArgument, "MoveNodesToTrash", n.NodeType+" cannot be deleted", nil)
		}

		before := *n
		origParent := n.ParentID
		origName := n.Name
		n.IsRemoved = true
		now := time.Now()
		n.RemovedAt = &now
		n.OriginalParentID = &origParent
		n.OriginalName = &origName
		n.ParentID = tree.TrashRootID

		if err := s.Core.UpdateNode(ctx, n, before.Version); err != nil {
			return nil, err
		}
		seq, err := s.nextSeq(ctx)
		if err != nil {
			return nil, err
		}
		events = append(events, types.ChangeEvent{Type: types.ChangeUpdate, NodeID: id, Seq: seq, Before: &before, After: n})
	}
	return &MutationResult{Seq: lastSeq(events), NodeIDs: nodeIDs, Events: events}, nil
}

// RecoverFromTrash restores each removed node to toParentID (or its
// originalParentID when toParentID is empty), failing NotFound per item
// when the original parent no longer exists, and applying onConflict
// against the restore target's current siblings.
func (s *Service) RecoverFromTrash(ctx context.Context, treeID types.TreeId, nodeIDs []types.NodeId, toParentID types.NodeId, onConflict types.OnNameConflict) (*MutationResult, error) {
	var events []types.ChangeEvent
	for _, id := range nodeIDs {
		n, err := s.Core.GetNode(ctx, treeID, id)
		if err != nil {
			return nil, err
		}
		if !n.IsRemoved {
			return nil, types.NewError(types.KindInvalidArgument, "RecoverFromTrash", "node is not in trash", nil)
		}

		target := toParentID
		if target == "" {
			target = *n.OriginalParentID
		}
		if _, err := s.Core.GetNode(ctx, treeID, target); err != nil {
			return nil, types.NewError(types.KindNotFound, "RecoverFromTrash", "restore target parent no longer exists", err)
		}
		if err := s.checkChildPolicy(ctx, treeID, target, []string{n.NodeType}); err != nil {
			return nil, err
		}

		taken, err := s.Core.SiblingNames(ctx, treeID, target)
		if err != nil {
			return nil, err
		}
		name, err := resolveConflict(*n.OriginalName, taken, onConflict)
		if err != nil {
			return nil, err
		}

		before := *n
		n.ParentID = target
		n.Name = name
		n.IsRemoved = false
		n.RemovedAt = nil
		n.OriginalParentID = nil
		n.OriginalName = nil

		if err := s.Core.UpdateNode(ctx, n, before.Version); err != nil {
			return nil, err
		}
		seq, err := s.nextSeq(ctx)
		if err != nil {
			return nil, err
		}
		events = append(events, types.ChangeEvent{Type: types.ChangeUpdate, NodeID: id, Seq: seq, Before: &before, After: n})
	}
	return &MutationResult{Seq: lastSeq(events), NodeIDs: nodeIDs, Events: events}, nil
}

// Remove hard-deletes the subtree rooted at each node via post-order
// traversal, running classification-appropriate cleanup for every deleted
// node. Identical whether or not the node is currently trashed, per the
// §9 open-question resolution: trash is staging only.
func (s *Service) Remove(ctx context.Context, treeID types.TreeId, nodeIDs []types.NodeId) (*MutationResult, error) {
	var events []types.ChangeEvent
	for _, rootID := range nodeIDs {
		if types.IsDistinguishedRoot(treeID, rootID) {
			return nil, types.NewError(types.KindInvalidArgument, "Remove", "distinguished roots cannot be removed", nil)
		}
		if root, err := s.Core.GetNode(ctx, treeID, rootID); err != nil {
			return nil, err
		} else if cfg, ok := s.Registry.Lookup(root.NodeType); ok && !cfg.CanBeDeleted {
			return nil, types.NewError(types.KindInvalidArgument, "Remove", root.NodeType+" cannot be deleted", nil)
		}
		subtree, err := s.Core.Subtree(ctx, treeID, rootID)
		if err != nil {
			return nil, err
		}
		// Post-order: children before parents.
		for i := len(subtree) - 1; i >= 0; i-- {
			n := subtree[i]
			if err := s.Lifecycle.BeforeDelete(ctx, n); err != nil {
				return nil, err
			}
			if err := s.cleanupEntities(ctx, n.NodeType, n.ID); err != nil {
				return nil, err
			}
			if err := s.Core.DeleteNode(ctx, treeID, n.ID); err != nil {
				return nil, err
			}
			s.Lifecycle.AfterDelete(ctx, n)

			seq, err := s.nextSeq(ctx)
			if err != nil {
				return nil, err
			}
			events = append(events, types.ChangeEvent{Type: types.ChangeDelete, NodeID: n.ID, Seq: seq, Before: n})
		}
	}
	return &MutationResult{Seq: lastSeq(events), NodeIDs: nodeIDs, Events: events}, nil
}

// cleanupEntities runs Cleanup on every handler bound to nodeType's
// registry config, covering Peer destruction and Group batch-delete (each
// handler's Cleanup decides its own behavior per §4.4; Relational Cleanup
// is a no-op).
func (s *Service) cleanupEntities(ctx context.Context, nodeType string, nodeID types.NodeId) error {
	cfg, ok := s.Registry.Lookup(nodeType)
	if !ok {
		return nil
	}
	for _, binding := range cfg.Entities {
		h, ok := s.Handlers.Lookup(binding.HandlerKey)
		if !ok {
			continue
		}
		if err := h.Cleanup(ctx, nodeID); err != nil {
			return err
		}
	}
	return nil
}

// PasteNodes behaves as DuplicateNodes over externally-supplied node
// bodies: caps at MaxPasteNodes and validates toParentID and every body's
// name before any write.
func (s *Service) PasteNodes(ctx context.Context, treeID types.TreeId, clipboard []ClipboardNode, toParentID types.NodeId, onConflict types.OnNameConflict) (*MutationResult, error) {
	if len(clipboard) > MaxPasteNodes {
		return nil, types.NewError(types.KindInvalidArgument, "PasteNodes", fmt.Sprintf("paste batch of %d exceeds the %d-node cap", len(clipboard), MaxPasteNodes), nil)
	}
	if _, err := s.Core.GetNode(ctx, treeID, toParentID); err != nil {
		return nil, err
	}
	for _, c := range clipboard {
		if err := types.ValidateName(c.Name); err != nil {
			return nil, err
		}
	}
	if err := s.checkChildPolicy(ctx, treeID, toParentID, batchRootTypes(clipboard)); err != nil {
		return nil, err
	}
	return s.pasteOrImport(ctx, treeID, clipboard, toParentID, onConflict, nil)
}

// batchRootTypes returns the nodeTypes of clipboard entries that land
// directly under the paste/import destination (SourceParentID unset).
func batchRootTypes(clipboard []ClipboardNode) []string {
	var out []string
	for _, c := range clipboard {
		if c.SourceParentID == "" {
			out = append(out, c.NodeType)
		}
	}
	return out
}

// ImportNodes is identical to PasteNodes but with an externally-supplied
// source-to-destination NodeId mapping for rewire, so callers that already
// minted stable ids (e.g. a prior export) can reuse them instead of having
// fresh ones allocated.
func (s *Service) ImportNodes(ctx context.Context, treeID types.TreeId, clipboard []ClipboardNode, toParentID types.NodeId, onConflict types.OnNameConflict, idMapping map[types.NodeId]types.NodeId) (*MutationResult, error) {
	if len(clipboard) > MaxPasteNodes {
		return nil, types.NewError(types.KindInvalidArgument, "ImportNodes", fmt.Sprintf("import batch of %d exceeds the %d-node cap", len(clipboard), MaxPasteNodes), nil)
	}
	if _, err := s.Core.GetNode(ctx, treeID, toParentID); err != nil {
		return nil, err
	}
	for _, c := range clipboard {
		if err := types.ValidateName(c.Name); err != nil {
			return nil, err
		}
	}
	if err := s.checkChildPolicy(ctx, treeID, toParentID, batchRootTypes(clipboard)); err != nil {
		return nil, err
	}
	return s.pasteOrImport(ctx, treeID, clipboard, toParentID, onConflict, idMapping)
}

func (s *Service) pasteOrImport(ctx context.Context, treeID types.TreeId, clipboard []ClipboardNode, toParentID types.NodeId, onConflict types.OnNameConflict, idMapping map[types.NodeId]types.NodeId) (*MutationResult, error) {
	taken, err := s.Core.SiblingNames(ctx, treeID, toParentID)
	if err != nil {
		return nil, err
	}

	mapping := make(map[types.NodeId]types.NodeId, len(clipboard))
	for _, c := range clipboard {
		if idMapping != nil {
			if dst, ok := idMapping[c.SourceID]; ok {
				mapping[c.SourceID] = dst
				continue
			}
		}
		mapping[c.SourceID] = ids.NewNodeID()
	}

	var newIDs []types.NodeId
	var events []types.ChangeEvent
	for _, c := range clipboard {
		newID := mapping[c.SourceID]
		parent := toParentID
		if c.SourceParentID != "" {
			if mapped, ok := mapping[c.SourceParentID]; ok {
				parent = mapped
			}
		}

		name := c.Name
		if parent == toParentID {
			name, err = resolveConflict(c.Name, taken, onConflict)
			if err != nil {
				return nil, err
			}
			taken[name] = true
		}

		n := &types.Node{ID: newID, TreeID: treeID, ParentID: parent, NodeType: c.NodeType, Name: name, Description: c.Description}
		if err := s.Lifecycle.BeforeCreate(ctx, n); err != nil {
			return nil, err
		}
		if err := s.Core.CreateNode(ctx, n); err != nil {
			return nil, err
		}
		s.Lifecycle.AfterCreate(ctx, n)

		newIDs = append(newIDs, newID)
		seq, err := s.nextSeq(ctx)
		if err != nil {
			return nil, err
		}
		events = append(events, types.ChangeEvent{Type: types.ChangeCreate, NodeID: newID, Seq: seq, After: n})
	}

	return &MutationResult{Seq: lastSeq(events), NewNodeIDs: newIDs, Events: events}, nil
}

// checkChildPolicy enforces the destination parent's allowedChildren and
// maxChildren flags (§4.1) against a batch of incoming node types landing
// directly under toParentID. A parent with no registered config (the
// distinguished roots) imposes no restriction.
func (s *Service) checkChildPolicy(ctx context.Context, treeID types.TreeId, toParentID types.NodeId, incomingTypes []string) error {
	parent, err := s.Core.GetNode(ctx, treeID, toParentID)
	if err != nil {
		return err
	}
	pcfg, ok := s.Registry.Lookup(parent.NodeType)
	if !ok {
		return nil
	}
	for _, t := range incomingTypes {
		if !pcfg.AllowsChild(t) {
			return types.NewError(types.KindIllegalRelation, "checkChildPolicy", parent.NodeType+" does not allow children of type "+t, nil)
		}
	}
	if pcfg.MaxChildren > 0 {
		existing, err := s.Core.ListChildren(ctx, treeID, toParentID)
		if err != nil {
			return err
		}
		if len(existing)+len(incomingTypes) > pcfg.MaxChildren {
			return types.NewError(types.KindIllegalRelation, "checkChildPolicy", "parent has reached its maxChildren limit", nil)
		}
	}
	return nil
}

// resolveConflict applies onConflict to name against taken, mirroring the
// commit-time policy in §4.5 step 2.
func resolveConflict(name string, taken map[string]bool, onConflict types.OnNameConflict) (string, error) {
	if !taken[name] {
		return name, nil
	}
	if onConflict == types.ConflictAutoRename {
		return types.NextConflictName(name, taken), nil
	}
	return "", types.NewError(types.KindNameNotUnique, "resolveConflict", "name collides with an existing sibling", nil)
}

func lastSeq(events []types.ChangeEvent) int64 {
	if len(events) == 0 {
		return 0
	}
	return events[len(events)-1].Seq
}
