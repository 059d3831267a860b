// Package workingcopy implements the Working-Copy Protocol (§4.5): draft
// and edit creation, copy-on-write entity staging, and commit/discard with
// optimistic-concurrency checking. This is the hardest-engineering
// subsystem per the spec, so it is kept as its own package rather than
// folded into internal/treeops, mirroring how the teacher isolates its
// transactional closure idiom (storage.Transaction's BEGIN
// IMMEDIATE/rollback-on-error/commit-on-nil doc comment) as a seam other
// packages build on rather than reimplement.
package workingcopy

import (
	"context"

	"github.com/untoldecay/treehouse/internal/corestore"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

// Hooks is the minimal surface the Lifecycle Manager exposes back into the
// commit path, kept as a narrow interface here (rather than an import of
// internal/lifecycle) to avoid a package cycle: internal/lifecycle depends
// on internal/registry and internal/entities, both of which workingcopy
// also depends on, and internal/engine is the only place that needs to
// know both concrete types.
//
// The ordering in §4.7 is beforeCreate → write → refcount → afterCreate
// (and beforeUpdate → write → afterUpdate), so Commit calls Before* ahead
// of the Core Store write and After* once it durably succeeds. A
// before-hook error aborts the commit only when the node type opted into
// stopOnError; the Manager itself decides that and returns a non-nil error
// only in that case, so Commit just propagates whatever it gets back.
type Hooks interface {
	BeforeCreate(ctx context.Context, n *types.Node) error
	AfterCreate(ctx context.Context, n *types.Node)
	BeforeUpdate(ctx context.Context, before, after *types.Node) error
	AfterUpdate(ctx context.Context, before, after *types.Node)
}

// SeqAllocator assigns the next process-monotone commit sequence number,
// satisfied by internal/command.Processor.
type SeqAllocator interface {
	NextSeq(ctx context.Context) (int64, error)
}

// Protocol wires the Core Store, Ephemeral Store, Node Type Registry, and
// entity handlers together to implement create/edit/commit/discard.
type Protocol struct {
	Core     corestore.Store
	Eph      *ephemeralstore.Store
	Registry *registry.Registry
	Handlers entities.HandlerSet
	Hooks    Hooks
	Seq      SeqAllocator
}

// CreateDraft allocates a fresh NodeId and stages a new-node working copy
// (§4.5 "Create — Draft"). name is resolved against the onNameConflict
// policy only at commit time, not here.
func (p *Protocol) CreateDraft(ctx context.Context, treeID types.TreeId, parentID types.NodeId, nodeType, name string) (*types.WorkingCopy, error) {
	cfg, err := p.Registry.MustLookup(nodeType)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateName(name); err != nil {
		return nil, err
	}
	if err := p.checkCreateUnderParent(ctx, treeID, parentID, nodeType, cfg); err != nil {
		return nil, err
	}
	id := ids.NewNodeID()
	wc := types.NewDraftWorkingCopy(id, treeID, parentID, nodeType, name)
	if err := p.Eph.CreateWorkingCopy(ctx, wc); err != nil {
		return nil, err
	}
	return wc, nil
}

// CreateEdit reads node at its current version and stages a working copy
// for editing it (§4.5 "Create — Edit"). Fails with Conflict if one
// already exists for this NodeId.
func (p *Protocol) CreateEdit(ctx context.Context, treeID types.TreeId, nodeID types.NodeId) (*types.WorkingCopy, error) {
	n, err := p.Core.GetNode(ctx, treeID, nodeID)
	if err != nil {
		return nil, err
	}
	wc := types.NewEditWorkingCopy(n)
	if err := p.Eph.CreateWorkingCopy(ctx, wc); err != nil {
		return nil, err
	}
	return wc, nil
}

// Update mutates only the Ephemeral working-copy record. fn receives the
// current working copy and returns the edited copy; callers set whichever
// node fields they're changing.
func (p *Protocol) Update(ctx context.Context, nodeID types.NodeId, fn func(*types.WorkingCopy)) (*types.WorkingCopy, error) {
	wc, err := p.Eph.GetWorkingCopy(ctx, nodeID)
	if err != nil {
		return nil, err
	}
	fn(wc)
	if err := p.Eph.UpdateWorkingCopy(ctx, wc); err != nil {
		return nil, err
	}
	return wc, nil
}

// StagePeer copy-on-write stages the node's Peer entity body into the
// Ephemeral Store the first time this working-copy session touches the
// class, then applies edit to the staged copy. Subsequent calls mutate the
// already-staged body in place.
func (p *Protocol) StagePeer(ctx context.Context, nodeID types.NodeId, edit func(*types.PeerEntity)) error {
	wc, err := p.Eph.GetWorkingCopy(ctx, nodeID)
	if err != nil {
		return err
	}
	if !wc.CopiedClasses[types.ClassPeer] {
		var body types.PeerEntity
		if wc.WorkingCopyOf != nil {
			cur, err := p.Core.GetPeer(ctx, *wc.WorkingCopyOf)
			if err != nil && !types.Is(err, types.KindNotFound) {
				return err
			}
			if cur != nil {
				body = *cur
			}
		}
		body.NodeID = nodeID
		if err := p.Eph.PutPeer(ctx, &body); err != nil {
			return err
		}
		wc.CopiedClasses[types.ClassPeer] = true
		if err := p.Eph.UpdateWorkingCopy(ctx, wc); err != nil {
			return err
		}
	}
	staged, err := p.Eph.GetPeer(ctx, nodeID)
	if err != nil {
		return err
	}
	edit(staged)
	return p.Eph.PutPeer(ctx, staged)
}

// StageGroup copy-on-write stages the node's Group entities into the
// Ephemeral Store the first time this session touches the class.
func (p *Protocol) StageGroup(ctx context.Context, nodeID types.NodeId, edit func([]*types.GroupEntity) []*types.GroupEntity) error {
	wc, err := p.Eph.GetWorkingCopy(ctx, nodeID)
	if err != nil {
		return err
	}
	if !wc.CopiedClasses[types.ClassGroup] {
		var list []*types.GroupEntity
		if wc.WorkingCopyOf != nil {
			list, err = p.Core.ListGroup(ctx, *wc.WorkingCopyOf)
			if err != nil {
				return err
			}
		}
		if err := p.Eph.PutGroup(ctx, nodeID, list); err != nil {
			return err
		}
		wc.CopiedClasses[types.ClassGroup] = true
		if err := p.Eph.UpdateWorkingCopy(ctx, wc); err != nil {
			return err
		}
	}
	staged, err := p.Eph.ListGroup(ctx, nodeID)
	if err != nil {
		return err
	}
	return p.Eph.PutGroup(ctx, nodeID, edit(staged))
}

// CommitResult reports the outcome of a successful commit.
type CommitResult struct {
	NodeID types.NodeId
	Seq    int64
	Events []types.ChangeEvent
}

// Commit executes §4.5 steps 1-6: locate the working copy, resolve
// name-conflict / optimistic-concurrency, apply to Core, clean up
// Ephemeral state, and assign seq. It publishes nothing: the change event
// is returned in CommitResult for the caller to publish. Steps 3-5 do not
// share one transaction: each Core Store call commits on its own (the
// sqlite implementation's per-call withTx), so a failure part-way leaves
// the earlier writes in place.
func (p *Protocol) Commit(ctx context.Context, nodeID types.NodeId, onConflict types.OnNameConflict) (*CommitResult, error) {
	wc, err := p.Eph.GetWorkingCopy(ctx, nodeID)
	if err != nil {
		return nil, err
	}

	if !wc.IsDraft {
		current, err := p.Core.GetNode(ctx, wc.TreeID, nodeID)
		if err != nil {
			return nil, err
		}
		if current.Version > wc.BaseVersion {
			return nil, types.NewError(types.KindStaleVersion, "Commit", "node changed since working copy was opened", nil)
		}
	}

	name, err := p.resolveName(ctx, wc, onConflict)
	if err != nil {
		return nil, err
	}
	wc.Name = name

	var before *types.Node
	var after *types.Node
	if wc.IsDraft {
		after = &types.Node{
			ID: wc.NodeID, TreeID: wc.TreeID, ParentID: wc.ParentID,
			NodeType: wc.NodeType, Name: wc.Name, Description: wc.Description,
			IsDraft: false,
		}
		if p.Hooks != nil {
			if err := p.Hooks.BeforeCreate(ctx, after); err != nil {
				return nil, err
			}
		}
		if err := p.Core.CreateNode(ctx, after); err != nil {
			return nil, err
		}
		if p.Hooks != nil {
			p.Hooks.AfterCreate(ctx, after)
		}
	} else {
		before, err = p.Core.GetNode(ctx, wc.TreeID, nodeID)
		if err != nil {
			return nil, err
		}
		cfg, err := p.Registry.MustLookup(wc.NodeType)
		if err != nil {
			return nil, err
		}
		if !cfg.CanBeRenamed && wc.Name != before.Name {
			return nil, types.NewError(types.KindInvalidArgument, "Commit", wc.NodeType+" cannot be renamed", nil)
		}
		if !cfg.CanBeMoved && wc.ParentID != before.ParentID {
			return nil, types.NewError(types.KindInvalidArgument, "Commit", wc.NodeType+" cannot be moved", nil)
		}
		after = &types.Node{
			ID: nodeID, TreeID: wc.TreeID, ParentID: wc.ParentID,
			NodeType: wc.NodeType, Name: wc.Name, Description: wc.Description,
			CreatedAt: before.CreatedAt, IsDraft: false,
			IsRemoved: before.IsRemoved, RemovedAt: before.RemovedAt,
			OriginalParentID: before.OriginalParentID, OriginalName: before.OriginalName,
		}
		if p.Hooks != nil {
			if err := p.Hooks.BeforeUpdate(ctx, before, after); err != nil {
				return nil, err
			}
		}
		if err := p.Core.UpdateNode(ctx, after, wc.BaseVersion); err != nil {
			return nil, err
		}
		if p.Hooks != nil {
			p.Hooks.AfterUpdate(ctx, before, after)
		}
	}

	if err := p.applyStagedEntities(ctx, wc, nodeID); err != nil {
		return nil, err
	}

	if err := p.Eph.DeleteWorkingCopy(ctx, nodeID); err != nil {
		return nil, err
	}

	seq, err := p.Seq.NextSeq(ctx)
	if err != nil {
		return nil, err
	}

	changeType := types.ChangeUpdate
	if wc.IsDraft {
		changeType = types.ChangeCreate
	}
	ev := types.ChangeEvent{Type: changeType, NodeID: nodeID, Seq: seq, Before: before, After: after}

	return &CommitResult{NodeID: nodeID, Seq: seq, Events: []types.ChangeEvent{ev}}, nil
}

// applyStagedEntities pushes every Ephemeral-staged entity body to Core,
// per §4.5 step 4: Peer upserts, Group replace-in-place by EntityId,
// Relational additions become addReference calls. Relational removals are
// not applied (see below).
func (p *Protocol) applyStagedEntities(ctx context.Context, wc *types.WorkingCopy, nodeID types.NodeId) error {
	if wc.CopiedClasses[types.ClassPeer] {
		staged, err := p.Eph.GetPeer(ctx, nodeID)
		if err != nil {
			return err
		}
		cur, err := p.Core.GetPeer(ctx, nodeID)
		baseVersion := int64(0)
		if err == nil {
			baseVersion = cur.Version
		} else if !types.Is(err, types.KindNotFound) {
			return err
		}
		staged.NodeID = nodeID
		if err := p.Core.PutPeer(ctx, staged, baseVersion); err != nil {
			return err
		}
	}

	if wc.CopiedClasses[types.ClassGroup] {
		staged, err := p.Eph.ListGroup(ctx, nodeID)
		if err != nil {
			return err
		}
		existing, err := p.Core.ListGroup(ctx, nodeID)
		if err != nil {
			return err
		}
		stagedIDs := make(map[types.EntityId]bool, len(staged))
		for _, e := range staged {
			stagedIDs[e.ID] = true
		}
		for _, e := range existing {
			if !stagedIDs[e.ID] {
				if err := p.Core.DeleteGroupEntity(ctx, e.ID); err != nil {
					return err
				}
			}
		}
		for _, e := range staged {
			existingVersion := int64(0)
			for _, old := range existing {
				if old.ID == e.ID {
					existingVersion = old.Version
				}
			}
			e.NodeID = nodeID
			if err := p.Core.PutGroupEntity(ctx, e, existingVersion); err != nil {
				return err
			}
		}
	}

	// Relational staging adds a Core reference for every staged entity the
	// node does not already reference. No reference is removed here:
	// nodeRelationalRefsHint supplies no pre-session set, so an entity
	// dropped from the staged list keeps its reference.
	if wc.CopiedClasses[types.ClassRelational] {
		staged, err := p.Eph.ListRelational(ctx, nodeID)
		if err != nil {
			return err
		}
		stagedIDs := make(map[types.EntityId]bool, len(staged))
		for _, e := range staged {
			stagedIDs[e.ID] = true
			if existing, err := p.Core.GetRelational(ctx, e.ID); err != nil || !existing.Refs[nodeID] {
				if err := p.Core.AddRelationalRef(ctx, e.ID, nodeID); err != nil {
					return err
				}
			}
		}
		// refsBefore is always empty (see nodeRelationalRefsHint), so this
		// loop removes nothing.
		refsBefore, _ := p.nodeRelationalRefsHint(wc)
		for id := range refsBefore {
			if !stagedIDs[id] {
				if _, err := p.Core.RemoveRelationalRef(ctx, id, nodeID); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// nodeRelationalRefsHint returns the node's pre-session Relational
// reference set. workingcopy has no view of that set, so it always
// returns nil.
func (p *Protocol) nodeRelationalRefsHint(_ *types.WorkingCopy) (map[types.EntityId]bool, error) {
	return nil, nil
}

// checkCreateUnderParent enforces the Node Type Registry's canBeRoot,
// allowedChildren, and maxChildren flags (§4.1) for a node about to be
// created under parentID. A parent with no registered config (the
// distinguished roots, whose nodeType is never registered) imposes no
// restriction, matching the "unrestricted" default AllowedChildren gets.
func (p *Protocol) checkCreateUnderParent(ctx context.Context, treeID types.TreeId, parentID types.NodeId, nodeType string, cfg *registry.Config) error {
	if !cfg.CanBeRoot {
		tree, err := p.Core.GetTree(ctx, treeID)
		if err != nil {
			return err
		}
		if parentID == tree.RootID {
			return types.NewError(types.KindIllegalRelation, "CreateDraft", nodeType+" cannot be created at the tree root", nil)
		}
	}

	parent, err := p.Core.GetNode(ctx, treeID, parentID)
	if err != nil {
		return err
	}
	pcfg, ok := p.Registry.Lookup(parent.NodeType)
	if !ok {
		return nil
	}
	if !pcfg.AllowsChild(nodeType) {
		return types.NewError(types.KindIllegalRelation, "CreateDraft", parent.NodeType+" does not allow children of type "+nodeType, nil)
	}
	if pcfg.MaxChildren > 0 {
		children, err := p.Core.ListChildren(ctx, treeID, parentID)
		if err != nil {
			return err
		}
		if len(children) >= pcfg.MaxChildren {
			return types.NewError(types.KindIllegalRelation, "CreateDraft", "parent has reached its maxChildren limit", nil)
		}
	}
	return nil
}

// resolveName applies the onNameConflict policy against the target
// parent's current siblings, per §4.5 step 2.
func (p *Protocol) resolveName(ctx context.Context, wc *types.WorkingCopy, onConflict types.OnNameConflict) (string, error) {
	taken, err := p.Core.SiblingNames(ctx, wc.TreeID, wc.ParentID)
	if err != nil {
		return "", err
	}
	// A non-draft commit targeting its own current parent with its own
	// current name is never a collision against itself.
	if !wc.IsDraft {
		delete(taken, wc.Name)
	}
	if !taken[wc.Name] {
		return wc.Name, nil
	}
	switch onConflict {
	case types.ConflictAutoRename:
		return types.NextConflictName(wc.Name, taken), nil
	default:
		return "", types.NewError(types.KindNameNotUnique, "Commit", "name collides with an existing sibling", nil)
	}
}

// Discard deletes the working-copy record and any staged Ephemeral entity
// bodies. Never touches Core, per §4.5.
func (p *Protocol) Discard(ctx context.Context, nodeID types.NodeId) error {
	if _, err := p.Eph.GetWorkingCopy(ctx, nodeID); err != nil {
		return err
	}
	return p.Eph.DeleteWorkingCopy(ctx, nodeID)
}
