package engine

import (
	"context"

	"github.com/untoldecay/treehouse/internal/command"
	"github.com/untoldecay/treehouse/internal/types"
	"github.com/untoldecay/treehouse/internal/workingcopy"
)

// commitPreimage carries whatever a commit's inverse needs to reconstruct
// the pre-commit state: the node as it stood before an edit commit, or
// only the tree id for a draft commit (undone by deleting the newly
// created node).
type commitPreimage struct {
	before *types.Node  // nil for a draft commit
	treeID types.TreeId // the draft's tree, set for a draft commit
}

// snapshotBeforeCommit reads the working copy and, for an edit commit, the
// node's current Core Store state, before Commit overwrites either. The
// returned wasDraft distinguishes "undo by delete" from "undo by restore".
func (e *Engine) snapshotBeforeCommit(ctx context.Context, nodeID types.NodeId) (commitPreimage, bool, error) {
	wc, err := e.Eph.GetWorkingCopy(ctx, nodeID)
	if err != nil {
		return commitPreimage{}, false, err
	}
	if wc.IsDraft {
		return commitPreimage{treeID: wc.TreeID}, true, nil
	}
	before, err := e.Core.GetNode(ctx, wc.TreeID, nodeID)
	if err != nil {
		return commitPreimage{}, false, err
	}
	cp := &types.Node{}
	*cp = *before
	return commitPreimage{before: cp}, false, nil
}

// recordCommitUndo builds and records the inverse of a just-completed
// commit. A draft commit's inverse is deletion of the created node; an
// edit commit's inverse restores the node's pre-commit name, parent, and
// description as a fresh, separately-versioned update (the node's entity
// bodies are not rolled back — see DESIGN.md's commit-undo entry).
func (e *Engine) recordCommitUndo(nodeID types.NodeId, pre commitPreimage, wasDraft bool, res *workingcopy.CommitResult) {
	if wasDraft {
		e.Command.Record(string(nodeID), []command.InverseOp{command.FuncInverseOp{
			Desc: "undo commitWorkingCopyForCreate",
			Fn: func(ctx context.Context) (int64, error) {
				rres, err := e.TreeOps.Remove(ctx, pre.treeIDOrZero(), []types.NodeId{nodeID})
				if err != nil {
					return 0, err
				}
				e.publishAll(ctx, rres.Events)
				return rres.Seq, nil
			},
		}})
		return
	}

	before := pre.before
	if before == nil {
		return
	}
	treeID := before.TreeID
	e.Command.Record(string(nodeID), []command.InverseOp{command.FuncInverseOp{
		Desc: "undo commitWorkingCopy",
		Fn: func(ctx context.Context) (int64, error) {
			restored := []*types.Node{before}
			return e.restoreNodes(ctx, treeID, restored)
		},
	}})
}

// treeIDOrZero returns the committed node's tree: the draft's tree id
// recorded by snapshotBeforeCommit, or the edit pre-image's TreeID.
func (p commitPreimage) treeIDOrZero() types.TreeId {
	if p.before == nil {
		return p.treeID
	}
	return p.before.TreeID
}

// snapshotNodes reads the current Core Store state of every id in
// nodeIDs, before a mutation (move) changes them, for use as an undo
// pre-image. Ids that fail to read (already gone) are skipped.
func (e *Engine) snapshotNodes(ctx context.Context, treeID types.TreeId, nodeIDs []types.NodeId) []*types.Node {
	out := make([]*types.Node, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		n, err := e.Core.GetNode(ctx, treeID, id)
		if err != nil {
			continue
		}
		cp := &types.Node{}
		*cp = *n
		out = append(out, cp)
	}
	return out
}

// restoreNodes writes back every pre-image's parent, name and description,
// and publishes the resulting update events, as the inverse of a move or
// an edit commit. Each write uses the
// node's current stored version as its optimistic base, since the
// pre-image was read before the original mutation and is therefore stale
// by exactly the one version the forward mutation introduced.
func (e *Engine) restoreNodes(ctx context.Context, treeID types.TreeId, preimages []*types.Node) (int64, error) {
	var lastSeq int64
	for _, pre := range preimages {
		current, err := e.Core.GetNode(ctx, treeID, pre.ID)
		if err != nil {
			continue
		}
		restored := &types.Node{}
		*restored = *current
		oldParent := current.ParentID
		restored.ParentID = pre.ParentID
		restored.Name = pre.Name
		restored.Description = pre.Description

		if err := e.Lifecycle.BeforeMove(ctx, current, pre.ParentID); err != nil {
			return 0, err
		}
		if err := e.Core.UpdateNode(ctx, restored, current.Version); err != nil {
			return 0, err
		}
		e.Lifecycle.AfterMove(ctx, restored, oldParent)

		seq, err := e.Command.NextSeq(ctx)
		if err != nil {
			return 0, err
		}
		lastSeq = seq
		e.Subscribe.Publish(ctx, types.ChangeEvent{
			Type: types.ChangeUpdate, NodeID: restored.ID, Seq: seq,
			Before: current, After: restored,
		})
	}
	return lastSeq, nil
}
