package engine

import (
	"context"
	"encoding/json"

	"github.com/untoldecay/treehouse/internal/command"
	"github.com/untoldecay/treehouse/internal/treeops"
	"github.com/untoldecay/treehouse/internal/types"
)

// Submit dispatches envelope to the matching operation, per the §6
// presented API: submit(envelope) → Result<{seq, nodeId?, newNodeIds?},
// ErrorKind>. Every recognized EnvelopeKind in §6 is handled here; an
// unrecognized kind is InvalidArgument.
func (e *Engine) Submit(ctx context.Context, env types.Envelope) (*types.Result, error) {
	switch env.Kind {
	case types.KindCreateWorkingCopyForCreate:
		return e.submitCreateWorkingCopyForCreate(ctx, env)
	case types.KindCreateWorkingCopy:
		return e.submitCreateWorkingCopy(ctx, env)
	case types.KindUpdateWorkingCopy:
		return e.submitUpdateWorkingCopy(ctx, env)
	case types.KindCommitWorkingCopyForCreate, types.KindCommitWorkingCopy:
		return e.submitCommitWorkingCopy(ctx, env)
	case types.KindDiscardWorkingCopy:
		return e.submitDiscardWorkingCopy(ctx, env)
	case types.KindMoveNodes:
		return e.submitMoveNodes(ctx, env)
	case types.KindDuplicateNodes:
		return e.submitDuplicateNodes(ctx, env)
	case types.KindMoveToTrash:
		return e.submitMoveToTrash(ctx, env)
	case types.KindRecoverFromTrash:
		return e.submitRecoverFromTrash(ctx, env)
	case types.KindRemove:
		return e.submitRemove(ctx, env)
	case types.KindPasteNodes:
		return e.submitPasteNodes(ctx, env)
	case types.KindImportNodes:
		return e.submitImportNodes(ctx, env)
	case types.KindUndo:
		return e.Undo(ctx)
	case types.KindRedo:
		return e.Redo(ctx)
	default:
		return nil, types.NewError(types.KindInvalidArgument, "Submit", "unrecognized envelope kind: "+string(env.Kind), nil)
	}
}

func decodePayload[T any](env types.Envelope) (T, error) {
	var v T
	if len(env.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(env.Payload, &v); err != nil {
		var zero T
		return zero, types.NewError(types.KindInvalidArgument, "Submit", "malformed payload for "+string(env.Kind), err)
	}
	return v, nil
}

// --- Working-copy envelopes ---

type createWorkingCopyForCreatePayload struct {
	TreeID   types.TreeId `json:"tree_id"`
	ParentID types.NodeId `json:"parent_id"`
	NodeType string       `json:"node_type"`
	Name     string       `json:"name"`
}

func (e *Engine) submitCreateWorkingCopyForCreate(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[createWorkingCopyForCreatePayload](env)
	if err != nil {
		return nil, err
	}
	wc, err := e.Protocol.CreateDraft(ctx, p.TreeID, p.ParentID, p.NodeType, p.Name)
	if err != nil {
		return nil, err
	}
	return &types.Result{NodeID: wc.NodeID}, nil
}

type createWorkingCopyPayload struct {
	TreeID types.TreeId `json:"tree_id"`
	NodeID types.NodeId `json:"node_id"`
}

func (e *Engine) submitCreateWorkingCopy(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[createWorkingCopyPayload](env)
	if err != nil {
		return nil, err
	}
	wc, err := e.Protocol.CreateEdit(ctx, p.TreeID, p.NodeID)
	if err != nil {
		return nil, err
	}
	return &types.Result{NodeID: wc.NodeID}, nil
}

type updateWorkingCopyPayload struct {
	NodeID      types.NodeId  `json:"node_id"`
	Name        *string       `json:"name,omitempty"`
	Description *string       `json:"description,omitempty"`
	ParentID    *types.NodeId `json:"parent_id,omitempty"`
}

func (e *Engine) submitUpdateWorkingCopy(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[updateWorkingCopyPayload](env)
	if err != nil {
		return nil, err
	}
	wc, err := e.Protocol.Update(ctx, p.NodeID, func(wc *types.WorkingCopy) {
		if p.Name != nil {
			wc.Name = *p.Name
		}
		if p.Description != nil {
			wc.Description = *p.Description
		}
		if p.ParentID != nil {
			wc.ParentID = *p.ParentID
		}
	})
	if err != nil {
		return nil, err
	}
	return &types.Result{NodeID: wc.NodeID}, nil
}

type commitWorkingCopyPayload struct {
	NodeID         types.NodeId         `json:"node_id"`
	OnNameConflict types.OnNameConflict `json:"on_name_conflict"`
}

func (e *Engine) submitCommitWorkingCopy(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[commitWorkingCopyPayload](env)
	if err != nil {
		return nil, err
	}
	onConflict := p.OnNameConflict
	if onConflict == "" {
		onConflict = types.ConflictError
	}

	preimage, wasDraft, err := e.snapshotBeforeCommit(ctx, p.NodeID)
	if err != nil {
		return nil, err
	}

	res, err := e.Protocol.Commit(ctx, p.NodeID, onConflict)
	if err != nil {
		return nil, err
	}

	e.recordCommitUndo(p.NodeID, preimage, wasDraft, res)

	for _, ev := range res.Events {
		e.Subscribe.Publish(ctx, ev)
	}
	return &types.Result{Seq: res.Seq, NodeID: res.NodeID}, nil
}

type discardWorkingCopyPayload struct {
	NodeID types.NodeId `json:"node_id"`
}

func (e *Engine) submitDiscardWorkingCopy(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[discardWorkingCopyPayload](env)
	if err != nil {
		return nil, err
	}
	if err := e.Protocol.Discard(ctx, p.NodeID); err != nil {
		return nil, err
	}
	return &types.Result{}, nil
}

// --- Tree mutation envelopes ---

type moveNodesPayload struct {
	TreeID         types.TreeId         `json:"tree_id"`
	NodeIDs        []types.NodeId       `json:"node_ids"`
	ToParentID     types.NodeId         `json:"to_parent_id"`
	OnNameConflict types.OnNameConflict `json:"on_name_conflict"`
}

func (e *Engine) submitMoveNodes(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[moveNodesPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID

	preimages := e.snapshotNodes(ctx, treeID, p.NodeIDs)

	res, err := e.TreeOps.MoveNodes(ctx, treeID, p.NodeIDs, p.ToParentID, onConflictOrError(p.OnNameConflict))
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)

	e.Command.Record(string(env.CommandID), []command.InverseOp{command.FuncInverseOp{
		Desc: "undo moveNodes",
		Fn: func(ctx context.Context) (int64, error) {
			return e.restoreNodes(ctx, treeID, preimages)
		},
	}})

	return &types.Result{Seq: res.Seq, NewNodeIDs: p.NodeIDs}, nil
}

type duplicateNodesPayload struct {
	TreeID         types.TreeId         `json:"tree_id"`
	NodeIDs        []types.NodeId       `json:"node_ids"`
	ToParentID     types.NodeId         `json:"to_parent_id"`
	OnNameConflict types.OnNameConflict `json:"on_name_conflict"`
}

func (e *Engine) submitDuplicateNodes(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[duplicateNodesPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID

	res, err := e.TreeOps.DuplicateNodes(ctx, treeID, p.NodeIDs, p.ToParentID, onConflictOrError(p.OnNameConflict))
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)

	created := res.NewNodeIDs
	e.Command.Record(string(env.CommandID), []command.InverseOp{command.FuncInverseOp{
		Desc: "undo duplicateNodes",
		Fn: func(ctx context.Context) (int64, error) {
			rres, err := e.TreeOps.Remove(ctx, treeID, created)
			if err != nil {
				return 0, err
			}
			e.publishAll(ctx, rres.Events)
			return rres.Seq, nil
		},
	}})

	return &types.Result{Seq: res.Seq, NewNodeIDs: created}, nil
}

type nodeIDsPayload struct {
	TreeID  types.TreeId   `json:"tree_id"`
	NodeIDs []types.NodeId `json:"node_ids"`
}

func (e *Engine) submitMoveToTrash(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[nodeIDsPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID

	res, err := e.TreeOps.MoveNodesToTrash(ctx, treeID, p.NodeIDs)
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)

	nodeIDs := p.NodeIDs
	e.Command.Record(string(env.CommandID), []command.InverseOp{command.FuncInverseOp{
		Desc: "undo moveToTrash",
		Fn: func(ctx context.Context) (int64, error) {
			rres, err := e.TreeOps.RecoverFromTrash(ctx, treeID, nodeIDs, "", types.ConflictAutoRename)
			if err != nil {
				return 0, err
			}
			e.publishAll(ctx, rres.Events)
			return rres.Seq, nil
		},
	}})

	return &types.Result{Seq: res.Seq}, nil
}

type recoverFromTrashPayload struct {
	TreeID         types.TreeId         `json:"tree_id"`
	NodeIDs        []types.NodeId       `json:"node_ids"`
	ToParentID     types.NodeId         `json:"to_parent_id"`
	OnNameConflict types.OnNameConflict `json:"on_name_conflict"`
}

func (e *Engine) submitRecoverFromTrash(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[recoverFromTrashPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID

	res, err := e.TreeOps.RecoverFromTrash(ctx, treeID, p.NodeIDs, p.ToParentID, onConflictOrError(p.OnNameConflict))
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)

	nodeIDs := p.NodeIDs
	e.Command.Record(string(env.CommandID), []command.InverseOp{command.FuncInverseOp{
		Desc: "undo recoverFromTrash",
		Fn: func(ctx context.Context) (int64, error) {
			rres, err := e.TreeOps.MoveNodesToTrash(ctx, treeID, nodeIDs)
			if err != nil {
				return 0, err
			}
			e.publishAll(ctx, rres.Events)
			return rres.Seq, nil
		},
	}})

	return &types.Result{Seq: res.Seq}, nil
}

func (e *Engine) submitRemove(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[nodeIDsPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID

	res, err := e.TreeOps.Remove(ctx, treeID, p.NodeIDs)
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)
	// remove's inverse would require replaying every deleted node and
	// entity body from the events captured above; the Command Processor
	// records no undo group for remove (a destructive, intentionally
	// irreversible operation in this engine, same as the teacher's
	// hard-delete paths never feeding internal/merge's reconstruction).
	return &types.Result{Seq: res.Seq}, nil
}

type clipboardPayload struct {
	TreeID         types.TreeId            `json:"tree_id"`
	Clipboard      []treeops.ClipboardNode `json:"clipboard"`
	ToParentID     types.NodeId            `json:"to_parent_id"`
	OnNameConflict types.OnNameConflict    `json:"on_name_conflict"`
}

func (e *Engine) submitPasteNodes(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[clipboardPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID
	res, err := e.TreeOps.PasteNodes(ctx, treeID, p.Clipboard, p.ToParentID, onConflictOrError(p.OnNameConflict))
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)
	e.recordCreateUndo(env, treeID, res.NewNodeIDs)
	return &types.Result{Seq: res.Seq, NewNodeIDs: res.NewNodeIDs}, nil
}

type importPayload struct {
	TreeID         types.TreeId                  `json:"tree_id"`
	Clipboard      []treeops.ClipboardNode       `json:"clipboard"`
	ToParentID     types.NodeId                  `json:"to_parent_id"`
	OnNameConflict types.OnNameConflict          `json:"on_name_conflict"`
	IDMapping      map[types.NodeId]types.NodeId `json:"id_mapping"`
}

func (e *Engine) submitImportNodes(ctx context.Context, env types.Envelope) (*types.Result, error) {
	p, err := decodePayload[importPayload](env)
	if err != nil {
		return nil, err
	}
	treeID := p.TreeID
	res, err := e.TreeOps.ImportNodes(ctx, treeID, p.Clipboard, p.ToParentID, onConflictOrError(p.OnNameConflict), p.IDMapping)
	if err != nil {
		return nil, err
	}
	e.publishAll(ctx, res.Events)
	e.recordCreateUndo(env, treeID, res.NewNodeIDs)
	return &types.Result{Seq: res.Seq, NewNodeIDs: res.NewNodeIDs}, nil
}

func (e *Engine) recordCreateUndo(env types.Envelope, treeID types.TreeId, created []types.NodeId) {
	if len(created) == 0 {
		return
	}
	e.Command.Record(string(env.CommandID), []command.InverseOp{command.FuncInverseOp{
		Desc: "undo " + string(env.Kind),
		Fn: func(ctx context.Context) (int64, error) {
			rres, err := e.TreeOps.Remove(ctx, treeID, created)
			if err != nil {
				return 0, err
			}
			e.publishAll(ctx, rres.Events)
			return rres.Seq, nil
		},
	}})
}

func (e *Engine) publishAll(ctx context.Context, events []types.ChangeEvent) {
	for _, ev := range events {
		e.Subscribe.Publish(ctx, ev)
	}
}

func onConflictOrError(c types.OnNameConflict) types.OnNameConflict {
	if c == "" {
		return types.ConflictError
	}
	return c
}

