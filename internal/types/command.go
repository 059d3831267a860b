package types

import (
	"encoding/json"
	"time"
)

// EnvelopeKind enumerates every command envelope the engine recognizes,
// per §6. Naming follows the teacher's Op* RPC operation constants
// (internal/rpc/protocol.go).
type EnvelopeKind string

const (
	KindCreateNode                  EnvelopeKind = "createNode"
	KindUpdateNode                  EnvelopeKind = "updateNode"
	KindMoveNodes                   EnvelopeKind = "moveNodes"
	KindDuplicateNodes              EnvelopeKind = "duplicateNodes"
	KindMoveToTrash                 EnvelopeKind = "moveToTrash"
	KindRecoverFromTrash            EnvelopeKind = "recoverFromTrash"
	KindRemove                      EnvelopeKind = "remove"
	KindPasteNodes                  EnvelopeKind = "pasteNodes"
	KindImportNodes                 EnvelopeKind = "importNodes"
	KindCreateWorkingCopyForCreate  EnvelopeKind = "createWorkingCopyForCreate"
	KindCreateWorkingCopy           EnvelopeKind = "createWorkingCopy"
	KindUpdateWorkingCopy           EnvelopeKind = "updateWorkingCopy"
	KindCommitWorkingCopyForCreate  EnvelopeKind = "commitWorkingCopyForCreate"
	KindCommitWorkingCopy           EnvelopeKind = "commitWorkingCopy"
	KindDiscardWorkingCopy          EnvelopeKind = "discardWorkingCopy"
	KindUndo                        EnvelopeKind = "undo"
	KindRedo                        EnvelopeKind = "redo"
)

// Envelope is the (commandId, groupId, kind, payload, issuedAt) tuple from
// §3. Payload is kind-specific JSON, matching the teacher's
// Request.Args json.RawMessage convention.
type Envelope struct {
	CommandID string          `json:"command_id"`
	GroupID   string          `json:"group_id,omitempty"`
	Kind      EnvelopeKind    `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	IssuedAt  time.Time       `json:"issued_at"`
}

// Result is the outcome of a successful submit(), carrying the assigned
// seq and whatever node ids the operation produced.
type Result struct {
	Seq         int64    `json:"seq"`
	NodeID      NodeId   `json:"node_id,omitempty"`
	NewNodeIDs  []NodeId `json:"new_node_ids,omitempty"`
}
