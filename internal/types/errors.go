// Package types holds the domain vocabulary shared across treehouse's
// engine: tree/node/entity structs, the command envelope, change events,
// and the error taxonomy every component reports through.
package types

import (
	"errors"
	"fmt"
)

// Kind classifies an engine error so callers can branch on failure mode
// without parsing strings. Names are semantic, not tied to any storage
// backend.
type Kind int

const (
	// KindUnknown is the zero value; never returned deliberately.
	KindUnknown Kind = iota
	// KindNotFound means a referenced node, working copy, or entity is absent.
	KindNotFound
	// KindStaleVersion means a commit's baseVersion no longer matches the
	// node's current version (optimistic-concurrency failure).
	KindStaleVersion
	// KindNameNotUnique means a sibling name collision was rejected under
	// onNameConflict=error.
	KindNameNotUnique
	// KindIllegalRelation means an operation would create a cycle, move
	// a node under itself, or break a parent's child policy (canBeRoot,
	// allowedChildren, maxChildren).
	KindIllegalRelation
	// KindInvalidArgument means a payload failed validation (name rules,
	// batch-size caps, unregistered node type, ...).
	KindInvalidArgument
	// KindConflict means a working copy already exists for the target, or
	// a Peer entity already exists for the node.
	KindConflict
	// KindIO means the underlying store failed for reasons unrelated to
	// the above (disk, driver, connectivity).
	KindIO
	// KindAborted means the operation was cancelled outside the commit
	// region.
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindStaleVersion:
		return "StaleVersion"
	case KindNameNotUnique:
		return "NameNotUnique"
	case KindIllegalRelation:
		return "IllegalRelation"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindConflict:
		return "Conflict"
	case KindIO:
		return "IO"
	case KindAborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Error is the engine's single error type. Op names the failing operation
// (e.g. "commitWorkingCopy") for diagnostics; Err carries the wrapped cause
// when one exists.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Msg != "":
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Kind, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// NewError constructs an *Error. msg may be empty when err already explains
// the failure.
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Is reports whether err (or anything it wraps) is an *Error of kind k,
// mirroring the teacher's sentinel-plus-errors.Is convention.
func Is(err error, k Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == k
	}
	return false
}
