// Package engine assembles the Node Type Registry, Core Store, Ephemeral
// Store, Command Processor, and Subscribe Service into one explicit value,
// replacing the source's module-scoped singletons per the re-architecture
// note in spec §9. Every operation in the system is reached through
// *Engine — there is no process-global state.
//
// Grounded on the teacher's rpc.Server as the single dispatch point
// analogue (server_core.go's operation switch over Request.Operation),
// generalized here into Submit's switch over types.EnvelopeKind.
package engine

import (
	"context"

	"github.com/untoldecay/treehouse/internal/command"
	"github.com/untoldecay/treehouse/internal/corestore"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/lifecycle"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/subscribe"
	"github.com/untoldecay/treehouse/internal/treeops"
	"github.com/untoldecay/treehouse/internal/types"
	"github.com/untoldecay/treehouse/internal/workingcopy"
)

// Engine is the explicit, constructed-at-startup value every operation
// takes, per §9's anti-singleton design note.
type Engine struct {
	Registry  *registry.Registry
	Core      corestore.Store
	Eph       *ephemeralstore.Store
	Handlers  entities.HandlerSet
	Lifecycle *lifecycle.Manager
	Protocol  *workingcopy.Protocol
	TreeOps   *treeops.Service
	Command   *command.Processor
	Subscribe *subscribe.Service
}

// New wires a ready-to-use Engine around an already-open Core Store, an
// Ephemeral Store, and a populated Node Type Registry + entity handler
// set. Callers (typically cmd/treehousectl's bootstrap) construct eph,
// reg, and handlers together — handlers are built against eph directly
// (see internal/nodetypes.RegisterBuiltins), so New takes the same eph
// rather than constructing a second, disconnected one.
func New(core corestore.Store, eph *ephemeralstore.Store, reg *registry.Registry, handlers entities.HandlerSet) *Engine {
	lc := lifecycle.New(reg, handlers)
	cp := command.New()
	sub := subscribe.New()

	core.SetChangeSink(func(ev types.ChangeEvent) {
		sub.Publish(context.Background(), ev)
	})

	proto := &workingcopy.Protocol{
		Core: core, Eph: eph, Registry: reg, Handlers: handlers,
		Hooks: lc, Seq: cp,
	}
	ops := &treeops.Service{
		Core: core, Registry: reg, Handlers: handlers,
		Lifecycle: lc, Seq: cp,
	}

	return &Engine{
		Registry: reg, Core: core, Eph: eph, Handlers: handlers,
		Lifecycle: lc, Protocol: proto, TreeOps: ops, Command: cp, Subscribe: sub,
	}
}

// CreateTree bootstraps a brand-new tree and its three distinguished
// nodes.
func (e *Engine) CreateTree(ctx context.Context, name string) (*types.Tree, error) {
	t := types.NewTree(ids.NewTreeID(), name)
	if err := e.Core.CreateTree(ctx, t); err != nil {
		return nil, err
	}
	return &t, nil
}

// SubscribeNode and SubscribeSubtree expose the Subscribe Service at the
// Engine boundary named in §6.
func (e *Engine) SubscribeNode(nodeID types.NodeId) *subscribe.Subscription {
	return e.Subscribe.SubscribeNode(nodeID)
}

func (e *Engine) SubscribeSubtree(ctx context.Context, treeID types.TreeId, nodeID types.NodeId) *subscribe.Subscription {
	return e.Subscribe.SubscribeSubtree(nodeID, func(candidate types.NodeId) bool {
		n, err := e.Core.GetNode(ctx, treeID, candidate)
		if err != nil {
			return false
		}
		for cur := n; ; {
			if cur.ParentID == nodeID {
				return true
			}
			parent, err := e.Core.GetNode(ctx, treeID, cur.ParentID)
			if err != nil || parent.ID == cur.ID {
				return false
			}
			cur = parent
		}
	})
}

// Undo and Redo expose the Command Processor at the Engine boundary.
func (e *Engine) Undo(ctx context.Context) (*types.Result, error) {
	seq, err := e.Command.Undo(ctx)
	if err != nil {
		return nil, err
	}
	return &types.Result{Seq: seq}, nil
}

func (e *Engine) Redo(ctx context.Context) (*types.Result, error) {
	seq, err := e.Command.Redo(ctx)
	if err != nil {
		return nil, err
	}
	return &types.Result{Seq: seq}, nil
}
