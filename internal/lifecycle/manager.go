// Package lifecycle implements the Lifecycle Manager (§4.7): ordered
// before/after hook dispatch per node type, reference-count adjustments on
// Relational links, and a bounded diagnostic event log.
//
// Grounded on the teacher's internal/hooks package (ordered, best-effort,
// fire-and-forget invocation of user-supplied callbacks around mutation
// events) generalized from external-process git hooks to in-process
// closures, and on dirty-tracking tables like dirty_issues for the
// bounded event-log shape.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

// EventLogCap is the bounded retention for the hook event log, per §4.7.
const EventLogCap = 1000

// HookEvent records one hook invocation outcome for diagnostics.
type HookEvent struct {
	NodeID     types.NodeId
	Hook       string
	OK         bool
	Detail     string
	OccurredAt time.Time
}

// Manager dispatches lifecycle hooks and reference-count accounting.
// Implements workingcopy.Hooks.
type Manager struct {
	registry *registry.Registry
	handlers entities.HandlerSet

	mu  sync.Mutex
	log []HookEvent
}

// New builds a Manager bound to reg (for per-nodeType hook/stopOnError/
// relRefField lookups) and handlers (for reference-count accounting).
func New(reg *registry.Registry, handlers entities.HandlerSet) *Manager {
	return &Manager{registry: reg, handlers: handlers}
}

// record appends ev to the bounded log, dropping the oldest entry once the
// cap is reached.
func (m *Manager) record(ev HookEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log = append(m.log, ev)
	if len(m.log) > EventLogCap {
		m.log = m.log[len(m.log)-EventLogCap:]
	}
}

// Events returns a snapshot of the bounded hook event log, most recent
// last.
func (m *Manager) Events() []HookEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HookEvent, len(m.log))
	copy(out, m.log)
	return out
}

func (m *Manager) runBefore(ctx context.Context, nodeID types.NodeId, name, nodeType string, fn func() error) error {
	if fn == nil {
		return nil
	}
	cfg, ok := m.registry.Lookup(nodeType)
	err := fn()
	ok2 := err == nil
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	m.record(HookEvent{NodeID: nodeID, Hook: name, OK: ok2, Detail: detail, OccurredAt: time.Now()})
	if err != nil && ok && cfg.StopOnError {
		return err
	}
	return nil
}

func (m *Manager) runAfter(ctx context.Context, nodeID types.NodeId, name string, fn func() error) {
	if fn == nil {
		return
	}
	err := fn()
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	// After* failures are always recorded, never escalated, even under
	// stopOnError (§4.7: "after* failures ... are recorded but the
	// operation remains committed").
	m.record(HookEvent{NodeID: nodeID, Hook: name, OK: err == nil, Detail: detail, OccurredAt: time.Now()})
}

// BeforeCreate runs the node type's beforeCreate hook. A failure aborts
// the operation only if the type's config sets stopOnError.
func (m *Manager) BeforeCreate(ctx context.Context, n *types.Node) error {
	cfg, ok := m.registry.Lookup(n.NodeType)
	if !ok || cfg.Hooks.BeforeCreate == nil {
		return nil
	}
	return m.runBefore(ctx, n.ID, "beforeCreate", n.NodeType, func() error {
		return cfg.Hooks.BeforeCreate(hookCtx{}, n)
	})
}

// AfterCreate runs the afterCreate hook and, if the node type names a
// relRefField, increments the referenced Relational entity's refcount.
func (m *Manager) AfterCreate(ctx context.Context, n *types.Node) {
	cfg, ok := m.registry.Lookup(n.NodeType)
	if !ok {
		return
	}
	if cfg.RelRefField != "" {
		m.adjustRefcount(ctx, n, cfg, true)
	}
	if cfg.Hooks.AfterCreate != nil {
		m.runAfter(ctx, n.ID, "afterCreate", func() error {
			return cfg.Hooks.AfterCreate(hookCtx{}, n)
		})
	}
}

// BeforeUpdate runs the beforeUpdate hook.
func (m *Manager) BeforeUpdate(ctx context.Context, before, after *types.Node) error {
	cfg, ok := m.registry.Lookup(after.NodeType)
	if !ok || cfg.Hooks.BeforeUpdate == nil {
		return nil
	}
	return m.runBefore(ctx, after.ID, "beforeUpdate", after.NodeType, func() error {
		return cfg.Hooks.BeforeUpdate(hookCtx{}, before, after)
	})
}

// AfterUpdate runs the afterUpdate hook.
func (m *Manager) AfterUpdate(ctx context.Context, before, after *types.Node) {
	cfg, ok := m.registry.Lookup(after.NodeType)
	if !ok || cfg.Hooks.AfterUpdate == nil {
		return
	}
	m.runAfter(ctx, after.ID, "afterUpdate", func() error {
		return cfg.Hooks.AfterUpdate(hookCtx{}, before, after)
	})
}

// BeforeDelete runs the beforeDelete hook.
func (m *Manager) BeforeDelete(ctx context.Context, n *types.Node) error {
	cfg, ok := m.registry.Lookup(n.NodeType)
	if !ok || cfg.Hooks.BeforeDelete == nil {
		return nil
	}
	return m.runBefore(ctx, n.ID, "beforeDelete", n.NodeType, func() error {
		return cfg.Hooks.BeforeDelete(hookCtx{}, n)
	})
}

// AfterDelete decrements the node's relRefField reference (if any) and
// then runs the afterDelete hook. The write itself is the caller's
// (internal/treeops) responsibility and AfterDelete is invoked once it has
// succeeded, so the decrement happens after the write, not before it.
func (m *Manager) AfterDelete(ctx context.Context, n *types.Node) {
	cfg, ok := m.registry.Lookup(n.NodeType)
	if !ok {
		return
	}
	if cfg.RelRefField != "" {
		m.adjustRefcount(ctx, n, cfg, false)
	}
	if cfg.Hooks.AfterDelete != nil {
		m.runAfter(ctx, n.ID, "afterDelete", func() error {
			return cfg.Hooks.AfterDelete(hookCtx{}, n)
		})
	}
}

// BeforeMove runs the beforeMove hook.
func (m *Manager) BeforeMove(ctx context.Context, n *types.Node, newParent types.NodeId) error {
	cfg, ok := m.registry.Lookup(n.NodeType)
	if !ok || cfg.Hooks.BeforeMove == nil {
		return nil
	}
	return m.runBefore(ctx, n.ID, "beforeMove", n.NodeType, func() error {
		return cfg.Hooks.BeforeMove(hookCtx{}, n, newParent)
	})
}

// AfterMove runs the afterMove hook.
func (m *Manager) AfterMove(ctx context.Context, n *types.Node, oldParent types.NodeId) {
	cfg, ok := m.registry.Lookup(n.NodeType)
	if !ok || cfg.Hooks.AfterMove == nil {
		return
	}
	m.runAfter(ctx, n.ID, "afterMove", func() error {
		return cfg.Hooks.AfterMove(hookCtx{}, n, oldParent)
	})
}

// adjustRefcount calls addReference/removeReference on the Relational
// handler bound to cfg.RelRefField for n, best-effort: a failure here is
// logged through the same event log as a hook failure rather than
// propagated, since reference-count accounting is itself part of the
// lifecycle's best-effort side-effect surface.
func (m *Manager) adjustRefcount(ctx context.Context, n *types.Node, cfg *registry.Config, add bool) {
	h, ok := m.handlers.Lookup(cfg.RelRefField)
	if !ok || h.Class != types.ClassRelational {
		return
	}
	entityID, err := fieldEntityID(n, cfg.RelRefField)
	if err != nil || entityID == "" {
		return
	}
	name := "afterDelete:removeReference"
	var opErr error
	if add {
		name = "afterCreate:addReference"
		opErr = h.AddReference(ctx, entityID, n.ID)
	} else {
		_, opErr = h.RemoveReference(ctx, entityID, n.ID)
	}
	detail := ""
	if opErr != nil {
		detail = opErr.Error()
	}
	m.record(HookEvent{NodeID: n.ID, Hook: name, OK: opErr == nil, Detail: detail, OccurredAt: time.Now()})
}

// fieldEntityID extracts the Relational EntityId a node's relRefField
// points at. Node carries no generic field map, so this reads the node's
// Description as a convention-over-configuration slot: node types that
// declare RelRefField store the referenced EntityId there. This mirrors
// the teacher's single generic `payload` column used for molecule-specific
// fields it does not otherwise model structurally.
func fieldEntityID(n *types.Node, _ string) (types.EntityId, error) {
	if n.Description == "" {
		return "", nil
	}
	return types.EntityId(n.Description), nil
}

// hookCtx is the minimal registry.Ctx implementation passed to hooks;
// treehouse hooks do not currently need deadline/cancellation inspection,
// so Deadline always reports "no deadline".
type hookCtx struct{}

func (hookCtx) Deadline() (interface{}, bool) { return nil, false }
