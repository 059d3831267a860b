// Package registry implements the Node Type Registry (§4.1): a process-wide,
// read-mostly map from nodeType to its configuration. Registration replaces
// a type's configuration; unregistering does not cascade-delete existing
// data.
//
// Grounded on the teacher's internal/daemon/registry.go, which guards a
// read-modify-write registry file with a mutex around the whole critical
// section. treehouse's registry is in-process rather than file-backed (per
// the re-architecture note in spec §9: replace module-scoped singletons
// with an explicit Engine value), so the mutex here guards a copy-on-write
// map instead of a file.
package registry

import (
	"sync"

	"golang.org/x/mod/semver"

	"github.com/untoldecay/treehouse/internal/types"
)

// EntityBinding names one attached entity class and the handler key used
// to look it up in the entity-handler registry (internal/entities).
type EntityBinding struct {
	Class      types.EntityClass
	HandlerKey string // e.g. "folder/group:children"
}

// HookSet names the optional lifecycle hooks a node type may register.
// Each field is invoked by internal/lifecycle in the order documented in
// spec §4.7; a nil field is simply skipped.
type HookSet struct {
	BeforeCreate func(ctx Ctx, n *types.Node) error
	AfterCreate  func(ctx Ctx, n *types.Node) error
	BeforeUpdate func(ctx Ctx, before, after *types.Node) error
	AfterUpdate  func(ctx Ctx, before, after *types.Node) error
	BeforeDelete func(ctx Ctx, n *types.Node) error
	AfterDelete  func(ctx Ctx, n *types.Node) error
	BeforeMove   func(ctx Ctx, n *types.Node, newParent types.NodeId) error
	AfterMove    func(ctx Ctx, n *types.Node, oldParent types.NodeId) error
}

// Ctx is the minimal context lifecycle hooks receive. It is defined here
// (rather than imported from internal/lifecycle) to avoid a dependency
// cycle between registry and lifecycle; lifecycle's unexported hookCtx
// satisfies it.
type Ctx interface {
	Deadline() (interface{}, bool)
}

// Config is a registered node type's full configuration.
type Config struct {
	NodeType string
	Version  string // semver, e.g. "v1.0.0" — compared by IsNewerVersion; Register does not compare it

	DisplayIcon string

	// AllowedChildren is nil for "unrestricted"; otherwise the set of
	// nodeTypes permitted as direct children.
	AllowedChildren map[string]bool

	Entities []EntityBinding
	Hooks    HookSet

	CanBeRoot     bool
	CanBeDeleted  bool
	CanBeRenamed  bool
	CanBeMoved    bool
	MaxChildren   int // 0 means unbounded

	// RelRefField names the Relational entity field this type auto-binds
	// a reference-count adjustment to on create/delete, per §4.7. Empty
	// when the type declares no such field.
	RelRefField string

	// StopOnError escalates a failing before* hook to abort the operation,
	// per §4.7. after* failures are always best-effort.
	StopOnError bool
}

// AllowsChild reports whether childType may be created under a node of
// this config's type.
func (c *Config) AllowsChild(childType string) bool {
	if c.AllowedChildren == nil {
		return true
	}
	return c.AllowedChildren[childType]
}

// Registry is the process-wide Node Type Registry. The zero value is not
// usable; construct with New.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Config
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]*Config)}
}

// Register installs cfg, replacing any existing configuration for
// cfg.NodeType. Registration is serialized against concurrent lookups via
// copy-on-write: readers never observe a partially-installed config.
func (r *Registry) Register(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]*Config, len(r.byID)+1)
	for k, v := range r.byID {
		next[k] = v
	}
	c := cfg
	next[cfg.NodeType] = &c
	r.byID = next
}

// Unregister removes nodeType's configuration. It does not cascade-delete
// existing nodes or entities of that type, per §4.1.
func (r *Registry) Unregister(nodeType string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[nodeType]; !ok {
		return
	}
	next := make(map[string]*Config, len(r.byID))
	for k, v := range r.byID {
		if k != nodeType {
			next[k] = v
		}
	}
	r.byID = next
}

// Lookup returns nodeType's configuration, or (nil, false) if unregistered.
func (r *Registry) Lookup(nodeType string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.byID[nodeType]
	return cfg, ok
}

// MustLookup returns nodeType's configuration or a KindInvalidArgument
// error, the form most call sites in the engine want.
func (r *Registry) MustLookup(nodeType string) (*Config, error) {
	cfg, ok := r.Lookup(nodeType)
	if !ok {
		return nil, types.NewError(types.KindInvalidArgument, "MustLookup", "unregistered node type: "+nodeType, nil)
	}
	return cfg, nil
}

// IsNewerVersion reports whether candidate is a strictly newer semver
// version than the currently registered config for nodeType (or true if
// nodeType isn't registered yet, or either version string is invalid).
func (r *Registry) IsNewerVersion(nodeType, candidate string) bool {
	cfg, ok := r.Lookup(nodeType)
	if !ok {
		return true
	}
	if !semver.IsValid(candidate) || !semver.IsValid(cfg.Version) {
		return true
	}
	return semver.Compare(candidate, cfg.Version) > 0
}
