package nodetypes

import (
	"embed"
	"fmt"

	"github.com/untoldecay/treehouse/internal/corestore"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

//go:embed manifests/*.yaml
var manifestFS embed.FS

// builtinManifests lists the shipped node-type plugin files, in
// registration order.
var builtinManifests = []string{
	"manifests/folder.yaml",
	"manifests/basemap.yaml",
	"manifests/stylemap.yaml",
	"manifests/note.yaml",
}

// RegisterBuiltins loads treehouse's four built-in node-type plugins
// (folder, basemap, stylemap, note), constructs the entity handlers each
// one's manifest names, and registers both into reg/handlers. Callers that
// want a bare registry (e.g. tests exercising only the core tree
// operations) can skip this and register their own Configs directly.
func RegisterBuiltins(reg *registry.Registry, handlers entities.HandlerSet, core corestore.Store, eph *ephemeralstore.Store) error {
	for _, path := range builtinManifests {
		data, err := manifestFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading embedded manifest %s: %w", path, err)
		}
		m, err := LoadManifest(data)
		if err != nil {
			return fmt.Errorf("loading manifest %s: %w", path, err)
		}
		cfg, err := m.ToConfig()
		if err != nil {
			return err
		}

		for _, binding := range cfg.Entities {
			if _, ok := handlers[binding.HandlerKey]; ok {
				continue // shared handler key already bound by an earlier manifest
			}
			handlers[binding.HandlerKey] = newHandlerForClass(binding, core, eph)
		}

		reg.Register(cfg)
	}
	return nil
}

func newHandlerForClass(b registry.EntityBinding, core corestore.Store, eph *ephemeralstore.Store) *entities.Handler {
	switch b.Class {
	case types.ClassPeer:
		return entities.NewPeerHandler(b.HandlerKey, core, eph)
	case types.ClassGroup:
		return entities.NewGroupHandler(b.HandlerKey, core, eph)
	case types.ClassRelational:
		return entities.NewRelationalHandler(b.HandlerKey, core, eph)
	default:
		return entities.NewEphemeralHandler(b.HandlerKey, eph)
	}
}
