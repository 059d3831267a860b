// Package nodetypes declares treehouse's built-in node-type plugins
// (folder, basemap, stylemap, note) as YAML manifests, and registers them
// against a registry.Registry and the entity handlers they need.
//
// No direct teacher analogue exists for a plugin-manifest system; this
// package is new code written in the teacher's config-loading idiom
// (declarative YAML parsed with yaml.v3, the way the teacher's own
// config.yaml is structured) to satisfy the "plugin-typed node kinds"
// requirement.
package nodetypes

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

// entityBindingManifest is one entry in a manifest's entities list.
type entityBindingManifest struct {
	Class      string `yaml:"class"`
	HandlerKey string `yaml:"handler_key"`
}

// Manifest is the YAML-declared shape of a node type's registry.Config.
type Manifest struct {
	NodeType        string                  `yaml:"node_type"`
	Version         string                  `yaml:"version"`
	DisplayIcon     string                  `yaml:"display_icon"`
	AllowedChildren []string                `yaml:"allowed_children"`
	Entities        []entityBindingManifest `yaml:"entities"`
	CanBeRoot       bool                    `yaml:"can_be_root"`
	CanBeDeleted    bool                    `yaml:"can_be_deleted"`
	CanBeRenamed    bool                    `yaml:"can_be_renamed"`
	CanBeMoved      bool                    `yaml:"can_be_moved"`
	MaxChildren     int                     `yaml:"max_children"`
	RelRefField     string                  `yaml:"rel_ref_field"`
	StopOnError     bool                    `yaml:"stop_on_error"`
}

// LoadManifest parses one node-type manifest from YAML.
func LoadManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing node-type manifest: %w", err)
	}
	if m.NodeType == "" {
		return nil, fmt.Errorf("node-type manifest missing node_type")
	}
	return &m, nil
}

func classFromString(s string) (types.EntityClass, error) {
	switch s {
	case "peer":
		return types.ClassPeer, nil
	case "group":
		return types.ClassGroup, nil
	case "relational":
		return types.ClassRelational, nil
	case "ephemeral":
		return types.ClassEphemeral, nil
	default:
		return 0, fmt.Errorf("unknown entity class %q", s)
	}
}

// ToConfig converts the manifest into a registry.Config ready for
// Registry.Register. Hooks are not carried by the manifest itself; callers
// that need non-default lifecycle hooks attach them to the returned Config
// before registering (RegisterBuiltins attaches none).
func (m *Manifest) ToConfig() (registry.Config, error) {
	var allowed map[string]bool
	if len(m.AllowedChildren) > 0 {
		allowed = make(map[string]bool, len(m.AllowedChildren))
		for _, c := range m.AllowedChildren {
			allowed[c] = true
		}
	}

	bindings := make([]registry.EntityBinding, 0, len(m.Entities))
	for _, e := range m.Entities {
		class, err := classFromString(e.Class)
		if err != nil {
			return registry.Config{}, fmt.Errorf("node type %s: %w", m.NodeType, err)
		}
		bindings = append(bindings, registry.EntityBinding{Class: class, HandlerKey: e.HandlerKey})
	}

	return registry.Config{
		NodeType:        m.NodeType,
		Version:         m.Version,
		DisplayIcon:     m.DisplayIcon,
		AllowedChildren: allowed,
		Entities:        bindings,
		CanBeRoot:       m.CanBeRoot,
		CanBeDeleted:    m.CanBeDeleted,
		CanBeRenamed:    m.CanBeRenamed,
		CanBeMoved:      m.CanBeMoved,
		MaxChildren:     m.MaxChildren,
		RelRefField:     m.RelRefField,
		StopOnError:     m.StopOnError,
	}, nil
}
