package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := registry.New()

	_, ok := r.Lookup("folder")
	assert.False(t, ok)

	r.Register(registry.Config{NodeType: "folder", Version: "v1.0.0", CanBeRoot: true})

	cfg, ok := r.Lookup("folder")
	require.True(t, ok)
	assert.Equal(t, "folder", cfg.NodeType)
	assert.True(t, cfg.CanBeRoot)

	r.Unregister("folder")
	_, ok = r.Lookup("folder")
	assert.False(t, ok)
}

func TestRegisterReplacesExistingConfig(t *testing.T) {
	r := registry.New()
	r.Register(registry.Config{NodeType: "note", Version: "v1.0.0", DisplayIcon: "old"})
	r.Register(registry.Config{NodeType: "note", Version: "v2.0.0", DisplayIcon: "new"})

	cfg, ok := r.Lookup("note")
	require.True(t, ok)
	assert.Equal(t, "v2.0.0", cfg.Version)
	assert.Equal(t, "new", cfg.DisplayIcon)
}

func TestMustLookupUnregisteredIsInvalidArgument(t *testing.T) {
	r := registry.New()
	cfg, err := r.MustLookup("missing")
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestAllowsChild(t *testing.T) {
	unrestricted := &registry.Config{}
	assert.True(t, unrestricted.AllowsChild("anything"))

	restricted := &registry.Config{AllowedChildren: map[string]bool{"stylemap": true}}
	assert.True(t, restricted.AllowsChild("stylemap"))
	assert.False(t, restricted.AllowsChild("note"))
}

func TestIsNewerVersion(t *testing.T) {
	r := registry.New()
	assert.True(t, r.IsNewerVersion("folder", "v1.0.0"))

	r.Register(registry.Config{NodeType: "folder", Version: "v1.2.0"})
	assert.True(t, r.IsNewerVersion("folder", "v1.3.0"))
	assert.False(t, r.IsNewerVersion("folder", "v1.1.0"))
	assert.False(t, r.IsNewerVersion("folder", "v1.2.0"))

	// Invalid semver strings are treated as "always newer" so a bad
	// version never silently blocks registration.
	assert.True(t, r.IsNewerVersion("folder", "not-a-version"))
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	r := registry.New()
	r.Unregister("does-not-exist")
	_, ok := r.Lookup("does-not-exist")
	assert.False(t, ok)
}
