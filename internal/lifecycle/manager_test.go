package lifecycle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/corestore/sqlite"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/lifecycle"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(t.TempDir() + "/store.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestBeforeCreateStopOnErrorAbortsOperation(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Config{
		NodeType:    "note",
		StopOnError: true,
		Hooks: registry.HookSet{
			BeforeCreate: func(ctx registry.Ctx, n *types.Node) error {
				return assert.AnError
			},
		},
	})
	m := lifecycle.New(reg, entities.HandlerSet{})

	n := &types.Node{ID: "n1", NodeType: "note"}
	err := m.BeforeCreate(context.Background(), n)
	require.Error(t, err)

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "beforeCreate", events[0].Hook)
	assert.False(t, events[0].OK)
}

func TestBeforeCreateWithoutStopOnErrorIsBestEffort(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Config{
		NodeType:    "note",
		StopOnError: false,
		Hooks: registry.HookSet{
			BeforeCreate: func(ctx registry.Ctx, n *types.Node) error {
				return assert.AnError
			},
		},
	})
	m := lifecycle.New(reg, entities.HandlerSet{})

	n := &types.Node{ID: "n1", NodeType: "note"}
	err := m.BeforeCreate(context.Background(), n)
	assert.NoError(t, err, "a failing hook on a type without stopOnError must not abort")
}

func TestBeforeCreateUnregisteredTypeIsNoop(t *testing.T) {
	reg := registry.New()
	m := lifecycle.New(reg, entities.HandlerSet{})
	err := m.BeforeCreate(context.Background(), &types.Node{ID: "n1", NodeType: "unregistered"})
	assert.NoError(t, err)
	assert.Empty(t, m.Events())
}

func TestAfterCreateAdjustsRefcountViaRelRefField(t *testing.T) {
	ctx := context.Background()
	core := newStore(t)
	tr := types.NewTree(ids.NewTreeID(), "T")
	require.NoError(t, core.CreateTree(ctx, tr))

	rel := &types.RelationalEntity{ID: ids.NewEntityID()}
	require.NoError(t, core.PutRelational(ctx, rel, 0))

	handlers := entities.HandlerSet{
		"shared-style": entities.NewRelationalHandler("shared-style", core, ephemeralstore.New()),
	}
	reg := registry.New()
	reg.Register(registry.Config{NodeType: "basemap", RelRefField: "shared-style"})
	m := lifecycle.New(reg, handlers)

	n := &types.Node{ID: ids.NewNodeID(), TreeID: tr.ID, NodeType: "basemap", Description: string(rel.ID)}
	m.AfterCreate(ctx, n)

	got, err := core.GetRelational(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RefCount())

	events := m.Events()
	require.Len(t, events, 1)
	assert.Equal(t, "afterCreate:addReference", events[0].Hook)
	assert.True(t, events[0].OK)
}

func TestAfterDeleteDecrementsRefcountToZeroDeletesEntity(t *testing.T) {
	ctx := context.Background()
	core := newStore(t)
	tr := types.NewTree(ids.NewTreeID(), "T")
	require.NoError(t, core.CreateTree(ctx, tr))

	rel := &types.RelationalEntity{ID: ids.NewEntityID()}
	require.NoError(t, core.PutRelational(ctx, rel, 0))
	nodeID := ids.NewNodeID()
	require.NoError(t, core.AddRelationalRef(ctx, rel.ID, nodeID))

	handlers := entities.HandlerSet{
		"shared-style": entities.NewRelationalHandler("shared-style", core, ephemeralstore.New()),
	}
	reg := registry.New()
	reg.Register(registry.Config{NodeType: "basemap", RelRefField: "shared-style"})
	m := lifecycle.New(reg, handlers)

	n := &types.Node{ID: nodeID, TreeID: tr.ID, NodeType: "basemap", Description: string(rel.ID)}
	m.AfterDelete(ctx, n)

	_, err := core.GetRelational(ctx, rel.ID)
	assert.True(t, types.Is(err, types.KindNotFound))
}

func TestEventLogIsBoundedFIFO(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.Config{
		NodeType: "note",
		Hooks: registry.HookSet{
			BeforeCreate: func(ctx registry.Ctx, n *types.Node) error { return nil },
		},
	})
	m := lifecycle.New(reg, entities.HandlerSet{})

	for i := 0; i < lifecycle.EventLogCap+10; i++ {
		_ = m.BeforeCreate(context.Background(), &types.Node{ID: "n", NodeType: "note"})
	}

	events := m.Events()
	assert.Len(t, events, lifecycle.EventLogCap)
}

func TestAfterUpdateAndAfterMoveRunHooks(t *testing.T) {
	var updateCalled, moveCalled bool
	reg := registry.New()
	reg.Register(registry.Config{
		NodeType: "folder",
		Hooks: registry.HookSet{
			AfterUpdate: func(ctx registry.Ctx, before, after *types.Node) error {
				updateCalled = true
				return nil
			},
			AfterMove: func(ctx registry.Ctx, n *types.Node, oldParent types.NodeId) error {
				moveCalled = true
				return nil
			},
		},
	})
	m := lifecycle.New(reg, entities.HandlerSet{})

	n := &types.Node{ID: "n1", NodeType: "folder"}
	m.AfterUpdate(context.Background(), n, n)
	m.AfterMove(context.Background(), n, "oldParent")

	assert.True(t, updateCalled)
	assert.True(t, moveCalled)
}
