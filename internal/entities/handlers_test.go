package entities_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/corestore/sqlite"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/types"
)

func newCoreStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(t.TempDir() + "/store.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestNode(t *testing.T, ctx context.Context, core *sqlite.Store, nodeType string) types.NodeId {
	t.Helper()
	tr := types.NewTree(ids.NewTreeID(), "T")
	require.NoError(t, core.CreateTree(ctx, tr))
	n := &types.Node{ID: ids.NewNodeID(), TreeID: tr.ID, ParentID: tr.RootID, NodeType: nodeType, Name: "N"}
	require.NoError(t, core.CreateNode(ctx, n))
	return n.ID
}

func TestPeerHandlerCreateUpdateCleanup(t *testing.T) {
	ctx := context.Background()
	core := newCoreStore(t)
	eph := ephemeralstore.New()
	h := entities.NewPeerHandler("note/peer:body", core, eph)

	nodeID := newTestNode(t, ctx, core, "note")

	id, err := h.CreateEntity(ctx, nodeID, []byte(`{"body":"hi"}`))
	require.NoError(t, err)
	assert.Equal(t, types.EntityId(nodeID), id)

	_, err = h.CreateEntity(ctx, nodeID, []byte(`{}`))
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindConflict))

	require.NoError(t, h.UpdatePeer(ctx, nodeID, []byte(`{"body":"updated"}`)))
	got, err := h.GetPeer(ctx, nodeID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"body":"updated"}`, string(got.Data))

	require.NoError(t, h.Cleanup(ctx, nodeID))
	_, err = h.GetPeer(ctx, nodeID)
	assert.True(t, types.Is(err, types.KindNotFound))
}

func TestGroupHandlerOrderedCreateAndCleanup(t *testing.T) {
	ctx := context.Background()
	core := newCoreStore(t)
	eph := ephemeralstore.New()
	h := entities.NewGroupHandler("folder/group:children", core, eph)

	nodeID := newTestNode(t, ctx, core, "folder")

	var entityIDs []types.EntityId
	for _, body := range []string{`"a"`, `"b"`} {
		id, err := h.CreateEntity(ctx, nodeID, []byte(body))
		require.NoError(t, err)
		entityIDs = append(entityIDs, id)
	}

	list, err := h.ListGroup(ctx, nodeID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 0, list[0].SortOrder)
	assert.Equal(t, 1, list[1].SortOrder)

	require.NoError(t, h.ReorderGroup(ctx, nodeID, []types.EntityId{entityIDs[1], entityIDs[0]}))
	list, err = h.ListGroup(ctx, nodeID)
	require.NoError(t, err)
	assert.Equal(t, entityIDs[1], list[0].ID)

	require.NoError(t, h.Cleanup(ctx, nodeID))
	list, err = h.ListGroup(ctx, nodeID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGroupHandlerReorderRejectsWrongClass(t *testing.T) {
	ctx := context.Background()
	core := newCoreStore(t)
	eph := ephemeralstore.New()
	peerHandler := entities.NewPeerHandler("note/peer:body", core, eph)

	err := peerHandler.ReorderGroup(ctx, "n1", nil)
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestRelationalHandlerAddRemoveReference(t *testing.T) {
	ctx := context.Background()
	core := newCoreStore(t)
	eph := ephemeralstore.New()
	h := entities.NewRelationalHandler("basemap/relational:stylemap", core, eph)

	nodeA := newTestNode(t, ctx, core, "basemap")
	nodeB := newTestNode(t, ctx, core, "basemap")

	id, err := h.CreateEntity(ctx, nodeA, []byte(`{"shared":true}`))
	require.NoError(t, err)

	require.NoError(t, h.AddReference(ctx, id, nodeB))
	got, err := h.GetRelational(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RefCount())

	deleted, err := h.RemoveReference(ctx, id, nodeA)
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = h.RemoveReference(ctx, id, nodeB)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestRelationalHandlerRejectsWrongClass(t *testing.T) {
	ctx := context.Background()
	core := newCoreStore(t)
	eph := ephemeralstore.New()
	groupHandler := entities.NewGroupHandler("folder/group:children", core, eph)

	_, err := groupHandler.RemoveReference(ctx, "e1", "n1")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestEphemeralHandlerCleanupDelegatesToEphemeralStore(t *testing.T) {
	ctx := context.Background()
	eph := ephemeralstore.New()
	h := entities.NewEphemeralHandler("stylemap/ephemeral:preview", eph)

	wc := types.NewDraftWorkingCopy("n1", "t1", "t1Root", "stylemap", "Preview")
	require.NoError(t, eph.CreateWorkingCopy(ctx, wc))

	require.NoError(t, h.Cleanup(ctx, "n1"))
	_, err := eph.GetWorkingCopy(ctx, "n1")
	assert.True(t, types.Is(err, types.KindNotFound))
}

func TestHandlerSetLookup(t *testing.T) {
	core := newCoreStore(t)
	eph := ephemeralstore.New()
	set := entities.HandlerSet{
		"note/peer:body": entities.NewPeerHandler("note/peer:body", core, eph),
	}

	h, ok := set.Lookup("note/peer:body")
	require.True(t, ok)
	assert.Equal(t, types.ClassPeer, h.Class)

	_, err := set.MustLookup("missing")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}
