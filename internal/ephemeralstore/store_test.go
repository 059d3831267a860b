package ephemeralstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/types"
)

func TestWorkingCopyLifecycle(t *testing.T) {
	ctx := context.Background()
	s := ephemeralstore.New()

	wc := types.NewDraftWorkingCopy("n1", "t1", "t1Root", "folder", "New Folder")
	require.NoError(t, s.CreateWorkingCopy(ctx, wc))

	_, err := s.GetWorkingCopy(ctx, "n1")
	require.NoError(t, err)

	require.Error(t, s.CreateWorkingCopy(ctx, wc))
	dupErr := s.CreateWorkingCopy(ctx, wc)
	assert.True(t, types.Is(dupErr, types.KindConflict))

	wc.Name = "Renamed"
	require.NoError(t, s.UpdateWorkingCopy(ctx, wc))
	got, err := s.GetWorkingCopy(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)

	require.NoError(t, s.DeleteWorkingCopy(ctx, "n1"))
	_, err = s.GetWorkingCopy(ctx, "n1")
	assert.True(t, types.Is(err, types.KindNotFound))
}

func TestUpdateWorkingCopyMissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := ephemeralstore.New()
	err := s.UpdateWorkingCopy(ctx, &types.WorkingCopy{NodeID: "ghost"})
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindNotFound))
}

func TestGetWorkingCopyReturnsACopyNotAlias(t *testing.T) {
	ctx := context.Background()
	s := ephemeralstore.New()
	wc := types.NewDraftWorkingCopy("n1", "t1", "t1Root", "folder", "Original")
	require.NoError(t, s.CreateWorkingCopy(ctx, wc))

	got, err := s.GetWorkingCopy(ctx, "n1")
	require.NoError(t, err)
	got.Name = "Mutated locally"

	fresh, err := s.GetWorkingCopy(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, "Original", fresh.Name, "store must hand out copies, not internal pointers")
}

func TestStagedEntityBodiesScopedToWorkingCopy(t *testing.T) {
	ctx := context.Background()
	s := ephemeralstore.New()

	peer := &types.PeerEntity{NodeID: "n1", Data: []byte(`{"body":"draft text"}`)}
	require.NoError(t, s.PutPeer(ctx, peer))
	got, err := s.GetPeer(ctx, "n1")
	require.NoError(t, err)
	assert.Equal(t, peer.Data, got.Data)

	require.NoError(t, s.DeletePeer(ctx, "n1"))
	_, err = s.GetPeer(ctx, "n1")
	assert.True(t, types.Is(err, types.KindNotFound))

	groupEntities := []*types.GroupEntity{{ID: "g1", NodeID: "n1"}, {ID: "g2", NodeID: "n1"}}
	require.NoError(t, s.PutGroup(ctx, "n1", groupEntities))
	list, err := s.ListGroup(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	relEntities := []*types.RelationalEntity{{ID: "r1"}}
	require.NoError(t, s.PutRelational(ctx, "n1", relEntities))
	relList, err := s.ListRelational(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, relList, 1)

	ephEntities := []*types.EphemeralEntity{{ID: "e1", WorkingCopyID: "n1"}}
	require.NoError(t, s.PutEphemeral(ctx, "n1", ephEntities))
	ephList, err := s.ListEphemeral(ctx, "n1")
	require.NoError(t, err)
	assert.Len(t, ephList, 1)
}

func TestDeleteWorkingCopyPurgesAllClasses(t *testing.T) {
	ctx := context.Background()
	s := ephemeralstore.New()

	wc := types.NewDraftWorkingCopy("n1", "t1", "t1Root", "note", "N")
	require.NoError(t, s.CreateWorkingCopy(ctx, wc))
	require.NoError(t, s.PutPeer(ctx, &types.PeerEntity{NodeID: "n1", Data: []byte(`{}`)}))
	require.NoError(t, s.PutGroup(ctx, "n1", []*types.GroupEntity{{ID: "g1", NodeID: "n1"}}))
	require.NoError(t, s.PutRelational(ctx, "n1", []*types.RelationalEntity{{ID: "r1"}}))
	require.NoError(t, s.PutEphemeral(ctx, "n1", []*types.EphemeralEntity{{ID: "e1", WorkingCopyID: "n1"}}))

	require.NoError(t, s.DeleteWorkingCopy(ctx, "n1"))

	_, err := s.GetWorkingCopy(ctx, "n1")
	assert.True(t, types.Is(err, types.KindNotFound))
	_, err = s.GetPeer(ctx, "n1")
	assert.True(t, types.Is(err, types.KindNotFound))
	group, _ := s.ListGroup(ctx, "n1")
	assert.Empty(t, group)
	rel, _ := s.ListRelational(ctx, "n1")
	assert.Empty(t, rel)
	eph, _ := s.ListEphemeral(ctx, "n1")
	assert.Empty(t, eph)
}

func TestPurgeResetsEverything(t *testing.T) {
	ctx := context.Background()
	s := ephemeralstore.New()
	wc := types.NewDraftWorkingCopy("n1", "t1", "t1Root", "note", "N")
	require.NoError(t, s.CreateWorkingCopy(ctx, wc))

	s.Purge()

	_, err := s.GetWorkingCopy(ctx, "n1")
	assert.True(t, types.Is(err, types.KindNotFound))
}
