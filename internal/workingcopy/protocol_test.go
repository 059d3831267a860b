package workingcopy_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/command"
	"github.com/untoldecay/treehouse/internal/corestore/sqlite"
	"github.com/untoldecay/treehouse/internal/entities"
	"github.com/untoldecay/treehouse/internal/ephemeralstore"
	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/registry"
	"github.com/untoldecay/treehouse/internal/types"
	"github.com/untoldecay/treehouse/internal/workingcopy"
)

// noopHooks satisfies workingcopy.Hooks without requiring internal/lifecycle,
// keeping these tests scoped to the Working-Copy Protocol in isolation.
type noopHooks struct{}

func (noopHooks) BeforeCreate(ctx context.Context, n *types.Node) error            { return nil }
func (noopHooks) AfterCreate(ctx context.Context, n *types.Node)                   {}
func (noopHooks) BeforeUpdate(ctx context.Context, before, after *types.Node) error { return nil }
func (noopHooks) AfterUpdate(ctx context.Context, before, after *types.Node)        {}

func newProtocol(t *testing.T) (*workingcopy.Protocol, *types.Tree) {
	t.Helper()
	core, err := sqlite.Open(t.TempDir() + "/store.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = core.Close() })

	tr := types.NewTree(ids.NewTreeID(), "T")
	require.NoError(t, core.CreateTree(context.Background(), tr))

	reg := registry.New()
	reg.Register(registry.Config{NodeType: "folder", CanBeRoot: true, CanBeRenamed: true, CanBeMoved: true, CanBeDeleted: true})
	reg.Register(registry.Config{NodeType: "note", CanBeRoot: false, CanBeRenamed: true, CanBeMoved: true, CanBeDeleted: true})
	reg.Register(registry.Config{NodeType: "locked", CanBeRoot: true, CanBeRenamed: false, CanBeMoved: false, CanBeDeleted: false})
	reg.Register(registry.Config{
		NodeType:        "gallery",
		CanBeRoot:       true,
		CanBeRenamed:    true,
		CanBeMoved:      true,
		CanBeDeleted:    true,
		AllowedChildren: map[string]bool{"note": true},
		MaxChildren:     1,
	})

	p := &workingcopy.Protocol{
		Core:     core,
		Eph:      ephemeralstore.New(),
		Registry: reg,
		Handlers: entities.HandlerSet{},
		Hooks:    noopHooks{},
		Seq:      command.New(),
	}
	return p, &tr
}

func TestCreateDraftAndCommitRoundTrip(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)

	wc, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "folder", "Notes")
	require.NoError(t, err)
	assert.True(t, wc.IsDraft)

	res, err := p.Commit(ctx, wc.NodeID, types.ConflictError)
	require.NoError(t, err)
	assert.Equal(t, wc.NodeID, res.NodeID)
	require.Len(t, res.Events, 1)
	assert.Equal(t, types.ChangeCreate, res.Events[0].Type)

	got, err := p.Core.GetNode(ctx, tr.ID, wc.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "Notes", got.Name)
	assert.False(t, got.IsDraft)
}

func TestCreateDraftRejectsInvalidName(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	_, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "folder", "")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestCreateDraftUnregisteredTypeIsInvalidArgument(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	_, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "unregistered", "X")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestCreateDraftEnforcesCanBeRoot(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	_, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "note", "N")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindIllegalRelation))
}

func TestCreateDraftAllowedUnderNonRootParent(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)

	folder := env(t).CreateTestNode(p, tr, tr.RootID, "folder", "F")
	_, err := p.CreateDraft(ctx, tr.ID, folder.ID, "note", "N")
	assert.NoError(t, err)
}

func TestCreateDraftEnforcesAllowedChildren(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	gallery := env(t).CreateTestNode(p, tr, tr.RootID, "gallery", "G")

	_, err := p.CreateDraft(ctx, tr.ID, gallery.ID, "folder", "F")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindIllegalRelation))
}

func TestCreateDraftEnforcesMaxChildren(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	gallery := env(t).CreateTestNode(p, tr, tr.RootID, "gallery", "G")

	wc, err := p.CreateDraft(ctx, tr.ID, gallery.ID, "note", "First")
	require.NoError(t, err)
	_, err = p.Commit(ctx, wc.NodeID, types.ConflictError)
	require.NoError(t, err)

	_, err = p.CreateDraft(ctx, tr.ID, gallery.ID, "note", "Second")
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindIllegalRelation))
}

func TestCommitEnforcesCanBeRenamed(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	locked := env(t).CreateTestNode(p, tr, tr.RootID, "locked", "Locked")

	wc, err := p.CreateEdit(ctx, tr.ID, locked.ID)
	require.NoError(t, err)
	wc.Name = "renamed"
	require.NoError(t, p.Eph.UpdateWorkingCopy(ctx, wc))

	_, err = p.Commit(ctx, wc.NodeID, types.ConflictError)
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestCommitEnforcesCanBeMoved(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	locked := env(t).CreateTestNode(p, tr, tr.RootID, "locked", "Locked")
	otherParent := env(t).CreateTestNode(p, tr, tr.RootID, "folder", "Other")

	wc, err := p.CreateEdit(ctx, tr.ID, locked.ID)
	require.NoError(t, err)
	wc.ParentID = otherParent.ID
	require.NoError(t, p.Eph.UpdateWorkingCopy(ctx, wc))

	_, err = p.Commit(ctx, wc.NodeID, types.ConflictError)
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindInvalidArgument))
}

func TestCommitNameConflictErrorsByDefault(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	env(t).CreateTestNode(p, tr, tr.RootID, "folder", "Taken")

	wc, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "folder", "Taken")
	require.NoError(t, err)
	_, err = p.Commit(ctx, wc.NodeID, types.ConflictError)
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindNameNotUnique))
}

func TestCommitNameConflictAutoRenames(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	env(t).CreateTestNode(p, tr, tr.RootID, "folder", "Taken")

	wc, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "folder", "Taken")
	require.NoError(t, err)
	res, err := p.Commit(ctx, wc.NodeID, types.ConflictAutoRename)
	require.NoError(t, err)

	got, err := p.Core.GetNode(ctx, tr.ID, res.NodeID)
	require.NoError(t, err)
	assert.Equal(t, "Taken (2)", got.Name)
}

func TestCommitStaleVersionRejected(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	folder := env(t).CreateTestNode(p, tr, tr.RootID, "folder", "F")

	wc1, err := p.CreateEdit(ctx, tr.ID, folder.ID)
	require.NoError(t, err)

	// An external write lands first, advancing the node's version.
	cur, err := p.Core.GetNode(ctx, tr.ID, folder.ID)
	require.NoError(t, err)
	cur.Name = "Renamed elsewhere"
	require.NoError(t, p.Core.UpdateNode(ctx, cur, cur.Version))
	require.Equal(t, wc1.BaseVersion+1, cur.Version)

	wc1.Name = "Stale rename"
	require.NoError(t, p.Eph.UpdateWorkingCopy(ctx, wc1))
	_, err = p.Commit(ctx, wc1.NodeID, types.ConflictError)
	require.Error(t, err)
	assert.True(t, types.Is(err, types.KindStaleVersion))
}

func TestDiscardDeletesWorkingCopyWithoutTouchingCore(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)

	wc, err := p.CreateDraft(ctx, tr.ID, tr.RootID, "folder", "Draft")
	require.NoError(t, err)
	require.NoError(t, p.Discard(ctx, wc.NodeID))

	_, err = p.Eph.GetWorkingCopy(ctx, wc.NodeID)
	assert.True(t, types.Is(err, types.KindNotFound))

	_, err = p.Core.GetNode(ctx, tr.ID, wc.NodeID)
	assert.True(t, types.Is(err, types.KindNotFound))
}

func TestStagePeerCopyOnWriteThenCommitPersists(t *testing.T) {
	ctx := context.Background()
	p, tr := newProtocol(t)
	note := env(t).CreateTestNode(p, tr, env(t).CreateTestNode(p, tr, tr.RootID, "folder", "F").ID, "note", "N")

	wc, err := p.CreateEdit(ctx, tr.ID, note.ID)
	require.NoError(t, err)

	require.NoError(t, p.StagePeer(ctx, wc.NodeID, func(body *types.PeerEntity) {
		body.Data = []byte(`{"body":"hello"}`)
	}))

	_, err = p.Commit(ctx, wc.NodeID, types.ConflictError)
	require.NoError(t, err)

	got, err := p.Core.GetPeer(ctx, note.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"body":"hello"}`, string(got.Data))
}

// env is a tiny ad-hoc fixture helper local to this test file: it builds
// live nodes directly through the Core Store so tests can set up fixtures
// without going through the draft/commit protocol under test.
type fixture struct{ t *testing.T }

func env(t *testing.T) fixture { return fixture{t: t} }

func (f fixture) CreateTestNode(p *workingcopy.Protocol, tr *types.Tree, parentID types.NodeId, nodeType, name string) *types.Node {
	f.t.Helper()
	n := &types.Node{ID: ids.NewNodeID(), TreeID: tr.ID, ParentID: parentID, NodeType: nodeType, Name: name}
	require.NoError(f.t, p.Core.CreateNode(context.Background(), n))
	return n
}
