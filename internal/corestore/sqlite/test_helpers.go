package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/treehouse/internal/ids"
	"github.com/untoldecay/treehouse/internal/types"
)

// testEnv bundles a freshly-opened Store with the context its helpers use,
// grounded on the teacher's internal/storage/sqlite/test_helpers.go testEnv.
type testEnv struct {
	t     *testing.T
	Store *Store
	Ctx   context.Context
}

// newTestEnv creates a test environment with a configured store. The store
// is automatically closed when the test completes.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return &testEnv{t: t, Store: newTestStore(t), Ctx: context.Background()}
}

// newTestStore opens a store at a per-test temp file rather than
// ":memory:" — treehouse's Open maps ":memory:" to a shared-cache DSN,
// which (like the teacher's own bd-2e80 fix) would hand every test in the
// same process the same database instead of an isolated one.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := t.TempDir() + "/store.db"
	store, err := Open(path)
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("closing test store: %v", err)
		}
	})
	return store
}

// CreateTestTree creates and persists a brand-new tree with its three
// distinguished roots, returning it.
func (e *testEnv) CreateTestTree(name string) *types.Tree {
	e.t.Helper()
	tr := types.NewTree(ids.NewTreeID(), name)
	if err := e.Store.CreateTree(e.Ctx, tr); err != nil {
		e.t.Fatalf("CreateTree(%q) failed: %v", name, err)
	}
	return &tr
}

// CreateTestNode inserts a live (non-draft) node directly under parentID
// and returns it.
func (e *testEnv) CreateTestNode(tr *types.Tree, parentID types.NodeId, nodeType, name string) *types.Node {
	e.t.Helper()
	n := &types.Node{
		ID:       ids.NewNodeID(),
		TreeID:   tr.ID,
		ParentID: parentID,
		NodeType: nodeType,
		Name:     name,
	}
	if err := e.Store.CreateNode(e.Ctx, n); err != nil {
		e.t.Fatalf("CreateNode(%q) failed: %v", name, err)
	}
	return n
}

// CreateTestDraft inserts a draft node under parentID and returns it.
func (e *testEnv) CreateTestDraft(tr *types.Tree, parentID types.NodeId, nodeType, name string) *types.Node {
	e.t.Helper()
	n := &types.Node{
		ID:       ids.NewNodeID(),
		TreeID:   tr.ID,
		ParentID: parentID,
		NodeType: nodeType,
		Name:     name,
		IsDraft:  true,
	}
	if err := e.Store.CreateNode(e.Ctx, n); err != nil {
		e.t.Fatalf("CreateNode(draft %q) failed: %v", name, err)
	}
	return n
}

// withinASecond reports whether t1 and t2 are less than a second apart, for
// tests that only need "was it set", not "was it set to exactly now".
func withinASecond(t1, t2 time.Time) bool {
	d := t1.Sub(t2)
	if d < 0 {
		d = -d
	}
	return d < time.Second
}
