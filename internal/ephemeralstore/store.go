// Package ephemeralstore implements the Ephemeral Store (§4.3): the
// working-copy table and per-class staged entity bodies. It carries no
// durability guarantee — purging every record is a valid recovery path —
// so it is implemented as plain in-memory maps guarded by a mutex, the
// same shape as the teacher's internal/storage/memory in-memory Storage
// used for its own tests, here promoted to a first-class component
// because the spec requires the Ephemeral Store to exist independently of
// whatever durable backend the Core Store uses.
package ephemeralstore

import (
	"context"
	"sync"

	"github.com/untoldecay/treehouse/internal/types"
)

// Store is the in-memory Ephemeral Store. The zero value is not usable;
// construct with New.
type Store struct {
	mu sync.Mutex

	workingCopies map[types.NodeId]*types.WorkingCopy

	peer       map[types.NodeId]*types.PeerEntity
	group      map[types.NodeId][]*types.GroupEntity // by owning working copy's nodeID
	relational map[types.NodeId][]*types.RelationalEntity
	ephemeral  map[types.NodeId][]*types.EphemeralEntity
}

// New returns an empty Ephemeral Store.
func New() *Store {
	return &Store{
		workingCopies: make(map[types.NodeId]*types.WorkingCopy),
		peer:          make(map[types.NodeId]*types.PeerEntity),
		group:         make(map[types.NodeId][]*types.GroupEntity),
		relational:    make(map[types.NodeId][]*types.RelationalEntity),
		ephemeral:     make(map[types.NodeId][]*types.EphemeralEntity),
	}
}

// Purge drops every record. A valid recovery path per §4.3; also used by
// tests to reset state between cases.
func (s *Store) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workingCopies = make(map[types.NodeId]*types.WorkingCopy)
	s.peer = make(map[types.NodeId]*types.PeerEntity)
	s.group = make(map[types.NodeId][]*types.GroupEntity)
	s.relational = make(map[types.NodeId][]*types.RelationalEntity)
	s.ephemeral = make(map[types.NodeId][]*types.EphemeralEntity)
}

// --- Working-copy table ---

func (s *Store) GetWorkingCopy(_ context.Context, nodeID types.NodeId) (*types.WorkingCopy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wc, ok := s.workingCopies[nodeID]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "GetWorkingCopy", "no working copy for node", nil)
	}
	cp := *wc
	return &cp, nil
}

// CreateWorkingCopy installs wc, failing with KindConflict if one already
// exists for wc.NodeID, per §4.5's "fail with Conflict" rule.
func (s *Store) CreateWorkingCopy(_ context.Context, wc *types.WorkingCopy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workingCopies[wc.NodeID]; exists {
		return types.NewError(types.KindConflict, "CreateWorkingCopy", "working copy already exists for node", nil)
	}
	cp := *wc
	s.workingCopies[wc.NodeID] = &cp
	return nil
}

func (s *Store) UpdateWorkingCopy(_ context.Context, wc *types.WorkingCopy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.workingCopies[wc.NodeID]; !exists {
		return types.NewError(types.KindNotFound, "UpdateWorkingCopy", "no working copy for node", nil)
	}
	cp := *wc
	s.workingCopies[wc.NodeID] = &cp
	return nil
}

// DeleteWorkingCopy removes the working-copy record and every staged
// entity body attached to it, across all four classes. Idempotent.
func (s *Store) DeleteWorkingCopy(_ context.Context, nodeID types.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.workingCopies, nodeID)
	delete(s.peer, nodeID)
	delete(s.group, nodeID)
	delete(s.relational, nodeID)
	delete(s.ephemeral, nodeID)
	return nil
}

// --- Staged entity bodies, keyed identically to Core tables but scoped
// under the owning working copy's NodeId. ---

func (s *Store) GetPeer(_ context.Context, nodeID types.NodeId) (*types.PeerEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.peer[nodeID]
	if !ok {
		return nil, types.NewError(types.KindNotFound, "GetPeer", "no staged peer entity", nil)
	}
	cp := *e
	return &cp, nil
}

func (s *Store) PutPeer(_ context.Context, e *types.PeerEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.peer[e.NodeID] = &cp
	return nil
}

func (s *Store) DeletePeer(_ context.Context, nodeID types.NodeId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.peer, nodeID)
	return nil
}

func (s *Store) ListGroup(_ context.Context, nodeID types.NodeId) ([]*types.GroupEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.GroupEntity, len(s.group[nodeID]))
	for i, e := range s.group[nodeID] {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) PutGroup(_ context.Context, nodeID types.NodeId, entities []*types.GroupEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*types.GroupEntity, len(entities))
	for i, e := range entities {
		c := *e
		cp[i] = &c
	}
	s.group[nodeID] = cp
	return nil
}

func (s *Store) ListRelational(_ context.Context, nodeID types.NodeId) ([]*types.RelationalEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.RelationalEntity, len(s.relational[nodeID]))
	for i, e := range s.relational[nodeID] {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) PutRelational(_ context.Context, nodeID types.NodeId, entities []*types.RelationalEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*types.RelationalEntity, len(entities))
	for i, e := range entities {
		c := *e
		cp[i] = &c
	}
	s.relational[nodeID] = cp
	return nil
}

func (s *Store) ListEphemeral(_ context.Context, workingCopyID types.NodeId) ([]*types.EphemeralEntity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.EphemeralEntity, len(s.ephemeral[workingCopyID]))
	for i, e := range s.ephemeral[workingCopyID] {
		cp := *e
		out[i] = &cp
	}
	return out, nil
}

func (s *Store) PutEphemeral(_ context.Context, workingCopyID types.NodeId, entities []*types.EphemeralEntity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]*types.EphemeralEntity, len(entities))
	for i, e := range entities {
		c := *e
		cp[i] = &c
	}
	s.ephemeral[workingCopyID] = cp
	return nil
}
