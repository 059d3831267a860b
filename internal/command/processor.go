// Package command implements the Command Processor (§4.8): envelope
// intake, process-monotone seq assignment, and the undo/redo stacks
// grouped by commandId/groupId.
//
// Grounded on the teacher's internal/rpc/protocol.go (Request/Response
// shape and Op* naming convention, generalized into the Envelope/Result
// pair from §3/§6) and internal/merge's delta-reconstruction-for-conflicts
// idiom, generalized here into inverse-descriptor undo.
package command

import (
	"context"
	"sync"

	"github.com/untoldecay/treehouse/internal/types"
)

// InverseOp reconstructs the pre-image of one mutation. Apply performs the
// inverse as an ordinary, separately-versioned-and-observed mutation and
// returns the seq it was assigned.
type InverseOp interface {
	Apply(ctx context.Context) (seq int64, err error)
	// Describe is used only for diagnostics/logging.
	Describe() string
}

// Group is one atomic undo/redo unit: every inverse op sharing a groupId,
// stored in apply order so Undo can replay them in reverse.
type Group struct {
	GroupID string
	Inverse []InverseOp
}

// Processor assigns seq numbers and owns the undo/redo stacks. The
// Command Processor's stacks are owned by the single writer path per §5,
// so Processor is not safe for concurrent undo()/redo()/Record() calls
// from multiple goroutines — same single-threaded assumption as the rest
// of the engine — but the mutex still guards NextSeq since
// internal/workingcopy, internal/treeops and internal/engine all draw
// seqs from it.
type Processor struct {
	mu       sync.Mutex
	nextSeq  int64
	undo     []*Group
	redo     []*Group
}

// New returns a Processor with seq starting at 1.
func New() *Processor {
	return &Processor{nextSeq: 1}
}

// NextSeq returns the next process-monotone sequence number. Satisfies
// internal/workingcopy.SeqAllocator and internal/treeops.SeqAllocator.
func (p *Processor) NextSeq(_ context.Context) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	seq := p.nextSeq
	p.nextSeq++
	return seq, nil
}

// Record pushes a new undo group for a just-completed mutation and clears
// the redo stack, per §4.8 step 2.
func (p *Processor) Record(groupID string, inverse []InverseOp) {
	if len(inverse) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.undo = append(p.undo, &Group{GroupID: groupID, Inverse: inverse})
	p.redo = nil
}

// Undo pops the most recent group, applies its inverse descriptors in
// reverse order as ordinary mutations, and pushes the result onto the
// redo stack. Returns the seq of the last applied inverse op.
func (p *Processor) Undo(ctx context.Context) (int64, error) {
	p.mu.Lock()
	if len(p.undo) == 0 {
		p.mu.Unlock()
		return 0, types.NewError(types.KindNotFound, "Undo", "nothing to undo", nil)
	}
	g := p.undo[len(p.undo)-1]
	p.undo = p.undo[:len(p.undo)-1]
	p.mu.Unlock()

	var lastSeq int64
	for i := len(g.Inverse) - 1; i >= 0; i-- {
		seq, err := g.Inverse[i].Apply(ctx)
		if err != nil {
			return 0, err
		}
		lastSeq = seq
	}

	p.mu.Lock()
	p.redo = append(p.redo, g)
	p.mu.Unlock()
	return lastSeq, nil
}

// Redo is symmetric to Undo: it pops the most recent redo group, replays
// it forward, and pushes it back onto the undo stack.
func (p *Processor) Redo(ctx context.Context) (int64, error) {
	p.mu.Lock()
	if len(p.redo) == 0 {
		p.mu.Unlock()
		return 0, types.NewError(types.KindNotFound, "Redo", "nothing to redo", nil)
	}
	g := p.redo[len(p.redo)-1]
	p.redo = p.redo[:len(p.redo)-1]
	p.mu.Unlock()

	var lastSeq int64
	for _, op := range g.Inverse {
		seq, err := op.Apply(ctx)
		if err != nil {
			return 0, err
		}
		lastSeq = seq
	}

	p.mu.Lock()
	p.undo = append(p.undo, g)
	p.mu.Unlock()
	return lastSeq, nil
}
