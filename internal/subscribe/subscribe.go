// Package subscribe implements the Subscribe Service (§4.9):
// subscribeNode/subscribeSubtree change subjects with bounded,
// per-subscriber delivery and drop-oldest-with-gap-notification overflow.
//
// Grounded on the teacher's daemon/client split (internal/rpc — one
// writer, many clients over a socket) as the "one writer, many observers"
// analogue, and internal/daemon/registry.go's mutex-guarded entry list for
// the subscriber-registry shape. Fan-out delivery uses
// golang.org/x/sync/errgroup the way the teacher's batch operations fan
// out independent per-item work.
package subscribe

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/untoldecay/treehouse/internal/types"
)

// QueueCap bounds each subscriber's buffered channel. A slow subscriber
// never blocks the writer: once full, the two oldest buffered events are
// dropped to make room for a gap notification followed by the new event.
const QueueCap = 256

// GapEvent is delivered in place of a dropped event when a subscriber's
// buffer overflows, so the subscriber can detect it missed something
// instead of silently falling behind.
var GapEvent = types.ChangeEvent{Type: -1}

// IsGap reports whether ev is a gap-notification placeholder.
func IsGap(ev types.ChangeEvent) bool { return ev.Type == -1 }

// Subscription is a live filtered view of the change stream.
type Subscription struct {
	Events <-chan types.ChangeEvent

	svc *Service
	id  int64
}

// Close unregisters the subscription. Safe to call more than once.
func (s *Subscription) Close() { s.svc.remove(s.id) }

type subscriber struct {
	id      int64
	ch      chan types.ChangeEvent
	matches func(types.ChangeEvent) bool
}

// Service is the process-wide change-event broadcaster: one writer
// (Publish), many bounded subscriber queues.
type Service struct {
	mu     sync.Mutex
	nextID int64
	subs   map[int64]*subscriber
}

// New returns an empty Service.
func New() *Service {
	return &Service{subs: make(map[int64]*subscriber)}
}

// SubscribeNode returns a Stream filtered to nodeID.
func (s *Service) SubscribeNode(nodeID types.NodeId) *Subscription {
	return s.subscribe(func(ev types.ChangeEvent) bool { return ev.NodeID == nodeID })
}

// SubscribeSubtree returns a Stream filtered to the closed descendant set
// of nodeID as of subscription time, expanded to include nodes
// subsequently moved in. isDescendant is supplied by the caller
// (internal/engine, which can walk the Core Store) to test ids not yet
// seen; matched ids are cached so a later move away doesn't un-match them.
func (s *Service) SubscribeSubtree(nodeID types.NodeId, isDescendant func(types.NodeId) bool) *Subscription {
	tracked := map[types.NodeId]bool{nodeID: true}
	var mu sync.Mutex
	matches := func(ev types.ChangeEvent) bool {
		mu.Lock()
		defer mu.Unlock()
		if tracked[ev.NodeID] {
			return true
		}
		if isDescendant(ev.NodeID) {
			tracked[ev.NodeID] = true
			return true
		}
		if ev.After != nil && tracked[ev.After.ParentID] {
			tracked[ev.NodeID] = true
			return true
		}
		return false
	}
	return s.subscribe(matches)
}

func (s *Service) subscribe(matches func(types.ChangeEvent) bool) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	sub := &subscriber{id: id, ch: make(chan types.ChangeEvent, QueueCap), matches: matches}
	s.subs[id] = sub
	return &Subscription{Events: sub.ch, svc: s, id: id}
}

func (s *Service) remove(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[id]; ok {
		close(sub.ch)
		delete(s.subs, id)
	}
}

// Publish delivers ev, in seq order per subscriber, to every matching
// subscription. Delivery is at-least-once: a full queue drops its two
// oldest buffered events and enqueues GapEvent then ev rather than block
// the writer.
// Failures delivering to one subscriber (a closed channel raced by
// Close) never affect another, and never propagate to the writer.
func (s *Service) Publish(ctx context.Context, ev types.ChangeEvent) {
	s.mu.Lock()
	targets := make([]*subscriber, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.matches(ev) {
			targets = append(targets, sub)
		}
	}
	s.mu.Unlock()

	g, _ := errgroup.WithContext(ctx)
	for _, sub := range targets {
		sub := sub
		g.Go(func() error {
			deliver(sub.ch, ev)
			return nil
		})
	}
	_ = g.Wait()
}

func deliver(ch chan types.ChangeEvent, ev types.ChangeEvent) {
	defer func() { _ = recover() }() // channel may have been closed by a racing Close
	select {
	case ch <- ev:
		return
	default:
	}
	// Queue full: drop the two oldest to make room for the gap marker and ev.
	for i := 0; i < 2; i++ {
		select {
		case <-ch:
		default:
		}
	}
	select {
	case ch <- GapEvent:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}
