package subscribe_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/untoldecay/treehouse/internal/subscribe"
	"github.com/untoldecay/treehouse/internal/types"
)

func recvWithTimeout(t *testing.T, ch <-chan types.ChangeEvent) types.ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return types.ChangeEvent{}
	}
}

func TestSubscribeNodeOnlyMatchesItsNode(t *testing.T) {
	s := subscribe.New()
	sub := s.SubscribeNode("n1")
	defer sub.Close()

	s.Publish(context.Background(), types.ChangeEvent{NodeID: "other", Seq: 1})
	s.Publish(context.Background(), types.ChangeEvent{NodeID: "n1", Seq: 2})

	ev := recvWithTimeout(t, sub.Events)
	assert.Equal(t, types.NodeId("n1"), ev.NodeID)
	assert.Equal(t, int64(2), ev.Seq)

	select {
	case unexpected := <-sub.Events:
		t.Fatalf("did not expect another event, got %+v", unexpected)
	default:
	}
}

func TestCloseUnregistersSubscription(t *testing.T) {
	s := subscribe.New()
	sub := s.SubscribeNode("n1")
	sub.Close()

	s.Publish(context.Background(), types.ChangeEvent{NodeID: "n1", Seq: 1})

	_, ok := <-sub.Events
	assert.False(t, ok, "channel must be closed once the subscription is closed")
}

func TestCloseIsIdempotent(t *testing.T) {
	s := subscribe.New()
	sub := s.SubscribeNode("n1")
	sub.Close()
	assert.NotPanics(t, func() { sub.Close() })
}

func TestSubscribeSubtreeTracksDescendantsAndMovesIn(t *testing.T) {
	s := subscribe.New()
	known := map[types.NodeId]bool{}
	isDescendant := func(id types.NodeId) bool { return known[id] }

	sub := s.SubscribeSubtree("root", isDescendant)
	defer sub.Close()

	known["child"] = true
	s.Publish(context.Background(), types.ChangeEvent{NodeID: "child", Seq: 1})
	ev := recvWithTimeout(t, sub.Events)
	assert.Equal(t, types.NodeId("child"), ev.NodeID)

	moved := types.NodeId("moved-in")
	known[moved] = false
	after := &types.Node{ParentID: "root"}
	s.Publish(context.Background(), types.ChangeEvent{NodeID: moved, After: after})
	ev = recvWithTimeout(t, sub.Events)
	assert.Equal(t, moved, ev.NodeID)

	s.Publish(context.Background(), types.ChangeEvent{NodeID: "unrelated"})
	select {
	case unexpected := <-sub.Events:
		t.Fatalf("did not expect event for unrelated node, got %+v", unexpected)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueueOverflowDropsOldestAndMarksGap(t *testing.T) {
	s := subscribe.New()
	sub := s.SubscribeNode("n1")
	defer sub.Close()

	for i := 0; i < subscribe.QueueCap+5; i++ {
		s.Publish(context.Background(), types.ChangeEvent{NodeID: "n1", Seq: int64(i)})
	}

	sawGap := false
	for i := 0; i < subscribe.QueueCap; i++ {
		select {
		case ev := <-sub.Events:
			if subscribe.IsGap(ev) {
				sawGap = true
			}
		default:
		}
	}
	assert.True(t, sawGap, "an overflowing subscriber must see a gap marker rather than silently miss events")
}

func TestPublishNeverBlocksOnOneSlowSubscriber(t *testing.T) {
	s := subscribe.New()
	slow := s.SubscribeNode("n1")
	defer slow.Close()
	fast := s.SubscribeNode("n1")
	defer fast.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscribe.QueueCap*2; i++ {
			s.Publish(context.Background(), types.ChangeEvent{NodeID: "n1", Seq: int64(i)})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a subscriber that never drains its queue")
	}
	_ = fast
}
