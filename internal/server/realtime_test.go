package server

import (
	"context"
	"testing"
	"time"
)

func TestRealtimeDispatcherDeliversToSpaceSubscribers(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, unsubscribe := dispatcher.Subscribe(ctx, "space-1")
	defer unsubscribe()
	otherStream, otherUnsubscribe := dispatcher.Subscribe(ctx, "space-2")
	defer otherUnsubscribe()

	message := RealtimeMessage{
		SpaceID:   "space-1",
		EventType: RealtimeEventBranchCreated,
		BranchID:  "branch-1",
		Timestamp: time.Now().UTC(),
	}
	dispatcher.Publish(message)

	select {
	case received := <-stream:
		if received.BranchID != "branch-1" || received.EventType != RealtimeEventBranchCreated {
			t.Fatalf("unexpected message: %+v", received)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a message on the space-1 stream")
	}

	select {
	case received := <-otherStream:
		t.Fatalf("space-2 subscriber must not receive space-1 events: %+v", received)
	default:
	}
}

func TestRealtimeDispatcherStopsAfterUnsubscribe(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	stream, unsubscribe := dispatcher.Subscribe(context.Background(), "space-1")

	unsubscribe()
	dispatcher.Publish(RealtimeMessage{SpaceID: "space-1", EventType: RealtimeEventBranchDeleted})

	select {
	case message := <-stream:
		t.Fatalf("unsubscribed stream must stay silent, got %+v", message)
	default:
	}
}

func TestRealtimeDispatcherUnsubscribesOnContextCancel(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	stream, _ := dispatcher.Subscribe(ctx, "space-1")
	cancel()

	// The goroutine watching ctx needs a moment to unregister.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		dispatcher.mu.RLock()
		_, present := dispatcher.subscribers["space-1"]
		dispatcher.mu.RUnlock()
		if !present {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	dispatcher.Publish(RealtimeMessage{SpaceID: "space-1", EventType: RealtimeEventBranchMerged})
	select {
	case message := <-stream:
		t.Fatalf("cancelled stream must stay silent, got %+v", message)
	default:
	}
}

func TestRealtimeDispatcherNeverBlocksOnSlowSubscriber(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nobody drains this stream; publishing beyond the buffer must not hang.
	_, unsubscribe := dispatcher.Subscribe(ctx, "space-1")
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < dispatcher.bufferSize*2; i++ {
			dispatcher.Publish(RealtimeMessage{SpaceID: "space-1", EventType: RealtimeEventBranchCreated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publishing to a full buffer must not block")
	}
}

func TestRealtimeDispatcherIgnoresInvalidMessages(t *testing.T) {
	dispatcher := NewRealtimeDispatcher()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, unsubscribe := dispatcher.Subscribe(ctx, "space-1")
	defer unsubscribe()

	dispatcher.Publish(RealtimeMessage{SpaceID: "", EventType: RealtimeEventBranchCreated})
	dispatcher.Publish(RealtimeMessage{SpaceID: "space-1", EventType: ""})

	select {
	case message := <-stream:
		t.Fatalf("invalid messages must be dropped, got %+v", message)
	default:
	}
}
