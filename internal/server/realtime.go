package server

import (
	"context"
	"sync"
	"time"
)

const (
	// RealtimeEventBranchCreated notifies subscribers of a new branch.
	RealtimeEventBranchCreated = "branch-created"
	// RealtimeEventBranchMerged notifies subscribers of a committed merge.
	RealtimeEventBranchMerged = "branch-merged"
	// RealtimeEventBranchDeleted notifies subscribers of a deleted branch.
	RealtimeEventBranchDeleted = "branch-deleted"
)

// RealtimeMessage is the fanout payload for branch lifecycle events within
// one space.
type RealtimeMessage struct {
	SpaceID        string    `json:"space_id"`
	EventType      string    `json:"event_type"`
	BranchID       string    `json:"branch_id"`
	SourceBranchID string    `json:"source_branch_id,omitempty"`
	ActorID        string    `json:"actor_id,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// RealtimeDispatcher fans branch events out to per-space subscribers.
// Publishing never blocks; slow subscribers drop messages.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

// NewRealtimeDispatcher constructs an empty dispatcher.
func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[string]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a listener for one space's events until ctx ends.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, spaceID string) (<-chan RealtimeMessage, func()) {
	if spaceID == "" {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(spaceID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(spaceID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers a message to every live subscriber of its space.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.SpaceID == "" || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.SpaceID]
	if len(subscribers) == 0 {
		d.mu.RUnlock()
		return
	}
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(spaceID string, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[spaceID]; !ok {
		d.subscribers[spaceID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[spaceID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(spaceID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[spaceID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, spaceID)
		}
	}
	d.mu.Unlock()
}
