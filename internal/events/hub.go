package events

import (
	"context"
	"sync"
	"time"
)

// Type names a transfer event on the wire.
type Type string

const (
	// TypeUpdate is published on any status or metadata change.
	TypeUpdate Type = "transfer:update"
	// TypeProgress is published for progress-only changes.
	TypeProgress Type = "transfer:progress"
	// TypeComplete is published when a transfer finishes successfully.
	TypeComplete Type = "transfer:complete"
	// TypeError is published when a transfer fails.
	TypeError Type = "transfer:error"
	// TypeSnapshot carries the full record table to a new subscriber.
	TypeSnapshot Type = "snapshot"
)

// Event is one published transfer event. Payload carries a snapshot of the
// subject record (or records, for TypeSnapshot); publishers must never hand
// the hub live pointers.
type Event struct {
	Sequence  uint64    `json:"seq"`
	Type      Type      `json:"type"`
	Timestamp time.Time `json:"ts"`
	Payload   any       `json:"payload,omitempty"`
}

// Sink receives every published event synchronously. Implementations must
// be fast; they run on the publisher's goroutine.
type Sink interface {
	Append(Event)
}

// Hub stores recent events and wakes waiters when new events arrive.
type Hub struct {
	mu       sync.Mutex
	cond     *sync.Cond
	capacity int
	buffer   []Event
	nextSeq  uint64
	sinks    []Sink
}

// NewHub constructs a bounded in-memory event fan-out buffer.
func NewHub(capacity int) *Hub {
	if capacity <= 0 {
		capacity = 512
	}
	h := &Hub{capacity: capacity}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// AddSink wires an additional sink that receives every published event.
func (h *Hub) AddSink(sink Sink) {
	if h == nil || sink == nil {
		return
	}
	h.mu.Lock()
	h.sinks = append(h.sinks, sink)
	h.mu.Unlock()
}

// Publish appends an event to the hub, assigning its sequence number.
func (h *Hub) Publish(eventType Type, payload any) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.nextSeq++
	evt := Event{
		Sequence:  h.nextSeq,
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	if len(h.buffer) == h.capacity {
		copy(h.buffer, h.buffer[1:])
		h.buffer = h.buffer[:h.capacity-1]
	}
	h.buffer = append(h.buffer, evt)
	sinks := append([]Sink(nil), h.sinks...)
	h.cond.Broadcast()
	h.mu.Unlock()

	for _, sink := range sinks {
		sink.Append(evt)
	}
}

// LastSequence returns the sequence of the most recently published event.
func (h *Hub) LastSequence() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.nextSeq
}

// Fetch returns events with sequence greater than since, oldest first. When
// wait is true and nothing is available, Fetch blocks until an event
// arrives or ctx ends.
func (h *Hub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]Event, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if limit <= 0 || limit > h.capacity {
		limit = h.capacity
	}

	cancelWait := make(chan struct{})
	if wait && ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				h.cond.Broadcast()
			case <-cancelWait:
			}
		}()
	}
	defer close(cancelWait)

	h.mu.Lock()
	defer h.mu.Unlock()
	for {
		events, next := h.snapshotLocked(since, limit)
		if len(events) > 0 || !wait {
			return events, next, nil
		}
		if ctx != nil && ctx.Err() != nil {
			return nil, since, ctx.Err()
		}
		h.cond.Wait()
	}
}

func (h *Hub) snapshotLocked(since uint64, limit int) ([]Event, uint64) {
	var out []Event
	next := since
	for _, evt := range h.buffer {
		if evt.Sequence <= since {
			continue
		}
		out = append(out, evt)
		next = evt.Sequence
		if len(out) == limit {
			break
		}
	}
	if len(out) == 0 && since > h.nextSeq {
		// Cursor is ahead of everything published, possibly from a daemon
		// restart. Clamp so the caller resynchronizes.
		next = h.nextSeq
	}
	return out, next
}
