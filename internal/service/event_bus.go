package service

import (
	"sync"

	"webhook-engine/internal/core/domain"
)

const busBufferSize = 16

// EventBus fans published events out to in-process listeners. It sits beside
// the HTTP dispatch path so other components (admin streams, audit taps) can
// observe traffic without touching the delivery engine.
//
// Sends never block: a listener that falls behind misses events instead of
// stalling publication.
type EventBus struct {
	mu     sync.Mutex
	subs   map[*BusSubscription]struct{}
	closed bool
}

// BusSubscription is a handle to a bus listener. Callers receive on C() and
// must Close() the handle when done.
type BusSubscription struct {
	bus    *EventBus
	ch     chan domain.Event
	events map[string]struct{} // empty means all events
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[*BusSubscription]struct{})}
}

// Subscribe registers a listener for the given event types. With no types it
// receives everything.
func (b *EventBus) Subscribe(eventTypes ...string) *BusSubscription {
	sub := &BusSubscription{
		bus:    b,
		ch:     make(chan domain.Event, busBufferSize),
		events: make(map[string]struct{}, len(eventTypes)),
	}
	for _, et := range eventTypes {
		sub.events[et] = struct{}{}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	return sub
}

// Publish delivers the event to every interested listener without blocking.
func (b *EventBus) Publish(event domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for sub := range b.subs {
		if len(sub.events) > 0 {
			if _, ok := sub.events[event.Type]; !ok {
				continue
			}
		}
		select {
		case sub.ch <- event:
		default: // listener is behind, drop
		}
	}
}

// Close shuts the bus down and closes every listener channel.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
	}
	b.subs = nil
}

// C returns the listener's receive channel. It is closed when either the
// subscription or the bus closes.
func (s *BusSubscription) C() <-chan domain.Event {
	return s.ch
}

// Close detaches the listener from the bus.
func (s *BusSubscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if s.bus.closed {
		return
	}
	if _, ok := s.bus.subs[s]; ok {
		delete(s.bus.subs, s)
		close(s.ch)
	}
}
