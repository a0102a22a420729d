package engine

import (
	"sync"

	"github.com/dm/memwatch/internal/model"
)

// EventKind identifies the payload carried by an Event.
type EventKind string

const (
	EventUpdate   EventKind = "update"
	EventAlert    EventKind = "alert"
	EventSnapshot EventKind = "snapshot"
)

// Event is delivered to subscribers. Exactly one payload field is set,
// matching Kind.
type Event struct {
	Kind     EventKind           `json:"kind"`
	Sample   *model.MemorySample `json:"sample,omitempty"`
	Alert    *model.Alert        `json:"alert,omitempty"`
	Snapshot *model.Snapshot     `json:"snapshot,omitempty"`
}

// Handler receives events synchronously on the emitting goroutine.
// Handlers must not call Sampler.Stop.
type Handler func(Event)

// SubscriptionID identifies a registered Handler.
type SubscriptionID uint64

type subscriber struct {
	id SubscriptionID
	fn Handler
}

// bus delivers events to handlers in registration order.
type bus struct {
	mu     sync.RWMutex
	nextID SubscriptionID
	subs   []subscriber
}

func (b *bus) subscribe(fn Handler) SubscriptionID {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return b.nextID
}

func (b *bus) unsubscribe(id SubscriptionID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return true
		}
	}
	return false
}

// emit copies the subscriber list so handlers may (un)subscribe while
// being called.
func (b *bus) emit(ev Event) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}
