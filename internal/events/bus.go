// Package events provides the in-process event bus for governance events.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a class of system event
type EventType string

const (
	TransactionExecuted EventType = "transaction_executed"
	TransactionFailed   EventType = "transaction_failed"
	FundsLocked         EventType = "funds_locked"
	FundsUnlocked       EventType = "funds_unlocked"
	BudgetUpdated       EventType = "budget_updated"
	RevenueRecorded     EventType = "revenue_recorded"
	SystemHalted        EventType = "system_halted"
	SystemPaused        EventType = "system_paused"
	SystemResumed       EventType = "system_resumed"
	OpportunityDeclined EventType = "opportunity_declined"
)

// Event is a single emitted event with typed payload
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// Handler receives events. Handlers must not block; slow consumers should
// buffer on their own channel and drop when full. Dispatch is synchronous
// from the emitting goroutine: a handler may read from the module that
// emitted, but it must not synchronously call back into a mutating
// operation of another module, which may still hold its lock across a
// nested emit (RecordTransaction emits the budget update inside the
// wallet's critical section).
type Handler func(*Event)

// Bus is a simple synchronous publish/subscribe bus. Subscriptions are
// per event type; AllEvents subscribes to everything.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	all      map[int]Handler
	nextID   int
	log      zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		all:      make(map[int]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a single event type
func (b *Bus) Subscribe(t EventType, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], fn)
}

// SubscribeAll registers a handler for every event type and returns a
// function that removes the subscription.
func (b *Bus) SubscribeAll(fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.all[id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.all, id)
	}
}

// Emit publishes an event to all matching handlers. Dispatch is synchronous
// in emission order so consumers observe events in the order they happened.
func (b *Bus) Emit(module string, data EventData) {
	if b == nil {
		return
	}

	event := &Event{
		Type:      data.EventType(),
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	typed := append([]Handler(nil), b.handlers[event.Type]...)
	all := make([]Handler, 0, len(b.all))
	for _, fn := range b.all {
		all = append(all, fn)
	}
	b.mu.RUnlock()

	for _, fn := range typed {
		fn(event)
	}
	for _, fn := range all {
		fn(event)
	}

	b.log.Debug().
		Str("type", string(event.Type)).
		Str("module", module).
		Msg("Event emitted")
}
