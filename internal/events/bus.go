// Package events provides the in-process event bus carrying budget alerts,
// goal completions and sync status transitions to subscribers such as the
// CLI and notification surfaces.
package events

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/bolsoapp/bolso/internal/domain"
)

// Handler consumes one event. Handlers must not block: dispatch happens on
// the publisher's goroutine.
type Handler func(event domain.Event)

// Bus is a topic-based publish/subscribe fanout keyed by event name. The
// empty topic subscribes to everything.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]Handler
	logger zerolog.Logger
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		subs:   make(map[string]map[int]Handler),
		logger: logger,
	}
}

// Subscription identifies one subscriber for later removal.
type Subscription struct {
	topic string
	id    int
}

// Subscribe registers a handler for one event name, or for every event when
// topic is empty.
func (b *Bus) Subscribe(topic string, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	b.subs[topic][b.nextID] = handler

	return Subscription{topic: topic, id: b.nextID}
}

// Unsubscribe removes a subscription; unknown subscriptions are ignored.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handlers, ok := b.subs[sub.topic]; ok {
		delete(handlers, sub.id)
		if len(handlers) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

// Publish delivers the event to topic subscribers and wildcard subscribers.
// A panicking handler is logged and skipped so one subscriber cannot take
// down the write path.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, 4)
	for _, h := range b.subs[event.EventName()] {
		handlers = append(handlers, h)
	}
	for _, h := range b.subs[""] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.EventName()).
		Int("subscribers", len(handlers)).
		Msg("publishing event")

	for _, h := range handlers {
		b.deliver(event, h)
	}
}

func (b *Bus) deliver(event domain.Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("event", event.EventName()).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	h(event)
}
