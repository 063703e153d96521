// Package events is an in-process publish/subscribe bus for domain events
// raised by route handlers, such as "user.created".
package events

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event is a published domain event.
type Event struct {
	// Name is "<topic>.<action>", e.g. "user.deleted".
	Name string
	// Route is the route that raised the event, e.g. "DELETE /users/:id".
	Route string
	Data  map[string]any
	At    time.Time
}

// Topic returns the part of Name before the first dot.
func (e Event) Topic() string {
	topic, _, _ := strings.Cut(e.Name, ".")
	return topic
}

// Handler processes an event.
type Handler func(ctx context.Context, event Event) error

// Publisher is the side of the bus handlers see.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Bus delivers events to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
	now      func() time.Time
}

// NewBus creates an empty bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger.With().Str("component", "events").Logger(),
		now:      time.Now,
	}
}

// Subscribe registers handler for pattern:
//   - "user.created" matches that event only
//   - "user.*" matches every event of the user topic
//   - "*" matches everything
func (b *Bus) Subscribe(pattern string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = append(b.handlers[pattern], handler)
}

// Publish delivers event to every matching handler. Handler errors are
// logged and do not stop delivery. A zero At is set to the current time.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.At.IsZero() {
		event.At = b.now().UTC()
	}
	matched := b.match(event)

	b.logger.Debug().
		Str("event", event.Name).
		Str("route", event.Route).
		Int("subscribers", len(matched)).
		Msg("event published")

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// HasSubscribers reports whether publishing name would reach any handler.
func (b *Bus) HasSubscribers(name string) bool {
	return len(b.match(Event{Name: name})) > 0
}

// match copies the matching handlers so none run under the lock.
func (b *Bus) match(event Event) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []Handler
	matched = append(matched, b.handlers[event.Name]...)
	if event.Name != "" && event.Topic() != event.Name {
		matched = append(matched, b.handlers[event.Topic()+".*"]...)
	}
	if event.Name != "*" {
		matched = append(matched, b.handlers["*"]...)
	}
	return matched
}
