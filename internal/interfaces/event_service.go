package interfaces

import (
	"context"

	"github.com/ternarybob/quanta/internal/models"
)

// EventHandler is a function that handles events. A returned error is
// logged and isolated; it never interrupts delivery to other handlers.
type EventHandler func(ctx context.Context, event models.Event) error

// Subscription is the handle returned by Subscribe and consumed by
// Unsubscribe. Treat it as opaque.
type Subscription struct {
	Kind models.EventKind
	ID   uint64
}

// EventService is the in-process pub/sub bus. Delivery is synchronous and
// in registration order per kind. There is no buffering or replay: a
// handler registered after an event was published never sees that event.
type EventService interface {
	// Subscribe registers a handler for an event kind. Identical handlers
	// registered twice are delivered twice.
	Subscribe(kind models.EventKind, handler EventHandler) (Subscription, error)

	// Unsubscribe removes exactly one registration. Calling it again with
	// the same handle is a no-op.
	Unsubscribe(sub Subscription)

	// Publish delivers an event to all current subscribers of its kind.
	Publish(ctx context.Context, event models.Event)

	// Close drops all subscriptions.
	Close() error
}
