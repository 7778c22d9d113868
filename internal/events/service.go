// Package events implements the in-process pub/sub bus. Handlers run
// synchronously in registration order so that subscribers observe each
// kind's events in emission order; a failing or panicking handler is
// logged and skipped, never interrupting delivery to the rest.
package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/quanta/internal/interfaces"
	"github.com/ternarybob/quanta/internal/models"
)

type registration struct {
	id      uint64
	handler interfaces.EventHandler
}

// Service implements EventService with registration-ordered delivery
type Service struct {
	subscribers map[models.EventKind][]registration
	nextID      uint64
	mu          sync.RWMutex
	logger      arbor.ILogger
}

// NewService creates a new event service
func NewService(logger arbor.ILogger) interfaces.EventService {
	return &Service{
		subscribers: make(map[models.EventKind][]registration),
		logger:      logger,
	}
}

// Subscribe registers a handler for an event kind
func (s *Service) Subscribe(kind models.EventKind, handler interfaces.EventHandler) (interfaces.Subscription, error) {
	if handler == nil {
		return interfaces.Subscription{}, fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.subscribers[kind] = append(s.subscribers[kind], registration{id: s.nextID, handler: handler})

	s.logger.Debug().
		Str("event_kind", string(kind)).
		Int("subscriber_count", len(s.subscribers[kind])).
		Msg("Event handler subscribed")

	return interfaces.Subscription{Kind: kind, ID: s.nextID}, nil
}

// Unsubscribe removes the registration for a handle. A second call with
// the same handle is a no-op.
func (s *Service) Unsubscribe(sub interfaces.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	regs := s.subscribers[sub.Kind]
	for i, r := range regs {
		if r.id == sub.ID {
			s.subscribers[sub.Kind] = append(regs[:i], regs[i+1:]...)
			s.logger.Debug().
				Str("event_kind", string(sub.Kind)).
				Msg("Event handler unsubscribed")
			return
		}
	}
}

// Publish delivers an event to all current subscribers of its kind, in
// registration order. Returns after every handler has run.
func (s *Service) Publish(ctx context.Context, event models.Event) {
	s.mu.RLock()
	regs := make([]registration, len(s.subscribers[event.Kind]))
	copy(regs, s.subscribers[event.Kind])
	s.mu.RUnlock()

	if len(regs) == 0 {
		return
	}

	for _, reg := range regs {
		// An unsubscribe racing with this publish must win: re-check the
		// registration before invoking so a removed handler sees nothing
		// further, even for events already in flight.
		if !s.isRegistered(event.Kind, reg.id) {
			continue
		}
		s.invoke(ctx, event, reg)
	}
}

func (s *Service) isRegistered(kind models.EventKind, id uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.subscribers[kind] {
		if r.id == id {
			return true
		}
	}
	return false
}

func (s *Service) invoke(ctx context.Context, event models.Event, reg registration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("event_kind", string(event.Kind)).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Event handler panicked")
		}
	}()

	if err := reg.handler(ctx, event); err != nil {
		s.logger.Error().
			Err(err).
			Str("event_kind", string(event.Kind)).
			Msg("Event handler failed")
	}
}

// Close drops all subscriptions
func (s *Service) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subscribers = make(map[models.EventKind][]registration)
	s.logger.Info().Msg("Event service closed")

	return nil
}
