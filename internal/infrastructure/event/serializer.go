package event

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/erp/pos/internal/domain/shared"
)

// eventFactory returns a zero value of a registered event, ready to unmarshal into
type eventFactory func() shared.DomainEvent

// EventSerializer turns sale events into outbox payloads and back.
// Only registered event types can be read back.
type EventSerializer struct {
	mu        sync.RWMutex
	factories map[string]eventFactory
}

// NewEventSerializer creates an empty serializer
func NewEventSerializer() *EventSerializer {
	return &EventSerializer{factories: make(map[string]eventFactory)}
}

// RegisterEvent registers the concrete event E under eventType
func RegisterEvent[E any, P interface {
	*E
	shared.DomainEvent
}](s *EventSerializer, eventType string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.factories[eventType] = func() shared.DomainEvent { return P(new(E)) }
}

// Serialize encodes an event as JSON
func (s *EventSerializer) Serialize(event shared.DomainEvent) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("serialize %s: %w", event.EventType(), err)
	}
	return data, nil
}

// Deserialize decodes a payload stored for eventType
func (s *EventSerializer) Deserialize(eventType string, data []byte) (shared.DomainEvent, error) {
	s.mu.RLock()
	factory, ok := s.factories[eventType]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}

	event := factory()
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", eventType, err)
	}
	if event.EventType() != "" && event.EventType() != eventType {
		return nil, fmt.Errorf("payload carries event type %s, expected %s", event.EventType(), eventType)
	}
	return event, nil
}

// IsRegistered reports whether eventType can be deserialized
func (s *EventSerializer) IsRegistered(eventType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.factories[eventType]
	return ok
}

// RegisteredTypes returns the registered event types in sorted order
func (s *EventSerializer) RegisteredTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.factories))
	for t := range s.factories {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
