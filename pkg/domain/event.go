// Package domain provides the core event-sourcing abstractions: events,
// envelopes, aggregates, the event-store client contract, repositories, and
// the projection runtime. Concrete backend adapters live in
// pkg/infrastructure; this package depends on the standard library, ksuid
// for identity generation, and go.uber.org/fx for its DomainModule.
package domain

import (
	"time"

	"github.com/segmentio/ksuid"
)

// ContextKey names values a caller may stash on a context.Context for the
// factory's functional options to pick up (actor/tenant propagation).
type ContextKey string

const (
	ContextKeyTenantID      ContextKey = "tenant_id"
	ContextKeyActorID       ContextKey = "actor_id"
	ContextKeyCorrelationID ContextKey = "correlation_id"
)

// Event is the payload half of an EventEnvelope. Concrete event types are
// plain, JSON-tagged structs; EventType is a stable wire discriminator, not
// the Go type name, so handler registration survives refactors.
type Event interface {
	EventType() string
}

// EventMetadata carries everything about an event that isn't the payload
// itself: identity, ordering, causal context, and free-form extension data.
// A zero-value EventMetadata is never valid on its own; it is always built
// by EventFactory.NewEnvelope.
type EventMetadata struct {
	EventID           string
	Timestamp         time.Time
	RecordedTimestamp time.Time
	AggregateID       string
	AggregateType     string
	AggregateNonce    int64
	GlobalNonce       *uint64
	ContentType       string
	TenantID          string
	CorrelationID     string
	CausationID       string
	ActorID           string
	Headers           map[string]string
	CustomMetadata    map[string]any
	PayloadHash       string
}

// EventEnvelope immutably pairs a payload with its metadata. Consumers never
// mutate an envelope in place; AppendEvents always returns freshly built ones.
type EventEnvelope struct {
	Event    Event
	Metadata EventMetadata
}

// EnvelopeOption customizes the optional context fields of an EventMetadata
// at construction time.
type EnvelopeOption func(*EventMetadata)

func WithTenant(tenantID string) EnvelopeOption {
	return func(m *EventMetadata) { m.TenantID = tenantID }
}

func WithCorrelation(correlationID string) EnvelopeOption {
	return func(m *EventMetadata) { m.CorrelationID = correlationID }
}

func WithCausation(causationID string) EnvelopeOption {
	return func(m *EventMetadata) { m.CausationID = causationID }
}

func WithActor(actorID string) EnvelopeOption {
	return func(m *EventMetadata) { m.ActorID = actorID }
}

func WithHeaders(headers map[string]string) EnvelopeOption {
	return func(m *EventMetadata) {
		if m.Headers == nil {
			m.Headers = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			m.Headers[k] = v
		}
	}
}

func WithCustomMetadata(key string, value any) EnvelopeOption {
	return func(m *EventMetadata) {
		if m.CustomMetadata == nil {
			m.CustomMetadata = make(map[string]any)
		}
		m.CustomMetadata[key] = value
	}
}

// EventFactory is the one place envelopes are constructed, so that EventID
// generation, timestamping, and default content type stay consistent across
// every aggregate and backend adapter.
type EventFactory struct {
	contentType string
}

func NewEventFactory() *EventFactory {
	return &EventFactory{contentType: "application/json"}
}

// NewEnvelope builds an EventEnvelope for a raised event. aggregateNonce is
// the 1-based position of this event within its own stream; GlobalNonce is
// left nil until a store assigns it on append.
func (f *EventFactory) NewEnvelope(event Event, aggregateID, aggregateType string, aggregateNonce int64, opts ...EnvelopeOption) EventEnvelope {
	now := time.Now().UTC()
	meta := EventMetadata{
		EventID:           ksuid.New().String(),
		Timestamp:         now,
		RecordedTimestamp: now,
		AggregateID:       aggregateID,
		AggregateType:     aggregateType,
		AggregateNonce:    aggregateNonce,
		GlobalNonce:       nil,
		ContentType:       f.contentType,
	}
	for _, opt := range opts {
		opt(&meta)
	}
	return EventEnvelope{Event: event, Metadata: meta}
}

// GenericEvent is a map-backed fallback used when permissive decoding is
// requested for a wire event type with no registered concrete Go type, per
// Open Question 3 (see DESIGN.md).
type GenericEvent struct {
	Type string
	Data map[string]any
}

func (e GenericEvent) EventType() string { return e.Type }

func (e GenericEvent) GetString(key string) (string, bool) {
	v, ok := e.Data[key].(string)
	return v, ok
}

func (e GenericEvent) GetInt64(key string) (int64, bool) {
	switch v := e.Data[key].(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

func (e GenericEvent) GetBool(key string) (bool, bool) {
	v, ok := e.Data[key].(bool)
	return v, ok
}
