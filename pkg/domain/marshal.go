package domain

import (
	"encoding/json"
	"fmt"
	"sync"
)

// TypeRegistry maps wire event-type discriminators to Go constructors so a
// stored payload can be decoded back into its concrete type. Each aggregate
// type owns its own registry instance (see HandlerRegistry in handlerregistry.go);
// this one is for wire (de)serialization rather than dispatch.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]func() Event
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{types: make(map[string]func() Event)}
}

// Register associates an event type discriminator with a constructor
// returning a zero-value instance of the concrete event, to be populated by
// json.Unmarshal.
func (r *TypeRegistry) Register(eventType string, construct func() Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[eventType] = construct
}

// Lookup returns the registered constructor for eventType, if any. Backend
// adapters that store payload and event_type as separate columns (rather
// than a single wire envelope blob) use this directly instead of going
// through UnmarshalEnvelope.
func (r *TypeRegistry) Lookup(eventType string) (func() Event, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	construct, ok := r.types[eventType]
	return construct, ok
}

// wireEnvelope is the canonical JSON shape for an EventEnvelope: the type
// discriminator, the raw payload, and the metadata nested under "metadata".
type wireEnvelope struct {
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Metadata  EventMetadata   `json:"metadata"`
}

// MarshalEnvelope serializes an envelope to its canonical wire form.
func MarshalEnvelope(env EventEnvelope) ([]byte, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return nil, NewSerializationError("marshal", env.Event.EventType(), err)
	}
	out, err := json.Marshal(wireEnvelope{
		EventType: env.Event.EventType(),
		Payload:   payload,
		Metadata:  env.Metadata,
	})
	if err != nil {
		return nil, NewSerializationError("marshal", env.Event.EventType(), err)
	}
	return out, nil
}

// UnmarshalEnvelope decodes a wire envelope using the registry's concrete
// type for its event_type. If permissive is true and no type is registered,
// the payload decodes into a GenericEvent instead of failing.
func UnmarshalEnvelope(data []byte, registry *TypeRegistry, permissive bool) (EventEnvelope, error) {
	var wire wireEnvelope
	if err := json.Unmarshal(data, &wire); err != nil {
		return EventEnvelope{}, NewSerializationError("unmarshal", "envelope", err)
	}

	registry.mu.RLock()
	construct, ok := registry.types[wire.EventType]
	registry.mu.RUnlock()

	if !ok {
		if !permissive {
			return EventEnvelope{}, NewSerializationError("unmarshal", wire.EventType,
				fmt.Errorf("no type registered for event type %q", wire.EventType))
		}
		var data map[string]any
		if err := json.Unmarshal(wire.Payload, &data); err != nil {
			return EventEnvelope{}, NewSerializationError("unmarshal", wire.EventType, err)
		}
		return EventEnvelope{Event: GenericEvent{Type: wire.EventType, Data: data}, Metadata: wire.Metadata}, nil
	}

	event := construct()
	if err := json.Unmarshal(wire.Payload, event); err != nil {
		return EventEnvelope{}, NewSerializationError("unmarshal", wire.EventType, err)
	}
	return EventEnvelope{Event: event, Metadata: wire.Metadata}, nil
}
