package domain

import "fmt"

// AggregateRoot is the contract every aggregate implements so a generic
// Repository can save and load it without knowing its concrete type.
type AggregateRoot interface {
	// AggregateID returns the identity assigned at Initialize time, or the
	// empty string if the aggregate has not yet been initialized.
	AggregateID() string

	// AggregateType is the stable discriminator used for stream naming and
	// handler registry lookup (see spec.md §4.6 stream-name derivation).
	AggregateType() string

	// Version is the aggregate's current aggregate_nonce: the number of
	// events applied to it so far, committed or not.
	Version() int64

	// UncommittedEvents returns events raised since the last MarkCommitted,
	// in the order they were raised.
	UncommittedEvents() []EventEnvelope

	// MarkCommitted clears the uncommitted events after a Repository has
	// successfully persisted them.
	MarkCommitted()

	// Rehydrate rebuilds state from a historical event stream, in order,
	// without raising new events.
	Rehydrate(events []EventEnvelope) error
}

// identity is a tagged variant: nil means "uninitialized", a non-nil pointer
// to "" means "initialized with an empty-string ID" (unusual, but distinct
// from uninitialized — see SPEC_FULL.md Design Notes).
type identity struct {
	id *string
}

func (i identity) get() string {
	if i.id == nil {
		return ""
	}
	return *i.id
}

func (i *identity) set(id string) {
	i.id = &id
}

func (i identity) initialized() bool {
	return i.id != nil
}

// BaseAggregate is embedded by concrete aggregates to provide the common
// event-sourcing machinery: identity, version tracking, uncommitted-event
// buffering, and dispatch to a HandlerRegistry's apply functions. Concrete
// aggregates supply their own factory, command handlers, and a
// HandlerRegistry filled once via RegisterApply (see handlerregistry.go).
type BaseAggregate struct {
	identity      identity
	aggregateType string
	version       int64
	uncommitted   []EventEnvelope
	registry      *HandlerRegistry
	factory       *EventFactory
	logger        Logger
}

// InitBase sets up the embeddable state. Concrete aggregate constructors
// call this once before raising their first event. The aggregate logs
// nowhere until SetLogger is called; unknown-event warnings are simply
// discarded until then.
func (b *BaseAggregate) InitBase(aggregateType string, registry *HandlerRegistry) {
	b.aggregateType = aggregateType
	b.registry = registry
	b.factory = NewEventFactory()
	b.logger = noopLogger{}
}

// SetLogger attaches a Logger this aggregate instance uses for diagnostics
// such as the unknown-event-type warning in apply (spec.md §4.3). The
// domain layer has no default wiring for this (see fx.go); application code
// that wants the warning observed must call it explicitly after construction.
func (b *BaseAggregate) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	b.logger = logger
}

func (b *BaseAggregate) AggregateID() string { return b.identity.get() }

func (b *BaseAggregate) AggregateType() string { return b.aggregateType }

func (b *BaseAggregate) Version() int64 { return b.version }

func (b *BaseAggregate) UncommittedEvents() []EventEnvelope {
	out := make([]EventEnvelope, len(b.uncommitted))
	copy(out, b.uncommitted)
	return out
}

func (b *BaseAggregate) MarkCommitted() {
	b.uncommitted = b.uncommitted[:0]
}

// RaiseEvent applies state-changing logic (via the registry's apply
// function), assigns the next aggregate_nonce, wraps the event in an
// envelope, and buffers it as uncommitted. self must be the concrete
// aggregate so its own apply methods receive the right receiver type.
func (b *BaseAggregate) RaiseEvent(self any, event Event, opts ...EnvelopeOption) error {
	if !b.identity.initialized() {
		return NewInvalidAggregateStateError(b.aggregateType, "cannot raise an event before the aggregate is initialized")
	}
	if err := b.registry.apply(self, event, b.logger); err != nil {
		return err
	}
	b.version++
	env := b.factory.NewEnvelope(event, b.identity.get(), b.aggregateType, b.version, opts...)
	b.uncommitted = append(b.uncommitted, env)
	return nil
}

// Initialize assigns identity to a brand-new aggregate, before any
// RaiseEvent call and never for a rehydrated one. Calling it twice with the
// same id is idempotent (spec.md §4.3, §8); calling it with a different id
// once identity is already set raises.
func (b *BaseAggregate) Initialize(id string) error {
	if b.identity.initialized() {
		if b.identity.get() == id {
			return nil
		}
		return NewInvalidAggregateStateError(b.aggregateType, "already initialized")
	}
	b.identity.set(id)
	return nil
}

// Rehydrate replays historical events through the registry's apply
// functions without buffering them as uncommitted, and advances identity
// and version as a side effect of the first event's AggregateID.
func (b *BaseAggregate) Rehydrate(self any, events []EventEnvelope) error {
	for i, env := range events {
		if env.Metadata.AggregateNonce != int64(i+1) {
			return fmt.Errorf("rehydrate: gap in aggregate_nonce at position %d: got %d", i, env.Metadata.AggregateNonce)
		}
		if !b.identity.initialized() {
			b.identity.set(env.Metadata.AggregateID)
		}
		if err := b.registry.apply(self, env.Event, b.logger); err != nil {
			return err
		}
		b.version = env.Metadata.AggregateNonce
	}
	return nil
}
