package domain

import "fmt"

// applyFunc mutates a concrete aggregate (passed as self) in response to one
// of its own event types. Registered per aggregate type, never globally.
type applyFunc func(self any, event Event) error

// HandlerRegistry is the C9 handler-registration table: a cache of
// eventType -> applyFunc scoped to a single aggregate type. Each concrete
// aggregate builds exactly one registry, typically via a package-level
// sync.Once-guarded constructor, rather than sharing one mutable map across
// aggregate types (see DESIGN.md).
type HandlerRegistry struct {
	aggregateType string
	handlers      map[string]applyFunc
}

func NewHandlerRegistry(aggregateType string) *HandlerRegistry {
	return &HandlerRegistry{aggregateType: aggregateType, handlers: make(map[string]applyFunc)}
}

// RegisterApply registers how an aggregate of this type mutates itself when
// an event of the given wire event type is applied, whether freshly raised
// or replayed during rehydration. T fixes the concrete aggregate type at
// registration time so handler bodies get a typed receiver, not `any`.
func RegisterApply[T any](r *HandlerRegistry, eventType string, handler func(self *T, event Event)) {
	r.handlers[eventType] = func(self any, event Event) error {
		typed, ok := self.(*T)
		if !ok {
			return fmt.Errorf("handler registry for %s: self has wrong type %T", r.aggregateType, self)
		}
		handler(typed, event)
		return nil
	}
}

// apply dispatches to the registered handler for event's type. Unknown
// types are tolerated rather than raised, for forward compatibility during
// rehydration (spec.md §9), but the caller's logger records a warning so the
// skip is observable (spec.md §4.3, scenario S5) instead of silent.
func (r *HandlerRegistry) apply(self any, event Event, logger Logger) error {
	handler, ok := r.handlers[event.EventType()]
	if !ok {
		if logger == nil {
			logger = noopLogger{}
		}
		logger.Warn("skipping unknown event type during apply",
			"aggregateType", r.aggregateType, "eventType", event.EventType())
		return nil
	}
	return handler(self, event)
}

// KnownEventTypes reports every event type this registry has a handler for,
// primarily useful for tests and diagnostics.
func (r *HandlerRegistry) KnownEventTypes() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}
