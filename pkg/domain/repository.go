package domain

import (
	"context"
	"strings"
)

// Aggregate is the subset of AggregateRoot a Repository needs plus the
// ability to be rehydrated through a concrete receiver, which Go's lack of
// generic methods means every concrete aggregate must expose itself (see
// BaseAggregate.Rehydrate).
type Aggregate interface {
	AggregateRoot
}

// Repository persists and reconstructs aggregates of a single type over an
// EventStoreClient. Stream names are derived by splitting the aggregate ID
// on its first hyphen (spec.md §4.6): "account-abc123" lives in the stream
// "account-abc123" when the caller already prefixes IDs by type, or gets the
// aggregate type prepended otherwise.
type Repository[T Aggregate] struct {
	store         EventStoreClient
	aggregateType string
	new           func() T
	rehydrate     func(self T, events []EventEnvelope) error
	dispatch      func(ctx context.Context, envelopes []EventEnvelope) error
}

// NewRepository builds a Repository for aggregate type aggregateType. newFn
// constructs a zero-value aggregate (uninitialized, ready for Rehydrate);
// rehydrateFn calls that aggregate's own Rehydrate method (it cannot be
// expressed generically because Go disallows generic methods).
func NewRepository[T Aggregate](store EventStoreClient, aggregateType string, newFn func() T, rehydrateFn func(self T, events []EventEnvelope) error) *Repository[T] {
	return &Repository[T]{store: store, aggregateType: aggregateType, new: newFn, rehydrate: rehydrateFn}
}

// WithDispatch wires a Persist-then-Dispatch hook: after Save durably
// appends events to the store, it calls fn with the store-assigned
// envelopes (global_nonce included). A dispatch failure is reported but
// does not undo the append — events are already committed. Typically fn is
// a WatermillEventDispatcher.Dispatch, fanning the envelopes out to
// projections asynchronously.
func (r *Repository[T]) WithDispatch(fn func(ctx context.Context, envelopes []EventEnvelope) error) *Repository[T] {
	r.dispatch = fn
	return r
}

// StreamName derives the stream name for an aggregate ID the way spec.md
// §4.6 specifies: split on the first hyphen only, so IDs that themselves
// contain hyphens after the type prefix stay intact.
func StreamName(aggregateType, aggregateID string) string {
	if idx := strings.Index(aggregateID, "-"); idx >= 0 && aggregateID[:idx] == aggregateType {
		return aggregateID
	}
	return aggregateType + "-" + aggregateID
}

// Load reconstructs an aggregate from its full event history. Absence is
// not an error (spec.md §4.6): if the stream is empty, Load returns the
// zero value (nil, since T is always a pointer aggregate type) with a nil
// error, mirroring the Python ground truth's load returning None.
func (r *Repository[T]) Load(ctx context.Context, aggregateID string) (T, error) {
	var zero T
	stream := StreamName(r.aggregateType, aggregateID)
	events, err := r.store.ReadEvents(ctx, stream)
	if err != nil {
		return zero, NewEventStoreError("read events for "+stream, err)
	}
	if len(events) == 0 {
		return zero, nil
	}
	agg := r.new()
	if err := r.rehydrate(agg, events); err != nil {
		return zero, err
	}
	return agg, nil
}

// Exists reports whether an aggregate with the given ID has ever been saved.
func (r *Repository[T]) Exists(ctx context.Context, aggregateID string) (bool, error) {
	stream := StreamName(r.aggregateType, aggregateID)
	ok, err := r.store.StreamExists(ctx, stream)
	if err != nil {
		return false, NewEventStoreError("check existence of "+stream, err)
	}
	return ok, nil
}

// Save persists an aggregate's uncommitted events, enforcing optimistic
// concurrency against the version it was loaded at, and marks them
// committed on success.
func (r *Repository[T]) Save(ctx context.Context, aggregate T) error {
	uncommitted := aggregate.UncommittedEvents()
	if len(uncommitted) == 0 {
		return nil
	}
	stream := StreamName(r.aggregateType, aggregate.AggregateID())
	expected := aggregate.Version() - int64(len(uncommitted))
	if expected < 0 {
		expected = 0
	}
	committed, err := r.store.AppendEvents(ctx, stream, expected, uncommitted)
	if err != nil {
		return err
	}
	aggregate.MarkCommitted()
	if r.dispatch != nil {
		if err := r.dispatch(ctx, committed); err != nil {
			return NewEventStoreError("dispatch committed events for "+stream, err)
		}
	}
	return nil
}

// RepositoryFactory mints repositories for distinct aggregate types over a
// shared EventStoreClient, so a single backend connection can back many
// aggregate families.
type RepositoryFactory struct {
	store EventStoreClient
}

func NewRepositoryFactory(store EventStoreClient) *RepositoryFactory {
	return &RepositoryFactory{store: store}
}

func (f *RepositoryFactory) Store() EventStoreClient { return f.store }
