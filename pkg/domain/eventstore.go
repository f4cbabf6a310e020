package domain

import "context"

// EventStoreClient is the backend-agnostic contract every storage adapter
// implements (C4). spec.md places the wire protocol and persistence schema
// of any particular backend out of scope; this interface is what the rest of
// the SDK programs against. Concrete adapters live in pkg/infrastructure:
// an in-memory reference store, a GORM-backed SQL store, a DynamoDB store,
// and a thin gRPC client seam.
type EventStoreClient interface {
	// Connect establishes whatever connection/session the backend needs.
	// Adapters with no connection state (the in-memory store) treat this as
	// a no-op.
	Connect(ctx context.Context) error

	// Disconnect releases backend resources. Safe to call on an already
	// disconnected client.
	Disconnect(ctx context.Context) error

	// AppendEvents atomically appends envelopes to a single stream,
	// enforcing expectedAggregateNonce as an optimistic-concurrency check
	// (expectedAggregateNonce == 0 means "stream must not yet exist"; -1
	// means "skip the check"). It returns freshly built envelopes with
	// GlobalNonce (and AggregateNonce, where the caller didn't already
	// supply it) filled in by the store — it never mutates the input.
	AppendEvents(ctx context.Context, streamName string, expectedAggregateNonce int64, events []EventEnvelope) ([]EventEnvelope, error)

	// ReadEvents returns every event in a stream, in aggregate_nonce order.
	ReadEvents(ctx context.Context, streamName string) ([]EventEnvelope, error)

	// ReadEventsFrom returns events in a stream with aggregate_nonce strictly
	// greater than fromNonce, in order. Unlike ReadEvents, fromNonce is always
	// a present from_version (spec.md §4.4): if the stream does not exist,
	// ReadEventsFrom fails with an EventStoreError("stream not found")
	// instead of returning an empty slice.
	ReadEventsFrom(ctx context.Context, streamName string, fromNonce int64) ([]EventEnvelope, error)

	// StreamExists reports whether any events have ever been appended to the
	// named stream.
	StreamExists(ctx context.Context, streamName string) (bool, error)

	// ReadAllEventsFrom returns events across every stream with global_nonce
	// strictly greater than fromGlobalNonce, in global order, for projection
	// catch-up and rebuild scenarios.
	ReadAllEventsFrom(ctx context.Context, fromGlobalNonce uint64) ([]EventEnvelope, error)
}
