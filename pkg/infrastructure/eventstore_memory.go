package infrastructure

import (
	"context"
	"sync"

	"github.com/riverrun/chronicle/pkg/domain"
)

// MemoryEventStore is an in-process, mutex-guarded domain.EventStoreClient.
// It backs the backend contract tests and the chronicle-demo CLI when
// database.driver is "memory"; nothing
// it stores survives process exit. global_nonce is assigned by a single
// monotonic counter shared across every stream, aggregate_nonce by a
// per-stream counter, matching the store-assigned semantics spec.md
// describes for both.
type MemoryEventStore struct {
	mu          sync.Mutex
	streams     map[string][]domain.EventEnvelope
	globalOrder []domain.EventEnvelope
	nextGlobal  uint64
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		streams:    make(map[string][]domain.EventEnvelope),
		nextGlobal: 1,
	}
}

func (s *MemoryEventStore) Connect(ctx context.Context) error    { return nil }
func (s *MemoryEventStore) Disconnect(ctx context.Context) error { return nil }

// AppendEvents enforces optimistic concurrency against expectedAggregateNonce
// before assigning each event its aggregate_nonce and global_nonce.
func (s *MemoryEventStore) AppendEvents(ctx context.Context, streamName string, expectedAggregateNonce int64, events []domain.EventEnvelope) ([]domain.EventEnvelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.streams[streamName]
	current := int64(len(existing))
	if expectedAggregateNonce != -1 && current != expectedAggregateNonce {
		return nil, domain.NewConcurrencyConflictError(streamName, expectedAggregateNonce, current)
	}

	committed := make([]domain.EventEnvelope, len(events))
	for i, env := range events {
		env.Metadata.AggregateNonce = current + int64(i) + 1
		globalNonce := s.nextGlobal
		s.nextGlobal++
		env.Metadata.GlobalNonce = &globalNonce
		committed[i] = env
	}

	s.streams[streamName] = append(existing, committed...)
	s.globalOrder = append(s.globalOrder, committed...)

	return committed, nil
}

// ReadEvents returns the full stream, or [] if it does not exist: absence
// of from_version means absence is not an error (spec.md §4.4).
func (s *MemoryEventStore) ReadEvents(ctx context.Context, streamName string) ([]domain.EventEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.streams[streamName]
	out := make([]domain.EventEnvelope, 0, len(all))
	out = append(out, all...)
	return out, nil
}

// ReadEventsFrom always has a present from_version, so a nonexistent stream
// fails rather than returning [] (spec.md §4.4).
func (s *MemoryEventStore) ReadEventsFrom(ctx context.Context, streamName string, fromNonce int64) ([]domain.EventEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, ok := s.streams[streamName]
	if !ok {
		return nil, domain.NewEventStoreError("stream not found: "+streamName, nil)
	}
	out := make([]domain.EventEnvelope, 0, len(all))
	for _, env := range all {
		if env.Metadata.AggregateNonce > fromNonce {
			out = append(out, env)
		}
	}
	return out, nil
}

func (s *MemoryEventStore) StreamExists(ctx context.Context, streamName string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.streams[streamName]
	return ok, nil
}

func (s *MemoryEventStore) ReadAllEventsFrom(ctx context.Context, fromGlobalNonce uint64) ([]domain.EventEnvelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.EventEnvelope, 0, len(s.globalOrder))
	for _, env := range s.globalOrder {
		if env.Metadata.GlobalNonce != nil && *env.Metadata.GlobalNonce > fromGlobalNonce {
			out = append(out, env)
		}
	}
	return out, nil
}
