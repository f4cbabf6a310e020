package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"github.com/riverrun/chronicle/pkg/domain"
)

// UnitOfWork batches envelopes committed to possibly several streams within
// one logical operation (e.g. a CLI replay/import run spanning several
// aggregates) and dispatches them together, Persist-then-Dispatch: every
// RegisterCommit call appends to the store immediately since EventStoreClient
// only guarantees atomicity within a single stream, but dispatch is deferred
// to a single batched call so projections see the whole operation's events
// in one pass instead of interleaved with unrelated concurrent commits.
type UnitOfWork struct {
	store      domain.EventStoreClient
	dispatcher *WatermillEventDispatcher

	mu        sync.Mutex
	committed []domain.EventEnvelope
	done      bool
}

func NewUnitOfWork(store domain.EventStoreClient, dispatcher *WatermillEventDispatcher) *UnitOfWork {
	return &UnitOfWork{store: store, dispatcher: dispatcher}
}

// RegisterCommit appends events to streamName and buffers the store-assigned
// envelopes for the eventual Dispatch call.
func (uow *UnitOfWork) RegisterCommit(ctx context.Context, streamName string, expectedAggregateNonce int64, events []domain.EventEnvelope) ([]domain.EventEnvelope, error) {
	uow.mu.Lock()
	defer uow.mu.Unlock()

	if uow.done {
		return nil, fmt.Errorf("unit of work already dispatched")
	}

	committed, err := uow.store.AppendEvents(ctx, streamName, expectedAggregateNonce, events)
	if err != nil {
		return nil, err
	}
	uow.committed = append(uow.committed, committed...)
	return committed, nil
}

// Dispatch publishes every envelope registered so far in one batch. Safe to
// call exactly once; a second call returns an error rather than silently
// re-publishing.
func (uow *UnitOfWork) Dispatch(ctx context.Context) error {
	uow.mu.Lock()
	defer uow.mu.Unlock()

	if uow.done {
		return fmt.Errorf("unit of work already dispatched")
	}
	uow.done = true

	if len(uow.committed) == 0 {
		return nil
	}
	return uow.dispatcher.Dispatch(ctx, uow.committed)
}

// EventCount returns the number of envelopes registered so far, for test
// assertions and CLI progress output.
func (uow *UnitOfWork) EventCount() int {
	uow.mu.Lock()
	defer uow.mu.Unlock()
	return len(uow.committed)
}
