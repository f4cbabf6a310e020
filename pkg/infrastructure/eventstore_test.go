package infrastructure

import (
	"context"
	"testing"

	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testPayload is a minimal domain.Event used to exercise event stores
// without depending on a specific aggregate's event types.
type testPayload struct {
	Value string `json:"value"`
}

func (testPayload) EventType() string { return "TestPayload" }

func buildEnvelopes(aggregateID string, n int) []domain.EventEnvelope {
	factory := domain.NewEventFactory()
	envelopes := make([]domain.EventEnvelope, n)
	for i := 0; i < n; i++ {
		envelopes[i] = factory.NewEnvelope(testPayload{Value: "v"}, aggregateID, "test", int64(i+1))
	}
	return envelopes
}

func eventStoreBackends(t *testing.T) map[string]domain.EventStoreClient {
	t.Helper()

	db, err := NewDatabase(DatabaseConfig{Driver: "sqlite", DSN: ":memory:"})
	require.NoError(t, err)
	sqlStore, err := NewSQLEventStore(db, nil)
	require.NoError(t, err)

	return map[string]domain.EventStoreClient{
		"memory": NewMemoryEventStore(),
		"sql":    sqlStore,
	}
}

func TestEventStoreClient_AppendAndReadBack(t *testing.T) {
	for name, store := range eventStoreBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stream := "test-" + name

			committed, err := store.AppendEvents(ctx, stream, 0, buildEnvelopes(stream, 2))
			require.NoError(t, err)
			require.Len(t, committed, 2)
			assert.EqualValues(t, 1, committed[0].Metadata.AggregateNonce)
			assert.EqualValues(t, 2, committed[1].Metadata.AggregateNonce)
			require.NotNil(t, committed[0].Metadata.GlobalNonce)
			require.NotNil(t, committed[1].Metadata.GlobalNonce)
			assert.Less(t, *committed[0].Metadata.GlobalNonce, *committed[1].Metadata.GlobalNonce)

			exists, err := store.StreamExists(ctx, stream)
			require.NoError(t, err)
			assert.True(t, exists)

			all, err := store.ReadEvents(ctx, stream)
			require.NoError(t, err)
			assert.Len(t, all, 2)

			fromOne, err := store.ReadEventsFrom(ctx, stream, 1)
			require.NoError(t, err)
			require.Len(t, fromOne, 1)
			assert.EqualValues(t, 2, fromOne[0].Metadata.AggregateNonce)
		})
	}
}

func TestEventStoreClient_ConcurrencyConflict(t *testing.T) {
	for name, store := range eventStoreBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stream := "conflict-" + name

			_, err := store.AppendEvents(ctx, stream, 0, buildEnvelopes(stream, 1))
			require.NoError(t, err)

			_, err = store.AppendEvents(ctx, stream, 0, buildEnvelopes(stream, 1))
			require.Error(t, err)
			var conflict domain.ConcurrencyConflictError
			assert.ErrorAs(t, err, &conflict)
		})
	}
}

func TestEventStoreClient_ExpectedNonceSkipCheck(t *testing.T) {
	for name, store := range eventStoreBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stream := "skip-check-" + name

			_, err := store.AppendEvents(ctx, stream, 0, buildEnvelopes(stream, 1))
			require.NoError(t, err)

			committed, err := store.AppendEvents(ctx, stream, -1, buildEnvelopes(stream, 1))
			require.NoError(t, err)
			require.Len(t, committed, 1)
			assert.EqualValues(t, 2, committed[0].Metadata.AggregateNonce)
		})
	}
}

func TestEventStoreClient_ReadEvents_NonexistentStreamReturnsEmpty(t *testing.T) {
	for name, store := range eventStoreBackends(t) {
		t.Run(name, func(t *testing.T) {
			events, err := store.ReadEvents(context.Background(), "missing-"+name)
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestEventStoreClient_ReadEventsFrom_NonexistentStreamFails(t *testing.T) {
	for name, store := range eventStoreBackends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.ReadEventsFrom(context.Background(), "missing-"+name, 0)
			var storeErr domain.EventStoreError
			assert.ErrorAs(t, err, &storeErr)
		})
	}
}

func TestEventStoreClient_ReadAllEventsFromIsGlobalOrder(t *testing.T) {
	for name, store := range eventStoreBackends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := store.AppendEvents(ctx, "stream-a-"+name, 0, buildEnvelopes("stream-a-"+name, 1))
			require.NoError(t, err)
			_, err = store.AppendEvents(ctx, "stream-b-"+name, 0, buildEnvelopes("stream-b-"+name, 1))
			require.NoError(t, err)

			all, err := store.ReadAllEventsFrom(ctx, 0)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, len(all), 2)
			for i := 1; i < len(all); i++ {
				assert.Less(t, *all[i-1].Metadata.GlobalNonce, *all[i].Metadata.GlobalNonce)
			}

			fromLatest, err := store.ReadAllEventsFrom(ctx, *all[len(all)-1].Metadata.GlobalNonce)
			require.NoError(t, err)
			assert.Empty(t, fromLatest)
		})
	}
}
