package infrastructure

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeEventLogClient struct {
	streams map[string][]WireEventRecord
	global  uint64
}

func newFakeEventLogClient() *fakeEventLogClient {
	return &fakeEventLogClient{streams: make(map[string][]WireEventRecord)}
}

func (f *fakeEventLogClient) AppendEvents(ctx context.Context, req *AppendEventsRequest) (*AppendEventsResponse, error) {
	existing := f.streams[req.StreamName]
	if req.ExpectedAggregateNonce != -1 && int64(len(existing)) != req.ExpectedAggregateNonce {
		return nil, status.Error(codes.FailedPrecondition, "aggregate nonce mismatch")
	}

	committed := make([]WireEventRecord, len(req.Events))
	for i, record := range req.Events {
		f.global++
		record.AggregateNonce = int64(len(existing)) + int64(i) + 1
		record.GlobalNonce = f.global
		record.HasGlobalNonce = true
		committed[i] = record
	}
	f.streams[req.StreamName] = append(existing, committed...)
	return &AppendEventsResponse{Committed: committed}, nil
}

func (f *fakeEventLogClient) ReadEventsFrom(ctx context.Context, req *ReadEventsRequest) (*ReadEventsResponse, error) {
	var out []WireEventRecord
	for _, record := range f.streams[req.StreamName] {
		if record.AggregateNonce > req.FromNonce {
			out = append(out, record)
		}
	}
	return &ReadEventsResponse{Events: out}, nil
}

func (f *fakeEventLogClient) ReadAllEventsFrom(ctx context.Context, req *ReadAllEventsRequest) (*ReadAllEventsResponse, error) {
	var out []WireEventRecord
	for _, records := range f.streams {
		for _, record := range records {
			if record.GlobalNonce > req.FromGlobalNonce {
				out = append(out, record)
			}
		}
	}
	return &ReadAllEventsResponse{Events: out}, nil
}

func (f *fakeEventLogClient) StreamExists(ctx context.Context, req *StreamExistsRequest) (*StreamExistsResponse, error) {
	return &StreamExistsResponse{Exists: len(f.streams[req.StreamName]) > 0}, nil
}

func newGRPCTestRegistry() *domain.TypeRegistry {
	registry := domain.NewTypeRegistry()
	registry.Register("TestPayload", func() domain.Event { return &testPayload{} })
	return registry
}

func TestGRPCEventStore_AppendAndReadBack(t *testing.T) {
	client := newFakeEventLogClient()
	store := NewGRPCEventStore(client, newGRPCTestRegistry())
	ctx := context.Background()

	committed, err := store.AppendEvents(ctx, "account-1", 0, buildEnvelopes("account-1", 2))
	require.NoError(t, err)
	require.Len(t, committed, 2)
	assert.EqualValues(t, 1, committed[0].Metadata.AggregateNonce)
	assert.EqualValues(t, 2, committed[1].Metadata.AggregateNonce)

	events, err := store.ReadEvents(ctx, "account-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "v", events[0].Event.(*testPayload).Value)

	exists, err := store.StreamExists(ctx, "account-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGRPCEventStore_ReadEvents_NonexistentStreamReturnsEmpty(t *testing.T) {
	store := NewGRPCEventStore(newFakeEventLogClient(), newGRPCTestRegistry())

	events, err := store.ReadEvents(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestGRPCEventStore_ReadEventsFrom_NonexistentStreamFails(t *testing.T) {
	store := NewGRPCEventStore(newFakeEventLogClient(), newGRPCTestRegistry())

	_, err := store.ReadEventsFrom(context.Background(), "missing", 0)
	var storeErr domain.EventStoreError
	assert.ErrorAs(t, err, &storeErr)
}

func TestGRPCEventStore_ConcurrencyConflictTranslatesToDomainError(t *testing.T) {
	client := newFakeEventLogClient()
	store := NewGRPCEventStore(client, newGRPCTestRegistry())
	ctx := context.Background()

	_, err := store.AppendEvents(ctx, "account-1", 0, buildEnvelopes("account-1", 1))
	require.NoError(t, err)

	_, err = store.AppendEvents(ctx, "account-1", 0, buildEnvelopes("account-1", 1))
	var conflict domain.ConcurrencyConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGRPCEventStore_ReadAllEventsFromSpansStreams(t *testing.T) {
	client := newFakeEventLogClient()
	store := NewGRPCEventStore(client, newGRPCTestRegistry())
	ctx := context.Background()

	_, err := store.AppendEvents(ctx, "account-1", 0, buildEnvelopes("account-1", 1))
	require.NoError(t, err)
	_, err = store.AppendEvents(ctx, "account-2", 0, buildEnvelopes("account-2", 1))
	require.NoError(t, err)

	events, err := store.ReadAllEventsFrom(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestGRPCEventStore_UnregisteredEventTypeFallsBackToGeneric(t *testing.T) {
	client := newFakeEventLogClient()
	store := NewGRPCEventStore(client, domain.NewTypeRegistry())
	ctx := context.Background()

	payload, err := json.Marshal(testPayload{Value: "one"})
	require.NoError(t, err)
	client.streams["account-1"] = []WireEventRecord{{EventType: "TestPayload", Payload: payload, AggregateNonce: 1, HasGlobalNonce: true, GlobalNonce: 1}}

	events, err := store.ReadEvents(ctx, "account-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	_, ok := events[0].Event.(domain.GenericEvent)
	assert.True(t, ok)
}

func TestGRPCEventStore_NotFoundTranslatesToAggregateNotFoundError(t *testing.T) {
	store := NewGRPCEventStore(notFoundEventLogClient{}, newGRPCTestRegistry())

	_, err := store.AppendEvents(context.Background(), "account-missing", 0, buildEnvelopes("account-missing", 1))

	var notFound domain.AggregateNotFoundError
	assert.ErrorAs(t, err, &notFound)
}

type notFoundEventLogClient struct{}

func (notFoundEventLogClient) AppendEvents(ctx context.Context, req *AppendEventsRequest) (*AppendEventsResponse, error) {
	return nil, status.Error(codes.NotFound, "stream not found")
}

func (notFoundEventLogClient) ReadEventsFrom(ctx context.Context, req *ReadEventsRequest) (*ReadEventsResponse, error) {
	return nil, status.Error(codes.NotFound, "stream not found")
}

func (notFoundEventLogClient) ReadAllEventsFrom(ctx context.Context, req *ReadAllEventsRequest) (*ReadAllEventsResponse, error) {
	return nil, status.Error(codes.NotFound, "stream not found")
}

func (notFoundEventLogClient) StreamExists(ctx context.Context, req *StreamExistsRequest) (*StreamExistsResponse, error) {
	return nil, status.Error(codes.NotFound, "stream not found")
}
