package infrastructure

import (
	"context"
	"encoding/json"

	"github.com/riverrun/chronicle/pkg/domain"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// EventLogClient is the thin client surface a protoc-generated gRPC stub
// would satisfy for a remote event log service. spec.md places the wire
// protocol itself out of scope, so no .proto/generated code exists here;
// GRPCEventStore depends on this interface as the seam where a real
// generated client plugs in, and WireEventRecord below stands in for the
// generated message types.
type EventLogClient interface {
	AppendEvents(ctx context.Context, req *AppendEventsRequest) (*AppendEventsResponse, error)
	ReadEventsFrom(ctx context.Context, req *ReadEventsRequest) (*ReadEventsResponse, error)
	ReadAllEventsFrom(ctx context.Context, req *ReadAllEventsRequest) (*ReadAllEventsResponse, error)
	StreamExists(ctx context.Context, req *StreamExistsRequest) (*StreamExistsResponse, error)
}

// WireEventRecord is the over-the-wire shape of one event: the event
// payload travels as its registered type name plus a JSON-encoded body,
// since no protobuf message definitions exist to carry it as typed fields.
type WireEventRecord struct {
	EventType      string
	Payload        []byte
	AggregateID    string
	AggregateType  string
	AggregateNonce int64
	GlobalNonce    uint64
	HasGlobalNonce bool
	TenantID       string
	CorrelationID  string
	CausationID    string
	ActorID        string
}

type AppendEventsRequest struct {
	StreamName             string
	ExpectedAggregateNonce int64
	Events                 []WireEventRecord
}

type AppendEventsResponse struct {
	Committed []WireEventRecord
}

type ReadEventsRequest struct {
	StreamName string
	FromNonce  int64
}

type ReadEventsResponse struct {
	Events []WireEventRecord
}

type ReadAllEventsRequest struct {
	FromGlobalNonce uint64
}

type ReadAllEventsResponse struct {
	Events []WireEventRecord
}

type StreamExistsRequest struct {
	StreamName string
}

type StreamExistsResponse struct {
	Exists bool
}

// GRPCEventStore implements domain.EventStoreClient against a remote event
// log service reached over gRPC, translating transport status codes into
// domain errors the way C4's callers already expect from the local
// backends.
type GRPCEventStore struct {
	client   EventLogClient
	registry *domain.TypeRegistry
}

func NewGRPCEventStore(client EventLogClient, registry *domain.TypeRegistry) *GRPCEventStore {
	return &GRPCEventStore{client: client, registry: registry}
}

func (s *GRPCEventStore) Connect(ctx context.Context) error    { return nil }
func (s *GRPCEventStore) Disconnect(ctx context.Context) error { return nil }

func (s *GRPCEventStore) AppendEvents(ctx context.Context, streamName string, expectedAggregateNonce int64, events []domain.EventEnvelope) ([]domain.EventEnvelope, error) {
	wire := make([]WireEventRecord, len(events))
	for i, env := range events {
		record, err := s.toWire(env)
		if err != nil {
			return nil, err
		}
		wire[i] = record
	}

	resp, err := s.client.AppendEvents(ctx, &AppendEventsRequest{
		StreamName:             streamName,
		ExpectedAggregateNonce: expectedAggregateNonce,
		Events:                 wire,
	})
	if err != nil {
		return nil, s.translateError(err, streamName, expectedAggregateNonce)
	}

	return s.fromWireAll(resp.Committed)
}

// ReadEvents returns the full stream, or [] if it does not exist: absence
// of from_version means absence is not an error (spec.md §4.4).
func (s *GRPCEventStore) ReadEvents(ctx context.Context, streamName string) ([]domain.EventEnvelope, error) {
	exists, err := s.StreamExists(ctx, streamName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	resp, err := s.client.ReadEventsFrom(ctx, &ReadEventsRequest{StreamName: streamName, FromNonce: 0})
	if err != nil {
		return nil, domain.NewEventStoreError("read events from remote log for "+streamName, err)
	}
	return s.fromWireAll(resp.Events)
}

// ReadEventsFrom always has a present from_version, so a nonexistent stream
// fails rather than returning [] (spec.md §4.4).
func (s *GRPCEventStore) ReadEventsFrom(ctx context.Context, streamName string, fromNonce int64) ([]domain.EventEnvelope, error) {
	exists, err := s.StreamExists(ctx, streamName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewEventStoreError("stream not found: "+streamName, nil)
	}

	resp, err := s.client.ReadEventsFrom(ctx, &ReadEventsRequest{StreamName: streamName, FromNonce: fromNonce})
	if err != nil {
		return nil, domain.NewEventStoreError("read events from remote log for "+streamName, err)
	}
	return s.fromWireAll(resp.Events)
}

func (s *GRPCEventStore) ReadAllEventsFrom(ctx context.Context, fromGlobalNonce uint64) ([]domain.EventEnvelope, error) {
	resp, err := s.client.ReadAllEventsFrom(ctx, &ReadAllEventsRequest{FromGlobalNonce: fromGlobalNonce})
	if err != nil {
		return nil, domain.NewEventStoreError("read all events from remote log", err)
	}
	return s.fromWireAll(resp.Events)
}

func (s *GRPCEventStore) StreamExists(ctx context.Context, streamName string) (bool, error) {
	resp, err := s.client.StreamExists(ctx, &StreamExistsRequest{StreamName: streamName})
	if err != nil {
		return false, domain.NewEventStoreError("check stream existence for "+streamName, err)
	}
	return resp.Exists, nil
}

func (s *GRPCEventStore) toWire(env domain.EventEnvelope) (WireEventRecord, error) {
	payload, err := json.Marshal(env.Event)
	if err != nil {
		return WireEventRecord{}, domain.NewSerializationError("marshal", env.Event.EventType(), err)
	}
	record := WireEventRecord{
		EventType:      env.Event.EventType(),
		Payload:        payload,
		AggregateID:    env.Metadata.AggregateID,
		AggregateType:  env.Metadata.AggregateType,
		AggregateNonce: env.Metadata.AggregateNonce,
		TenantID:       env.Metadata.TenantID,
		CorrelationID:  env.Metadata.CorrelationID,
		CausationID:    env.Metadata.CausationID,
		ActorID:        env.Metadata.ActorID,
	}
	if env.Metadata.GlobalNonce != nil {
		record.GlobalNonce = *env.Metadata.GlobalNonce
		record.HasGlobalNonce = true
	}
	return record, nil
}

func (s *GRPCEventStore) fromWireAll(records []WireEventRecord) ([]domain.EventEnvelope, error) {
	out := make([]domain.EventEnvelope, len(records))
	for i, record := range records {
		env, err := s.fromWire(record)
		if err != nil {
			return nil, err
		}
		out[i] = env
	}
	return out, nil
}

func (s *GRPCEventStore) fromWire(record WireEventRecord) (domain.EventEnvelope, error) {
	event, err := s.decodeEvent(record.EventType, record.Payload)
	if err != nil {
		return domain.EventEnvelope{}, err
	}

	metadata := domain.EventMetadata{
		AggregateID:    record.AggregateID,
		AggregateType:  record.AggregateType,
		AggregateNonce: record.AggregateNonce,
		TenantID:       record.TenantID,
		CorrelationID:  record.CorrelationID,
		CausationID:    record.CausationID,
		ActorID:        record.ActorID,
	}
	if record.HasGlobalNonce {
		globalNonce := record.GlobalNonce
		metadata.GlobalNonce = &globalNonce
	}

	return domain.EventEnvelope{Event: event, Metadata: metadata}, nil
}

func (s *GRPCEventStore) decodeEvent(eventType string, payload []byte) (domain.Event, error) {
	if s.registry == nil {
		return domain.GenericEvent{Type: eventType}, nil
	}
	construct, ok := s.registry.Lookup(eventType)
	if !ok {
		return domain.GenericEvent{Type: eventType}, nil
	}
	event := construct()
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, domain.NewSerializationError("unmarshal", eventType, err)
	}
	return event, nil
}

// translateError maps the gRPC status code returned for a failed append
// back to the same domain errors the local backends raise, so callers
// never need to know whether the store is local or remote.
func (s *GRPCEventStore) translateError(err error, streamName string, expectedAggregateNonce int64) error {
	st, ok := status.FromError(err)
	if !ok {
		return domain.NewEventStoreError("append events to remote log for "+streamName, err)
	}
	switch st.Code() {
	case codes.FailedPrecondition, codes.AlreadyExists:
		return domain.NewConcurrencyConflictError(streamName, expectedAggregateNonce, -1)
	case codes.NotFound:
		return domain.NewAggregateNotFoundError("stream", streamName)
	default:
		return domain.NewEventStoreError("append events to remote log for "+streamName, err)
	}
}
