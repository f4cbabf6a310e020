package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/riverrun/chronicle/pkg/domain"
)

// DynamoDBConfig configures the DynamoDB-backed event store. Host/Port
// support a local DynamoDB instance (e.g. docker-compose) the way the rest
// of the pack's DynamoDB adapters do.
type DynamoDBConfig struct {
	Region    string
	TableName string
	Host      string
	Port      int
}

// dynamoEventItem is the single-table item shape: PK is the stream name, SK
// is a zero-padded aggregate_nonce so Query returns events in stream order.
// GlobalIndexPK is a constant partition for the "all events in global order"
// GSI — a known hot-partition tradeoff acceptable for a reference adapter,
// not a production global-order index design.
type dynamoEventItem struct {
	StreamName     string `dynamodbav:"stream_name"`
	AggregateNonce string `dynamodbav:"aggregate_nonce"`
	EventID        string `dynamodbav:"event_id"`
	EventType      string `dynamodbav:"event_type"`
	AggregateID    string `dynamodbav:"aggregate_id"`
	AggregateType  string `dynamodbav:"aggregate_type"`
	TenantID       string `dynamodbav:"tenant_id"`
	CorrelationID  string `dynamodbav:"correlation_id"`
	CausationID    string `dynamodbav:"causation_id"`
	ActorID        string `dynamodbav:"actor_id"`
	Payload        string `dynamodbav:"payload"`
	Timestamp      int64  `dynamodbav:"timestamp"`
	GlobalIndexPK  string `dynamodbav:"global_pk"`
	GlobalNonce    uint64 `dynamodbav:"global_nonce"`
}

const dynamoGlobalPartition = "GLOBAL"
const dynamoCounterKey = "__global_counter__"

// DynamoDBEventStore implements domain.EventStoreClient over a single
// DynamoDB table. Optimistic concurrency uses a conditional PutItem
// (attribute_not_exists) per item rather than a transaction, since each
// item's sort key already encodes its expected aggregate_nonce.
type DynamoDBEventStore struct {
	client    *dynamodb.Client
	tableName string
	registry  *domain.TypeRegistry
}

func NewDynamoDBEventStore(ctx context.Context, cfg DynamoDBConfig) (*DynamoDBEventStore, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Host != "" && cfg.Port != 0 {
		endpoint := fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, domain.NewEventStoreError("load aws config", err)
	}

	return &DynamoDBEventStore{
		client:    dynamodb.NewFromConfig(awsCfg, clientOpts...),
		tableName: cfg.TableName,
	}, nil
}

func (s *DynamoDBEventStore) WithRegistry(registry *domain.TypeRegistry) *DynamoDBEventStore {
	s.registry = registry
	return s
}

func (s *DynamoDBEventStore) Connect(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(s.tableName)})
	if err != nil {
		return domain.NewEventStoreError("describe table "+s.tableName, err)
	}
	return nil
}

func (s *DynamoDBEventStore) Disconnect(ctx context.Context) error { return nil }

func (s *DynamoDBEventStore) AppendEvents(ctx context.Context, streamName string, expectedAggregateNonce int64, events []domain.EventEnvelope) ([]domain.EventEnvelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	base := expectedAggregateNonce
	if base == -1 {
		current, err := s.countStream(ctx, streamName)
		if err != nil {
			return nil, err
		}
		base = current
	}

	committed := make([]domain.EventEnvelope, len(events))
	for i, env := range events {
		aggregateNonce := base + int64(i) + 1
		env.Metadata.AggregateNonce = aggregateNonce

		globalNonce, err := s.nextGlobalNonce(ctx)
		if err != nil {
			return nil, err
		}
		env.Metadata.GlobalNonce = &globalNonce

		payload, err := json.Marshal(env.Event)
		if err != nil {
			return nil, domain.NewSerializationError("marshal", env.Event.EventType(), err)
		}

		item := dynamoEventItem{
			StreamName:     streamName,
			AggregateNonce: fmt.Sprintf("%020d", aggregateNonce),
			EventID:        env.Metadata.EventID,
			EventType:      env.Event.EventType(),
			AggregateID:    env.Metadata.AggregateID,
			AggregateType:  env.Metadata.AggregateType,
			TenantID:       env.Metadata.TenantID,
			CorrelationID:  env.Metadata.CorrelationID,
			CausationID:    env.Metadata.CausationID,
			ActorID:        env.Metadata.ActorID,
			Payload:        string(payload),
			Timestamp:      env.Metadata.Timestamp.UnixNano(),
			GlobalIndexPK:  dynamoGlobalPartition,
			GlobalNonce:    globalNonce,
		}
		av, err := attributevalue.MarshalMap(item)
		if err != nil {
			return nil, domain.NewSerializationError("marshal", "dynamo_item", err)
		}

		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.tableName),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(stream_name)"),
		})
		if err != nil {
			var condFailed *types.ConditionalCheckFailedException
			if errors.As(err, &condFailed) {
				current, _ := s.countStream(ctx, streamName)
				return nil, domain.NewConcurrencyConflictError(streamName, expectedAggregateNonce, current)
			}
			return nil, domain.NewEventStoreError("put event item for "+streamName, err)
		}
		committed[i] = env
	}

	return committed, nil
}

// nextGlobalNonce atomically increments a single counter item. This is the
// DynamoDB analogue of SQLEventStore's auto-incrementing primary key.
func (s *DynamoDBEventStore) nextGlobalNonce(ctx context.Context) (uint64, error) {
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"stream_name":     &types.AttributeValueMemberS{Value: dynamoCounterKey},
			"aggregate_nonce": &types.AttributeValueMemberS{Value: "0"},
		},
		UpdateExpression:          aws.String("ADD counter_value :incr"),
		ExpressionAttributeValues: map[string]types.AttributeValue{":incr": &types.AttributeValueMemberN{Value: "1"}},
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, domain.NewEventStoreError("increment global counter", err)
	}
	var result struct {
		CounterValue uint64 `dynamodbav:"counter_value"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &result); err != nil {
		return 0, domain.NewSerializationError("unmarshal", "counter_value", err)
	}
	return result.CounterValue, nil
}

func (s *DynamoDBEventStore) countStream(ctx context.Context, streamName string) (int64, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("stream_name = :sn"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sn": &types.AttributeValueMemberS{Value: streamName},
		},
		Select: types.SelectCount,
	})
	if err != nil {
		return 0, domain.NewEventStoreError("count stream "+streamName, err)
	}
	return int64(out.Count), nil
}

// ReadEvents returns the full stream, or [] if it does not exist: absence
// of from_version means absence is not an error (spec.md §4.4).
func (s *DynamoDBEventStore) ReadEvents(ctx context.Context, streamName string) ([]domain.EventEnvelope, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("stream_name = :sn"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sn": &types.AttributeValueMemberS{Value: streamName},
		},
	})
	if err != nil {
		return nil, domain.NewEventStoreError("query stream "+streamName, err)
	}
	return s.toEnvelopes(out.Items)
}

// ReadEventsFrom always has a present from_version, so a nonexistent stream
// fails rather than returning [] (spec.md §4.4).
func (s *DynamoDBEventStore) ReadEventsFrom(ctx context.Context, streamName string, fromNonce int64) ([]domain.EventEnvelope, error) {
	exists, err := s.StreamExists(ctx, streamName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewEventStoreError("stream not found: "+streamName, nil)
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("stream_name = :sn AND aggregate_nonce > :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sn":   &types.AttributeValueMemberS{Value: streamName},
			":from": &types.AttributeValueMemberS{Value: fmt.Sprintf("%020d", fromNonce)},
		},
	})
	if err != nil {
		return nil, domain.NewEventStoreError("query stream "+streamName, err)
	}
	return s.toEnvelopes(out.Items)
}

func (s *DynamoDBEventStore) StreamExists(ctx context.Context, streamName string) (bool, error) {
	count, err := s.countStream(ctx, streamName)
	return count > 0, err
}

func (s *DynamoDBEventStore) ReadAllEventsFrom(ctx context.Context, fromGlobalNonce uint64) ([]domain.EventEnvelope, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("global_order_index"),
		KeyConditionExpression: aws.String("global_pk = :gp AND global_nonce > :from"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gp":   &types.AttributeValueMemberS{Value: dynamoGlobalPartition},
			":from": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", fromGlobalNonce)},
		},
	})
	if err != nil {
		return nil, domain.NewEventStoreError("query global order index", err)
	}
	return s.toEnvelopes(out.Items)
}

func (s *DynamoDBEventStore) toEnvelopes(items []map[string]types.AttributeValue) ([]domain.EventEnvelope, error) {
	out := make([]domain.EventEnvelope, 0, len(items))
	for _, raw := range items {
		var item dynamoEventItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, domain.NewSerializationError("unmarshal", "dynamo_item", err)
		}
		if item.StreamName == dynamoCounterKey {
			continue
		}

		event, err := s.decodeEvent(item.EventType, []byte(item.Payload))
		if err != nil {
			return nil, err
		}

		globalNonce := item.GlobalNonce
		var aggregateNonce int64
		fmt.Sscanf(item.AggregateNonce, "%d", &aggregateNonce)

		out = append(out, domain.EventEnvelope{
			Event: event,
			Metadata: domain.EventMetadata{
				EventID:        item.EventID,
				Timestamp:      time.Unix(0, item.Timestamp),
				AggregateID:    item.AggregateID,
				AggregateType:  item.AggregateType,
				AggregateNonce: aggregateNonce,
				GlobalNonce:    &globalNonce,
				TenantID:       item.TenantID,
				CorrelationID:  item.CorrelationID,
				CausationID:    item.CausationID,
				ActorID:        item.ActorID,
			},
		})
	}
	return out, nil
}

func (s *DynamoDBEventStore) decodeEvent(eventType string, payload []byte) (domain.Event, error) {
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
