package infrastructure

import (
	"encoding/json"
	"fmt"

	"context"

	"github.com/riverrun/chronicle/pkg/domain"
	"gorm.io/gorm"
)

// EventRecord is the GORM schema backing SQLEventStore. GlobalSeq is the
// table's auto-incrementing primary key, which doubles as the global_nonce:
// every backend (sqlite, postgres) hands out primary keys in strictly
// increasing, gapless-per-insert order, giving the cross-stream ordering
// spec.md §3 requires without a separate sequence table.
type EventRecord struct {
	GlobalSeq      uint64 `gorm:"primaryKey;autoIncrement"`
	EventID        string `gorm:"uniqueIndex;size:32"`
	StreamName     string `gorm:"index;size:255"`
	EventType      string `gorm:"index;size:255"`
	AggregateID    string `gorm:"index;size:255"`
	AggregateType  string `gorm:"size:255"`
	AggregateNonce int64
	ContentType    string `gorm:"size:64"`
	TenantID       string `gorm:"index;size:255"`
	CorrelationID  string `gorm:"size:255"`
	CausationID    string `gorm:"size:255"`
	ActorID        string `gorm:"size:255"`
	Headers        string `gorm:"type:text"`
	CustomMetadata string `gorm:"type:text"`
	Payload        string `gorm:"type:text"`
	Timestamp      int64
}

func (EventRecord) TableName() string { return "events" }

// SQLEventStore implements domain.EventStoreClient over a GORM connection
// (sqlite via glebarez's pure-Go driver, or postgres). Optimistic
// concurrency is enforced inside a single transaction per AppendEvents call:
// the stream's current aggregate_nonce is counted, compared against the
// caller's expectation, and only then are new rows inserted.
type SQLEventStore struct {
	db       *gorm.DB
	registry *domain.TypeRegistry
}

// NewSQLEventStore auto-migrates the events table and returns a store bound
// to registry for payload (de)serialization.
func NewSQLEventStore(db *gorm.DB, registry *domain.TypeRegistry) (*SQLEventStore, error) {
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("migrate events table: %w", err)
	}
	return &SQLEventStore{db: db, registry: registry}, nil
}

func (s *SQLEventStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domain.NewEventStoreError("get underlying sql.DB", err)
	}
	return sqlDB.PingContext(ctx)
}

func (s *SQLEventStore) Disconnect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return domain.NewEventStoreError("get underlying sql.DB", err)
	}
	return sqlDB.Close()
}

func (s *SQLEventStore) AppendEvents(ctx context.Context, streamName string, expectedAggregateNonce int64, events []domain.EventEnvelope) ([]domain.EventEnvelope, error) {
	if len(events) == 0 {
		return nil, nil
	}

	var committed []domain.EventEnvelope
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current int64
		if err := tx.Model(&EventRecord{}).Where("stream_name = ?", streamName).Count(&current).Error; err != nil {
			return fmt.Errorf("count stream events: %w", err)
		}
		if expectedAggregateNonce != -1 && current != expectedAggregateNonce {
			return domain.NewConcurrencyConflictError(streamName, expectedAggregateNonce, current)
		}

		records := make([]EventRecord, len(events))
		committed = make([]domain.EventEnvelope, len(events))
		for i, env := range events {
			env.Metadata.AggregateNonce = current + int64(i) + 1

			payload, err := json.Marshal(env.Event)
			if err != nil {
				return domain.NewSerializationError("marshal", env.Event.EventType(), err)
			}
			headers, err := json.Marshal(env.Metadata.Headers)
			if err != nil {
				return domain.NewSerializationError("marshal", "headers", err)
			}
			custom, err := json.Marshal(env.Metadata.CustomMetadata)
			if err != nil {
				return domain.NewSerializationError("marshal", "custom_metadata", err)
			}

			records[i] = EventRecord{
				EventID:        env.Metadata.EventID,
				StreamName:     streamName,
				EventType:      env.Event.EventType(),
				AggregateID:    env.Metadata.AggregateID,
				AggregateType:  env.Metadata.AggregateType,
				AggregateNonce: env.Metadata.AggregateNonce,
				ContentType:    env.Metadata.ContentType,
				TenantID:       env.Metadata.TenantID,
				CorrelationID:  env.Metadata.CorrelationID,
				CausationID:    env.Metadata.CausationID,
				ActorID:        env.Metadata.ActorID,
				Headers:        string(headers),
				CustomMetadata: string(custom),
				Payload:        string(payload),
				Timestamp:      env.Metadata.Timestamp.UnixNano(),
			}
			committed[i] = env
		}

		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("insert events: %w", err)
		}

		for i := range committed {
			globalNonce := records[i].GlobalSeq
			committed[i].Metadata.GlobalNonce = &globalNonce
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(domain.ConcurrencyConflictError); ok {
			return nil, err
		}
		return nil, domain.NewEventStoreError("append events to "+streamName, err)
	}

	return committed, nil
}

// ReadEvents returns the full stream, or [] if it does not exist: absence
// of from_version means absence is not an error (spec.md §4.4).
func (s *SQLEventStore) ReadEvents(ctx context.Context, streamName string) ([]domain.EventEnvelope, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("stream_name = ?", streamName).
		Order("aggregate_nonce ASC").
		Find(&records).Error
	if err != nil {
		return nil, domain.NewEventStoreError("read events for "+streamName, err)
	}
	return s.toEnvelopes(records)
}

// ReadEventsFrom always has a present from_version, so a nonexistent stream
// fails rather than returning [] (spec.md §4.4).
func (s *SQLEventStore) ReadEventsFrom(ctx context.Context, streamName string, fromNonce int64) ([]domain.EventEnvelope, error) {
	exists, err := s.StreamExists(ctx, streamName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewEventStoreError("stream not found: "+streamName, nil)
	}

	var records []EventRecord
	err = s.db.WithContext(ctx).
		Where("stream_name = ? AND aggregate_nonce > ?", streamName, fromNonce).
		Order("aggregate_nonce ASC").
		Find(&records).Error
	if err != nil {
		return nil, domain.NewEventStoreError("read events for "+streamName, err)
	}
	return s.toEnvelopes(records)
}

func (s *SQLEventStore) StreamExists(ctx context.Context, streamName string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&EventRecord{}).Where("stream_name = ?", streamName).Count(&count).Error
	if err != nil {
		return false, domain.NewEventStoreError("check existence of "+streamName, err)
	}
	return count > 0, nil
}

func (s *SQLEventStore) ReadAllEventsFrom(ctx context.Context, fromGlobalNonce uint64) ([]domain.EventEnvelope, error) {
	var records []EventRecord
	err := s.db.WithContext(ctx).
		Where("global_seq > ?", fromGlobalNonce).
		Order("global_seq ASC").
		Find(&records).Error
	if err != nil {
		return nil, domain.NewEventStoreError("read all events", err)
	}
	return s.toEnvelopes(records)
}

func (s *SQLEventStore) toEnvelopes(records []EventRecord) ([]domain.EventEnvelope, error) {
	out := make([]domain.EventEnvelope, len(records))
	for i, r := range records {
		event, err := s.decodeEvent(r.EventType, []byte(r.Payload))
		if err != nil {
			return nil, err
		}
		var headers map[string]string
		_ = json.Unmarshal([]byte(r.Headers), &headers)
		var custom map[string]any
		_ = json.Unmarshal([]byte(r.CustomMetadata), &custom)

		globalNonce := r.GlobalSeq
		out[i] = domain.EventEnvelope{
			Event: event,
			Metadata: domain.EventMetadata{
				EventID:        r.EventID,
				AggregateID:    r.AggregateID,
				AggregateType:  r.AggregateType,
				AggregateNonce: r.AggregateNonce,
				GlobalNonce:    &globalNonce,
				ContentType:    r.ContentType,
				TenantID:       r.TenantID,
				CorrelationID:  r.CorrelationID,
				CausationID:    r.CausationID,
				ActorID:        r.ActorID,
				Headers:        headers,
				CustomMetadata: custom,
			},
		}
	}
	return out, nil
}

func (s *SQLEventStore) decodeEvent(eventType string, payload []byte) (domain.Event, error) {
	if s.registry == nil {
		return domain.GenericEvent{Type: eventType}, nil
	}
	newEvent, ok := s.registry.Lookup(eventType)
	if !ok {
		return domain.GenericEvent{Type: eventType}, nil
	}
	event := newEvent()
	if err := json.Unmarshal(payload, event); err != nil {
		return nil, domain.NewSerializationError("unmarshal", eventType, err)
	}
	return event, nil
}
