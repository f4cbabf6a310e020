package infrastructure

import (
	"context"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/riverrun/chronicle/pkg/domain"
)

const projectionTopic = "chronicle.events"

// WatermillEventDispatcher fans committed envelopes out to registered
// domain.Projections over an in-process Watermill pub/sub, decoupling a
// Repository's Save from projection updates (Persist-then-Dispatch: Save
// durably appends first, this publishes second). Swapping gochannel.GoChannel
// for a networked Watermill pub/sub (Kafka, NATS, SQS) later is a
// constructor-only change; every Subscribe/Dispatch caller is unaffected.
type WatermillEventDispatcher struct {
	pubSub   *gochannel.GoChannel
	logger   watermill.LoggerAdapter
	router   *message.Router
	registry *domain.TypeRegistry

	mu          sync.Mutex
	projections []domain.Projection
	started     bool
}

func NewWatermillEventDispatcher(logger watermill.LoggerAdapter, registry *domain.TypeRegistry) (*WatermillEventDispatcher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, fmt.Errorf("create message router: %w", err)
	}

	return &WatermillEventDispatcher{
		pubSub:   pubSub,
		logger:   logger,
		router:   router,
		registry: registry,
	}, nil
}

// RegisterProjection adds p to the fan-out set. Must be called before Start.
func (d *WatermillEventDispatcher) RegisterProjection(p domain.Projection) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.projections = append(d.projections, p)
}

// Start wires a single consumer handler that decodes each published envelope
// and dispatches it to every registered projection, then starts the router
// in the background. Call once, after every RegisterProjection call.
func (d *WatermillEventDispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = true
	manager := domain.NewProjectionManager()
	for _, p := range d.projections {
		if err := manager.Register(p); err != nil {
			d.mu.Unlock()
			return err
		}
	}
	d.mu.Unlock()

	d.router.AddNoPublisherHandler(
		"chronicle-projection-fanout",
		projectionTopic,
		d.pubSub,
		func(msg *message.Message) error {
			env, err := domain.UnmarshalEnvelope(msg.Payload, d.registry, true)
			if err != nil {
				return err
			}
			return manager.Dispatch(context.Background(), env)
		},
	)

	go func() {
		if err := d.router.Run(ctx); err != nil {
			d.logger.Error("projection router stopped", err, nil)
		}
	}()
	<-d.router.Running()
	return nil
}

// Dispatch publishes every envelope for asynchronous projection fan-out. It
// is the function typically wired as a Repository's WithDispatch hook.
func (d *WatermillEventDispatcher) Dispatch(ctx context.Context, envelopes []domain.EventEnvelope) error {
	for _, env := range envelopes {
		data, err := domain.MarshalEnvelope(env)
		if err != nil {
			return err
		}
		msg := message.NewMessage(env.Metadata.EventID, data)
		msg.Metadata.Set("event_type", env.Event.EventType())
		msg.Metadata.Set("aggregate_id", env.Metadata.AggregateID)
		if err := d.pubSub.Publish(projectionTopic, msg); err != nil {
			return fmt.Errorf("publish event %s: %w", env.Metadata.EventID, err)
		}
	}
	return nil
}

// Close stops the router and the underlying pub/sub.
func (d *WatermillEventDispatcher) Close() error {
	if err := d.router.Close(); err != nil {
		return err
	}
	return d.pubSub.Close()
}
