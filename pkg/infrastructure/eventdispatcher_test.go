package infrastructure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/riverrun/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingTarget exposes an On<EventType> method for AutoDispatchProjection
// to route testPayload events into, guarded by a mutex since dispatch runs on
// the router's own goroutine.
type recordingTarget struct {
	mu     sync.Mutex
	values []string
}

func (r *recordingTarget) OnTestPayload(ctx context.Context, env domain.EventEnvelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	payload := env.Event.(*testPayload)
	r.values = append(r.values, payload.Value)
	return nil
}

func (r *recordingTarget) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.values))
	copy(out, r.values)
	return out
}

func newTestDispatcher(t *testing.T) *WatermillEventDispatcher {
	t.Helper()
	registry := domain.NewTypeRegistry()
	registry.Register("TestPayload", func() domain.Event { return &testPayload{} })

	dispatcher, err := NewWatermillEventDispatcher(watermill.NopLogger{}, registry)
	require.NoError(t, err)
	return dispatcher
}

func TestWatermillEventDispatcher_DispatchReachesProjection(t *testing.T) {
	dispatcher := newTestDispatcher(t)
	target := &recordingTarget{}
	dispatcher.RegisterProjection(domain.NewAutoDispatchProjection("recording", 1, target))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dispatcher.Start(ctx))
	defer dispatcher.Close()

	envelopes := buildEnvelopes("dispatch-stream", 2)
	require.NoError(t, dispatcher.Dispatch(ctx, envelopes))

	assert.Eventually(t, func() bool {
		return len(target.seen()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"v", "v"}, target.seen())
}

func TestWatermillEventDispatcher_UnregisteredProjectionIgnoresEvent(t *testing.T) {
	dispatcher := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dispatcher.Start(ctx))
	defer dispatcher.Close()

	envelopes := buildEnvelopes("no-projection-stream", 1)
	assert.NoError(t, dispatcher.Dispatch(ctx, envelopes))
}

func TestWatermillEventDispatcher_StartIsIdempotent(t *testing.T) {
	dispatcher := newTestDispatcher(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, dispatcher.Start(ctx))
	require.NoError(t, dispatcher.Start(ctx))
	defer dispatcher.Close()
}
