package application

import (
	"context"
	"sync"

	"github.com/riverrun/chronicle/pkg/domain"
)

// nopLogger discards everything; application's own tests only assert on
// handler/middleware behavior, never on log output.
type nopLogger struct{}

func (nopLogger) Debug(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Warn(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Fatal(msg string, keysAndValues ...interface{}) {}
func (nopLogger) Debugf(format string, args ...interface{})      {}
func (nopLogger) Infof(format string, args ...interface{})       {}
func (nopLogger) Warnf(format string, args ...interface{})       {}
func (nopLogger) Errorf(format string, args ...interface{})      {}
func (nopLogger) Fatalf(format string, args ...interface{})      {}

// fakeEventStoreClient is a minimal single-process domain.EventStoreClient
// used so pkg/application's tests don't need a real backend from
// pkg/infrastructure (which imports pkg/application, and would otherwise
// cycle).
type fakeEventStoreClient struct {
	mu      sync.Mutex
	streams map[string][]domain.EventEnvelope
	global  uint64
}

func newFakeEventStoreClient() *fakeEventStoreClient {
	return &fakeEventStoreClient{streams: make(map[string][]domain.EventEnvelope)}
}

func (f *fakeEventStoreClient) Connect(ctx context.Context) error    { return nil }
func (f *fakeEventStoreClient) Disconnect(ctx context.Context) error { return nil }

func (f *fakeEventStoreClient) AppendEvents(ctx context.Context, streamName string, expectedAggregateNonce int64, events []domain.EventEnvelope) ([]domain.EventEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	existing := f.streams[streamName]
	if expectedAggregateNonce != -1 && int64(len(existing)) != expectedAggregateNonce {
		return nil, domain.NewConcurrencyConflictError(streamName, expectedAggregateNonce, int64(len(existing)))
	}

	committed := make([]domain.EventEnvelope, len(events))
	for i, env := range events {
		f.global++
		globalNonce := f.global
		env.Metadata.AggregateNonce = int64(len(existing)) + int64(i) + 1
		env.Metadata.GlobalNonce = &globalNonce
		committed[i] = env
	}
	f.streams[streamName] = append(existing, committed...)
	return committed, nil
}

func (f *fakeEventStoreClient) ReadEvents(ctx context.Context, streamName string) ([]domain.EventEnvelope, error) {
	return f.ReadEventsFrom(ctx, streamName, 0)
}

func (f *fakeEventStoreClient) ReadEventsFrom(ctx context.Context, streamName string, fromNonce int64) ([]domain.EventEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EventEnvelope
	for _, env := range f.streams[streamName] {
		if env.Metadata.AggregateNonce > fromNonce {
			out = append(out, env)
		}
	}
	return out, nil
}

func (f *fakeEventStoreClient) StreamExists(ctx context.Context, streamName string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams[streamName]) > 0, nil
}

func (f *fakeEventStoreClient) ReadAllEventsFrom(ctx context.Context, fromGlobalNonce uint64) ([]domain.EventEnvelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EventEnvelope
	for _, events := range f.streams {
		for _, env := range events {
			if env.Metadata.GlobalNonce != nil && *env.Metadata.GlobalNonce > fromGlobalNonce {
				out = append(out, env)
			}
		}
	}
	return out, nil
}
