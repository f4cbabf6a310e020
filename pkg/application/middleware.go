package application

import (
	"fmt"
	"sync"
	"time"

	"context"

	"github.com/riverrun/chronicle/pkg/domain"
)

// Validator is implemented by commands/queries with an opt-in validation
// step, run by ValidationMiddleware before the handler sees the request.
type Validator interface {
	Validate() error
}

// MetricsCollector records per-request-type latency and error counts.
type MetricsCollector interface {
	RecordRequestDuration(requestType string, duration time.Duration)
	IncrementRequestErrors(requestType string)
}

func requestType(data any) string {
	switch v := data.(type) {
	case Command:
		return v.CommandType()
	case Query:
		return v.QueryType()
	default:
		return fmt.Sprintf("%T", data)
	}
}

// LoggingMiddleware logs request start/completion with its correlation ID.
func LoggingMiddleware[Req any, Res any]() Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			start := time.Now()
			rt := requestType(p.Data)

			log.Debug("processing request", "type", rt, "correlationId", p.CorrelationID, "actorId", p.ActorID)

			response, err := next(ctx, log, p)

			duration := time.Since(start)
			if err != nil {
				log.Error("request failed", "type", rt, "duration", duration, "error", err, "correlationId", p.CorrelationID)
			} else {
				log.Debug("request completed", "type", rt, "duration", duration, "correlationId", p.CorrelationID)
			}
			return response, err
		}
	}
}

// ValidationMiddleware runs Validate() on requests that implement Validator,
// short-circuiting with a CommandValidationError when it fails.
func ValidationMiddleware[Req any, Res any]() Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			validator, ok := any(p.Data).(Validator)
			if !ok {
				return next(ctx, log, p)
			}
			if err := validator.Validate(); err != nil {
				rt := requestType(p.Data)
				log.Warn("request validation failed", "type", rt, "error", err, "correlationId", p.CorrelationID)
				var zero Res
				return Response[Res]{Data: zero}, domain.NewCommandValidationError(rt, err.Error())
			}
			return next(ctx, log, p)
		}
	}
}

// MetricsMiddleware records latency and error counts per request type.
func MetricsMiddleware[Req any, Res any](metrics MetricsCollector) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			start := time.Now()
			rt := requestType(p.Data)

			response, err := next(ctx, log, p)
			metrics.RecordRequestDuration(rt, time.Since(start))
			if err != nil {
				metrics.IncrementRequestErrors(rt)
			}
			return response, err
		}
	}
}

// ErrorHandlingMiddleware recovers panics and logs them as handler failures,
// the outermost layer of any middleware stack.
func ErrorHandlingMiddleware[Req any, Res any]() Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (resp Response[Res], err error) {
			rt := requestType(p.Data)
			defer func() {
				if r := recover(); r != nil {
					log.Error("handler panicked", "type", rt, "panic", r, "correlationId", p.CorrelationID)
					err = fmt.Errorf("handler panic for %s: %v", rt, r)
				}
			}()
			return next(ctx, log, p)
		}
	}
}

// CacheProvider caches handler responses, typically for queries only.
type CacheProvider interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Delete(key string)
}

// CachingMiddleware caches query results. Commands always pass through
// unmodified since re-running a cached command response would be wrong.
func CachingMiddleware[Req any, Res any](cache CacheProvider) Middleware[Req, Res] {
	return func(next Handler[Req, Res]) Handler[Req, Res] {
		return func(ctx context.Context, log domain.Logger, p Payload[Req]) (Response[Res], error) {
			query, ok := any(p.Data).(Query)
			if !ok {
				return next(ctx, log, p)
			}
			cacheKey := fmt.Sprintf("%s_%+v", query.QueryType(), p.Data)
			if cached, found := cache.Get(cacheKey); found {
				if cachedResponse, ok := cached.(Response[Res]); ok {
					log.Debug("query result found in cache", "cacheKey", cacheKey)
					return cachedResponse, nil
				}
			}
			response, err := next(ctx, log, p)
			if err != nil {
				return response, err
			}
			cache.Set(cacheKey, response)
			return response, nil
		}
	}
}

// InMemoryMetricsCollector is a minimal, lock-guarded MetricsCollector
// suitable for a demo or test run, not for production metrics aggregation
// (see pkg/infrastructure/metrics.go for the ambient observability adapter).
type InMemoryMetricsCollector struct {
	mu        sync.RWMutex
	durations map[string][]time.Duration
	errors    map[string]int64
}

func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{
		durations: make(map[string][]time.Duration),
		errors:    make(map[string]int64),
	}
}

func (m *InMemoryMetricsCollector) RecordRequestDuration(requestType string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[requestType] = append(m.durations[requestType], duration)
}

func (m *InMemoryMetricsCollector) IncrementRequestErrors(requestType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[requestType]++
}

func (m *InMemoryMetricsCollector) Snapshot() (map[string][]time.Duration, map[string]int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	durations := make(map[string][]time.Duration, len(m.durations))
	for k, v := range m.durations {
		c := make([]time.Duration, len(v))
		copy(c, v)
		durations[k] = c
	}
	errors := make(map[string]int64, len(m.errors))
	for k, v := range m.errors {
		errors[k] = v
	}
	return durations, errors
}

// InMemoryCache is a minimal CacheProvider for demo wiring and tests.
type InMemoryCache struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{data: make(map[string]any)}
}

func (c *InMemoryCache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *InMemoryCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

func (c *InMemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}
