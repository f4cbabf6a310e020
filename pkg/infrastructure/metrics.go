package infrastructure

import (
	"sync"
	"time"

	"github.com/riverrun/chronicle/pkg/application"
	"github.com/riverrun/chronicle/pkg/domain"
)

// loggingMetricsCollector implements application.MetricsCollector, logging
// every observation through domain.Logger in addition to retaining it for
// inspection through GetRequestMetrics.
type loggingMetricsCollector struct {
	logger domain.Logger
	mu     sync.RWMutex

	durations map[string][]time.Duration
	errors    map[string]int64
}

// NewLoggingMetricsCollector creates a MetricsCollector that logs through
// logger, the ambient observability adapter registered by InfrastructureModule.
func NewLoggingMetricsCollector(logger domain.Logger) application.MetricsCollector {
	return &loggingMetricsCollector{
		logger:    logger,
		durations: make(map[string][]time.Duration),
		errors:    make(map[string]int64),
	}
}

func (m *loggingMetricsCollector) RecordRequestDuration(requestType string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.durations[requestType] = append(m.durations[requestType], duration)
	m.logger.Debug("request duration recorded", "type", requestType, "duration", duration)
}

func (m *loggingMetricsCollector) IncrementRequestErrors(requestType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[requestType]++
	m.logger.Debug("request error count incremented", "type", requestType, "total_errors", m.errors[requestType])
}

// GetRequestMetrics returns a copy of the durations and current error count
// recorded for requestType.
func (m *loggingMetricsCollector) GetRequestMetrics(requestType string) (durations []time.Duration, errorCount int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	durations = make([]time.Duration, len(m.durations[requestType]))
	copy(durations, m.durations[requestType])
	return durations, m.errors[requestType]
}
