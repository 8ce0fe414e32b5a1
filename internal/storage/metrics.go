package storage

import (
	"sync"
	"time"

	"github.com/Caia-Tech/caia-harvester/pkg/logging"
)

// SimpleMetricsCollector aggregates index metrics per backend and operation.
// Memory stays bounded by the number of distinct operations.
type SimpleMetricsCollector struct {
	stats map[string]map[string]*OperationStats
	mutex sync.RWMutex
}

func NewSimpleMetricsCollector() *SimpleMetricsCollector {
	return &SimpleMetricsCollector{stats: make(map[string]map[string]*OperationStats)}
}

// RecordMetric folds the metric into its operation's counters and logs it at
// debug level
func (s *SimpleMetricsCollector) RecordMetric(metric StorageMetrics) {
	s.mutex.Lock()
	byOperation := s.stats[metric.Backend]
	if byOperation == nil {
		byOperation = make(map[string]*OperationStats)
		s.stats[metric.Backend] = byOperation
	}
	stats := byOperation[metric.OperationType]
	if stats == nil {
		stats = &OperationStats{MinDuration: metric.Duration, MaxDuration: metric.Duration}
		byOperation[metric.OperationType] = stats
	}
	stats.add(metric)
	s.mutex.Unlock()

	logger := logging.GetStorageLogger(metric.OperationType, metric.Backend)
	event := logger.Debug().
		Dur("duration", metric.Duration).
		Int("bytes", metric.Bytes).
		Bool("success", metric.Success)
	if metric.Error != nil {
		event = event.Err(metric.Error)
	}
	event.Msg("Index operation metric recorded")
}

// Summary returns a copy of the counters keyed by backend and operation
func (s *SimpleMetricsCollector) Summary() map[string]map[string]*OperationStats {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	summary := make(map[string]map[string]*OperationStats, len(s.stats))
	for backend, byOperation := range s.stats {
		summary[backend] = make(map[string]*OperationStats, len(byOperation))
		for operation, stats := range byOperation {
			copied := *stats
			summary[backend][operation] = &copied
		}
	}
	return summary
}

// ClearMetrics resets all counters
func (s *SimpleMetricsCollector) ClearMetrics() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats = make(map[string]map[string]*OperationStats)
}

// LogSummary logs the counters gathered since the last call and resets them.
func (s *SimpleMetricsCollector) LogSummary() {
	s.mutex.Lock()
	current := s.stats
	s.stats = make(map[string]map[string]*OperationStats)
	s.mutex.Unlock()

	for backend, byOperation := range current {
		for operation, stats := range byOperation {
			logger := logging.GetStorageLogger(operation, backend)
			logger.Info().
				Int("count", stats.Count).
				Int("failures", stats.FailureCount).
				Int64("bytes", stats.Bytes).
				Float64("success_rate", stats.GetSuccessRate()).
				Dur("avg_duration", stats.AvgDuration()).
				Dur("max_duration", stats.MaxDuration).
				Msg("Index operation summary")
		}
	}
}

// OperationStats holds statistics for a specific operation type
type OperationStats struct {
	Count         int           `json:"count"`
	SuccessCount  int           `json:"success_count"`
	FailureCount  int           `json:"failure_count"`
	Bytes         int64         `json:"bytes"`
	TotalDuration time.Duration `json:"total_duration_ns"`
	MinDuration   time.Duration `json:"min_duration_ns"`
	MaxDuration   time.Duration `json:"max_duration_ns"`
}

func (o *OperationStats) add(metric StorageMetrics) {
	o.Count++
	o.Bytes += int64(metric.Bytes)
	o.TotalDuration += metric.Duration
	if metric.Success {
		o.SuccessCount++
	} else {
		o.FailureCount++
	}
	o.MinDuration = min(o.MinDuration, metric.Duration)
	o.MaxDuration = max(o.MaxDuration, metric.Duration)
}

// GetSuccessRate returns the success rate as a percentage
func (o *OperationStats) GetSuccessRate() float64 {
	if o.Count == 0 {
		return 0.0
	}
	return float64(o.SuccessCount) / float64(o.Count) * 100.0
}

// AvgDuration returns the mean operation duration
func (o *OperationStats) AvgDuration() time.Duration {
	if o.Count == 0 {
		return 0
	}
	return o.TotalDuration / time.Duration(o.Count)
}
