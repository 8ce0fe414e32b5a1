package storage

import (
	"context"
	"time"
)

// ChunkIndex receives emitted chunks for embedding and retrieval.
type ChunkIndex interface {
	Insert(ctx context.Context, chunk string) error
	Close() error
}

// StorageMetrics provides telemetry for index operations
type StorageMetrics struct {
	OperationType string
	Duration      time.Duration
	Bytes         int
	Success       bool
	Backend       string
	Error         error
}

// MetricsCollector receives index operation metrics
type MetricsCollector interface {
	RecordMetric(metric StorageMetrics)
}
