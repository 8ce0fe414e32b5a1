package storage

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
)

// InstrumentedIndex records a metric for every operation of the wrapped
// index.
type InstrumentedIndex struct {
	next    ChunkIndex
	backend string
	metrics MetricsCollector
}

func NewInstrumentedIndex(next ChunkIndex, backend string, metrics MetricsCollector) *InstrumentedIndex {
	if metrics == nil {
		metrics = NewSimpleMetricsCollector()
	}
	return &InstrumentedIndex{next: next, backend: backend, metrics: metrics}
}

func (i *InstrumentedIndex) Insert(ctx context.Context, chunk string) error {
	start := time.Now()
	err := i.next.Insert(ctx, chunk)
	i.metrics.RecordMetric(StorageMetrics{
		OperationType: "insert",
		Duration:      time.Since(start),
		Bytes:         len(chunk),
		Success:       err == nil,
		Backend:       i.backend,
		Error:         err,
	})
	return err
}

func (i *InstrumentedIndex) Close() error {
	start := time.Now()
	err := i.next.Close()
	i.metrics.RecordMetric(StorageMetrics{
		OperationType: "close",
		Duration:      time.Since(start),
		Success:       err == nil,
		Backend:       i.backend,
		Error:         err,
	})
	return err
}

// NewIndex builds the configured backend wrapped with metrics.
func NewIndex(config *pipeline.IndexConfig, metrics MetricsCollector) (*InstrumentedIndex, error) {
	switch config.Backend {
	case "http", "":
		client := &http.Client{Timeout: config.Timeout.Duration}
		return NewInstrumentedIndex(NewHTTPIndex(config.BaseURL, client), "http", metrics), nil
	case "bleve":
		index, err := OpenBleveIndex(config.Path)
		if err != nil {
			return nil, err
		}
		return NewInstrumentedIndex(index, "bleve", metrics), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", config.Backend)
	}
}
