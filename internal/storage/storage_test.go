package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/Caia-Tech/caia-harvester/pkg/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPIndex_Insert(t *testing.T) {
	var received [][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/insert_embedding", r.URL.Path)

		var batch []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		received = append(received, batch)
		io.WriteString(w, `{"status":"success"}`)
	}))
	defer server.Close()

	index := NewHTTPIndex(server.URL, server.Client())
	defer index.Close()

	require.NoError(t, index.Insert(context.Background(), "GO — Title — https://go.dev\nPUBLISHED: unknown\n\nbody"))
	require.Len(t, received, 1)
	assert.Equal(t, []string{"GO — Title — https://go.dev\nPUBLISHED: unknown\n\nbody"}, received[0])
}

func TestHTTPIndex_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `{"status":"error"}`, "status 500"},
		{"rejected", http.StatusOK, `{"status":"error","message":"chunk too long"}`, "chunk too long"},
		{"not json", http.StatusOK, `ok`, "decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			err := NewHTTPIndex(server.URL, server.Client()).Insert(context.Background(), "chunk")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestBleveIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.bleve")

	index, err := OpenBleveIndex(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, index.Insert(ctx, "seccomp profiles restrict container syscalls"))
	require.NoError(t, index.Insert(ctx, "rootless containers run without root privileges"))

	count, err := index.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	ids, err := index.Search("seccomp", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	require.NoError(t, index.Close())

	reopened, err := OpenBleveIndex(path)
	require.NoError(t, err)
	defer reopened.Close()

	count, err = reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)
}

type failingIndex struct{ err error }

func (f failingIndex) Insert(context.Context, string) error { return f.err }
func (f failingIndex) Close() error                         { return nil }

func TestInstrumentedIndex(t *testing.T) {
	metrics := NewSimpleMetricsCollector()

	memory, err := OpenBleveIndex("")
	require.NoError(t, err)
	ok := NewInstrumentedIndex(memory, "bleve", metrics)
	bad := NewInstrumentedIndex(failingIndex{err: errors.New("down")}, "http", metrics)

	ctx := context.Background()
	require.NoError(t, ok.Insert(ctx, "first chunk"))
	require.NoError(t, ok.Insert(ctx, "second"))
	assert.Error(t, bad.Insert(ctx, "lost"))
	require.NoError(t, ok.Close())

	summary := metrics.Summary()
	inserts := summary["bleve"]["insert"]
	require.NotNil(t, inserts)
	assert.Equal(t, 2, inserts.Count)
	assert.Equal(t, int64(len("first chunk")+len("second")), inserts.Bytes)
	assert.Equal(t, 100.0, inserts.GetSuccessRate())
	assert.Equal(t, 0.0, summary["http"]["insert"].GetSuccessRate())
	assert.Equal(t, 1, summary["bleve"]["close"].Count)

	metrics.ClearMetrics()
	assert.Empty(t, metrics.Summary())
}

func TestSimpleMetricsCollector_Aggregates(t *testing.T) {
	metrics := NewSimpleMetricsCollector()

	for i := 0; i < 10000; i++ {
		metrics.RecordMetric(StorageMetrics{
			OperationType: "insert",
			Backend:       "http",
			Duration:      time.Duration(i%10+1) * time.Millisecond,
			Bytes:         10,
			Success:       i%4 != 0,
		})
	}

	summary := metrics.Summary()
	require.Len(t, summary, 1)
	require.Len(t, summary["http"], 1)
	inserts := summary["http"]["insert"]
	assert.Equal(t, 10000, inserts.Count)
	assert.Equal(t, 2500, inserts.FailureCount)
	assert.Equal(t, int64(100000), inserts.Bytes)
	assert.Equal(t, time.Millisecond, inserts.MinDuration)
	assert.Equal(t, 10*time.Millisecond, inserts.MaxDuration)
	assert.Equal(t, 5500*time.Microsecond, inserts.AvgDuration())
	assert.Equal(t, 75.0, inserts.GetSuccessRate())

	inserts.Count = 0
	assert.Equal(t, 10000, metrics.Summary()["http"]["insert"].Count, "summary is a copy")
}

func TestSimpleMetricsCollector_LogSummaryResets(t *testing.T) {
	metrics := NewSimpleMetricsCollector()
	metrics.RecordMetric(StorageMetrics{OperationType: "insert", Backend: "bleve", Success: true})

	metrics.LogSummary()
	assert.Empty(t, metrics.Summary())

	metrics.RecordMetric(StorageMetrics{OperationType: "insert", Backend: "bleve", Success: true})
	assert.Equal(t, 1, metrics.Summary()["bleve"]["insert"].Count)
}

func TestNewIndex(t *testing.T) {
	config := &pipeline.IndexConfig{Backend: "bleve", Path: filepath.Join(t.TempDir(), "idx")}
	index, err := NewIndex(config, nil)
	require.NoError(t, err)
	require.NoError(t, index.Close())

	index, err = NewIndex(&pipeline.IndexConfig{Backend: "http", BaseURL: "http://localhost:1"}, nil)
	require.NoError(t, err)
	assert.NoError(t, index.Close())

	_, err = NewIndex(&pipeline.IndexConfig{Backend: "s3"}, nil)
	assert.Error(t, err)
}
