package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/google/uuid"
)

// BleveIndex keeps chunks in a local full-text index, for running the
// pipeline without an embedding service.
type BleveIndex struct {
	index bleve.Index
}

type chunkDocument struct {
	Text      string    `json:"text"`
	IndexedAt time.Time `json:"indexed_at"`
}

// OpenBleveIndex opens the index at path, creating it when missing. An empty
// path keeps the index in memory.
func OpenBleveIndex(path string) (*BleveIndex, error) {
	mapping := bleve.NewIndexMapping()

	if path == "" {
		index, err := bleve.NewMemOnly(mapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create memory index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.Open(path)
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		index, err = bleve.New(path, mapping)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return &BleveIndex{index: index}, nil
}

// Insert stores the chunk under a fresh id.
func (b *BleveIndex) Insert(ctx context.Context, chunk string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc := chunkDocument{Text: chunk, IndexedAt: time.Now().UTC()}
	if err := b.index.Index(uuid.NewString(), doc); err != nil {
		return fmt.Errorf("failed to index chunk: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (b *BleveIndex) Count() (uint64, error) {
	return b.index.DocCount()
}

// Search returns the ids of the best matching chunks.
func (b *BleveIndex) Search(query string, size int) ([]string, error) {
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), size, 0, false)
	result, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	ids := make([]string, 0, len(result.Hits))
	for _, hit := range result.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

func (b *BleveIndex) Close() error {
	return b.index.Close()
}
