// Package index persists the chunk texts and embeddings of one document.
package index

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"time"

	"github.com/dgallion1/docqa/internal/embedding"
)

var (
	// ErrIndexMissing is returned by Load when nothing was saved under the key.
	ErrIndexMissing = errors.New("index missing")
	// ErrIndexCorrupt is returned by Load when the stored record is unusable.
	ErrIndexCorrupt = errors.New("index corrupt")
	// ErrEmbedderMismatch means the index was built by a different embedding
	// model or dimension than the one now configured. Re-ingest to fix.
	ErrEmbedderMismatch = errors.New("index built with a different embedder")
)

// Header describes how an index was built.
type Header struct {
	Model     string
	Dimension int
	Source    string
	CreatedAt time.Time
}

// Index holds chunk texts and their embeddings in the same order.
type Index struct {
	Header     Header
	Chunks     []string
	Embeddings [][]float32
}

// Len returns the number of chunks.
func (idx *Index) Len() int { return len(idx.Chunks) }

// Validate checks that chunks and embeddings line up and that every vector
// has the same dimension.
func (idx *Index) Validate() error {
	if len(idx.Chunks) != len(idx.Embeddings) {
		return fmt.Errorf("%w: %d chunks but %d embeddings", ErrIndexCorrupt, len(idx.Chunks), len(idx.Embeddings))
	}
	dim := idx.Header.Dimension
	for i, v := range idx.Embeddings {
		if dim == 0 {
			dim = len(v)
		}
		if len(v) != dim {
			return fmt.Errorf("%w: embedding %d has dimension %d, want %d", ErrIndexCorrupt, i, len(v), dim)
		}
	}
	return nil
}

// CheckEmbedder reports ErrEmbedderMismatch when emb cannot produce query
// vectors comparable with the stored ones. An empty index matches anything.
func (idx *Index) CheckEmbedder(emb embedding.Embedder) error {
	if idx.Len() == 0 {
		return nil
	}
	if idx.Header.Model != emb.Model() || idx.Header.Dimension != emb.Dimension() {
		return fmt.Errorf("%w: index has %s/%d, embedder is %s/%d", ErrEmbedderMismatch,
			idx.Header.Model, idx.Header.Dimension, emb.Model(), emb.Dimension())
	}
	return nil
}

// Store persists one index per key. Save replaces any previous index under the
// key as a whole.
type Store interface {
	Save(ctx context.Context, key string, idx *Index) error
	Load(ctx context.Context, key string) (*Index, error)
	Delete(ctx context.Context, key string) error
}

// Build embeds chunks in one batched call and assembles an index.
func Build(ctx context.Context, emb embedding.Embedder, chunks []string, source string) (*Index, error) {
	idx := &Index{
		Header: Header{
			Model:     emb.Model(),
			Dimension: emb.Dimension(),
			Source:    source,
			CreatedAt: time.Now().UTC(),
		},
		Chunks:     chunks,
		Embeddings: [][]float32{},
	}
	if len(chunks) == 0 {
		idx.Chunks = []string{}
		return idx, nil
	}

	vecs, err := emb.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: expected %d vectors, got %d", len(chunks), len(vecs))
	}
	for i, v := range vecs {
		if len(v) != idx.Header.Dimension {
			return nil, fmt.Errorf("embed chunks: vector %d has dimension %d, want %d", i, len(v), idx.Header.Dimension)
		}
	}
	idx.Embeddings = vecs
	return idx, nil
}

func encode(idx *Index) ([]byte, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(idx); err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*Index, error) {
	var idx Index
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&idx); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrIndexCorrupt, err)
	}
	if idx.Chunks == nil {
		idx.Chunks = []string{}
	}
	if idx.Embeddings == nil {
		idx.Embeddings = [][]float32{}
	}
	if err := idx.Validate(); err != nil {
		return nil, err
	}
	return &idx, nil
}
