// Package embedding turns text into fixed-dimension vectors.
package embedding

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/dgallion1/docqa/internal/stats"
)

// Embedder maps texts to vectors. Output order matches input order and every
// vector has length Dimension().
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
	Model() string
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed: expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}

// Instrumented records the latency of every Embed call.
type Instrumented struct {
	Embedder
	Stats *stats.Latency
}

func NewInstrumented(e Embedder, s *stats.Latency) *Instrumented {
	return &Instrumented{Embedder: e, Stats: s}
}

func (i *Instrumented) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := i.Embedder.Embed(ctx, texts)
	i.Stats.Since(start, err)
	return vecs, err
}

func l2normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
