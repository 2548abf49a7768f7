// Package retriever ranks indexed chunks against a question.
package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/dgallion1/docqa/internal/embedding"
	"github.com/dgallion1/docqa/internal/index"
)

const DefaultTopK = 5

// Hit is one ranked chunk.
type Hit struct {
	Text  string  `json:"text"`
	Order int     `json:"order"`
	Score float64 `json:"score"`
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// the lengths differ or either vector is all zeros.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Ranked is a position in the embeddings slice with its score.
type Ranked struct {
	Order int
	Score float64
}

// Rank scores every embedding against query and returns the best topK
// positions, highest score first. Equal scores keep index order.
func Rank(query []float32, embeddings [][]float32, topK int) []Ranked {
	if topK <= 0 {
		topK = DefaultTopK
	}
	all := make([]Ranked, len(embeddings))
	for i, e := range embeddings {
		all[i] = Ranked{Order: i, Score: CosineSimilarity(query, e)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Score > all[j].Score
	})
	return all[:min(topK, len(all))]
}

// Retriever embeds questions and looks them up in an index.
type Retriever struct {
	emb embedding.Embedder
}

func New(emb embedding.Embedder) *Retriever {
	return &Retriever{emb: emb}
}

// Search returns up to topK hits for query. An empty index yields no hits and
// does not call the embedder.
func (r *Retriever) Search(ctx context.Context, query string, idx *index.Index, topK int) ([]Hit, error) {
	if idx == nil || idx.Len() == 0 {
		return nil, nil
	}
	qv, err := embedding.EmbedOne(ctx, r.emb, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	ranked := Rank(qv, idx.Embeddings, topK)
	hits := make([]Hit, len(ranked))
	for i, s := range ranked {
		hits[i] = Hit{Text: idx.Chunks[s.Order], Order: s.Order, Score: s.Score}
	}
	return hits, nil
}

// Retrieve returns the text of the top hits joined by newlines.
func (r *Retriever) Retrieve(ctx context.Context, query string, idx *index.Index, topK int) (string, error) {
	hits, err := r.Search(ctx, query, idx, topK)
	if err != nil {
		return "", err
	}
	return JoinHits(hits), nil
}

// JoinHits concatenates hit texts in rank order.
func JoinHits(hits []Hit) string {
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	return strings.Join(texts, "\n")
}
