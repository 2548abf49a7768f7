package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dgallion1/docqa/internal/answer"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/embedding"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/stats"
)

// ModelStats exposes latency statistics of the model capabilities.
type ModelStats struct {
	EmbeddingModel string
	AnswerModel    string
	Embedding      *stats.Latency
	Answer         *stats.Latency
}

// ModelStatsSnapshot is the JSON form of ModelStats.
type ModelStatsSnapshot struct {
	Embedding ModelLatency `json:"embedding"`
	Answer    ModelLatency `json:"answer"`
}

type ModelLatency struct {
	Model string `json:"model"`
	stats.Snapshot
}

func (m *ModelStats) Snapshot() ModelStatsSnapshot {
	return ModelStatsSnapshot{
		Embedding: ModelLatency{Model: m.EmbeddingModel, Snapshot: m.Embedding.Snapshot()},
		Answer:    ModelLatency{Model: m.AnswerModel, Snapshot: m.Answer.Snapshot()},
	}
}

type modeler interface {
	Model() string
}

// BuildDeps constructs the embedder, answerer and index store selected by cfg,
// each model wrapped with latency recording. The returned func releases
// connections.
func BuildDeps(ctx context.Context, cfg config.Config, log *slog.Logger) (Deps, *ModelStats, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	emb, err := newEmbedder(cfg)
	if err != nil {
		return Deps{}, nil, nil, err
	}
	ans, err := newAnswerer(cfg, &closers)
	if err != nil {
		closeAll()
		return Deps{}, nil, nil, err
	}
	store, err := newStore(ctx, cfg, &closers)
	if err != nil {
		closeAll()
		return Deps{}, nil, nil, err
	}

	ms := &ModelStats{
		EmbeddingModel: emb.Model(),
		Embedding:      stats.NewLatency(time.Hour),
		Answer:         stats.NewLatency(time.Hour),
	}
	if m, ok := ans.(modeler); ok {
		ms.AnswerModel = m.Model()
	}
	log.Info("capabilities ready",
		"embedder", cfg.Embedder, "embedding_model", ms.EmbeddingModel,
		"answerer", cfg.Answerer, "answer_model", ms.AnswerModel,
		"index_store", cfg.IndexStore)

	deps := Deps{
		Embedder: embedding.NewInstrumented(emb, ms.Embedding),
		Answerer: answer.NewInstrumented(ans, ms.Answer),
		Store:    store,
	}
	return deps, ms, closeAll, nil
}

func newEmbedder(cfg config.Config) (embedding.Embedder, error) {
	switch cfg.Embedder {
	case "hash":
		return embedding.NewHash(cfg.EmbeddingDim), nil
	case "openai":
		return embedding.NewOpenAI(embedding.OpenAIConfig{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.EmbeddingModel,
			Dimension:   cfg.EmbeddingDim,
			BatchSize:   cfg.EmbeddingBatchSize,
			Concurrency: cfg.EmbeddingConcurrency,
			RPS:         cfg.EmbeddingRPS,
			Timeout:     cfg.ModelTimeout,
		})
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}
}

func newAnswerer(cfg config.Config, closers *[]func()) (answer.Answerer, error) {
	switch cfg.Answerer {
	case "lexical":
		return answer.Lexical{}, nil
	case "http":
		c := answer.NewHTTPClient(cfg.QAURL, cfg.QAAPIKey, cfg.QAModel, cfg.ModelTimeout)
		*closers = append(*closers, c.Close)
		return c, nil
	case "openai":
		return answer.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.QAModel, cfg.ModelTimeout)
	default:
		return nil, fmt.Errorf("unknown answerer %q", cfg.Answerer)
	}
}

func newStore(ctx context.Context, cfg config.Config, closers *[]func()) (index.Store, error) {
	switch cfg.IndexStore {
	case "file":
		return index.NewFileStore(filepath.Join(cfg.DataDir, "indexes"))
	case "memory":
		return index.NewMemoryStore(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store := index.NewRedisStore(client, cfg.IndexTTL)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		*closers = append(*closers, func() { client.Close() })
		return store, nil
	default:
		return nil, fmt.Errorf("unknown index store %q", cfg.IndexStore)
	}
}
