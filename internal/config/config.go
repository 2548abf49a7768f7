package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Files
	DataDir        string `yaml:"data_dir"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	// Chunking and retrieval
	ChunkSize     int `yaml:"chunk_size"`
	ChunkOverlap  int `yaml:"chunk_overlap"`
	TopK          int `yaml:"top_k"`
	MinLineLength int `yaml:"min_line_length"`

	// Embedding
	Embedder             string  `yaml:"embedder"`
	EmbeddingModel       string  `yaml:"embedding_model"`
	EmbeddingDim         int     `yaml:"embedding_dim"`
	EmbeddingBatchSize   int     `yaml:"embedding_batch_size"`
	EmbeddingConcurrency int     `yaml:"embedding_concurrency"`
	EmbeddingRPS         float64 `yaml:"embedding_rps"`
	OpenAIAPIKey         string  `yaml:"openai_api_key"`
	OpenAIBaseURL        string  `yaml:"openai_base_url"`

	// Answering
	Answerer string `yaml:"answerer"`
	QAURL    string `yaml:"qa_url"`
	QAAPIKey string `yaml:"qa_api_key"`
	QAModel  string `yaml:"qa_model"`

	// Index storage
	IndexStore    string        `yaml:"index_store"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	IndexTTL      time.Duration `yaml:"index_ttl"`

	// Sessions
	SessionTTL           time.Duration `yaml:"session_ttl"`
	SessionSweepSchedule string        `yaml:"session_sweep_schedule"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	ModelTimeout time.Duration `yaml:"model_timeout"`
	LogLevel     string        `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port: "8090",

		DataDir:        "data",
		UploadDir:      "docs",
		MaxUploadBytes: 52428800, // 50MB

		ChunkSize:     500,
		ChunkOverlap:  100,
		TopK:          5,
		MinLineLength: 10,

		Embedder:             "hash",
		EmbeddingDim:         384,
		EmbeddingBatchSize:   64,
		EmbeddingConcurrency: 4,

		Answerer: "lexical",

		IndexStore: "file",
		RedisAddr:  "localhost:6379",

		SessionTTL:           24 * time.Hour,
		SessionSweepSchedule: "@every 5m",

		PDFFallbackPdftotext: true,

		ModelTimeout: 120 * time.Second,
		LogLevel:     "info",
	}
}

// Load starts from Default, applies the YAML file named by CONFIG_FILE if
// set, then environment variables.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv()
	cfg.applyFallbacks()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.APIKey = envOr("DOCQA_API_KEY", c.APIKey)

	c.DataDir = envOr("DATA_DIR", c.DataDir)
	c.UploadDir = envOr("UPLOAD_DIR", c.UploadDir)
	c.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", c.MaxUploadBytes)

	c.ChunkSize = envInt("CHUNK_SIZE", c.ChunkSize)
	c.ChunkOverlap = envInt("CHUNK_OVERLAP", c.ChunkOverlap)
	c.TopK = envInt("TOP_K", c.TopK)
	c.MinLineLength = envInt("MIN_LINE_LENGTH", c.MinLineLength)

	c.Embedder = strings.ToLower(envOr("EMBEDDER", c.Embedder))
	c.EmbeddingModel = envOr("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDim = envInt("EMBEDDING_DIM", c.EmbeddingDim)
	c.EmbeddingBatchSize = envInt("EMBEDDING_BATCH_SIZE", c.EmbeddingBatchSize)
	c.EmbeddingConcurrency = envInt("EMBEDDING_CONCURRENCY", c.EmbeddingConcurrency)
	c.EmbeddingRPS = envFloat("EMBEDDING_RPS", c.EmbeddingRPS)
	c.OpenAIAPIKey = envOr("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = envOr("OPENAI_BASE_URL", c.OpenAIBaseURL)

	c.Answerer = strings.ToLower(envOr("ANSWERER", c.Answerer))
	c.QAURL = envOr("QA_URL", c.QAURL)
	c.QAAPIKey = envOr("QA_API_KEY", c.QAAPIKey)
	c.QAModel = envOr("QA_MODEL", c.QAModel)

	c.IndexStore = strings.ToLower(envOr("INDEX_STORE", c.IndexStore))
	c.RedisAddr = envOr("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = envOr("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = envInt("REDIS_DB", c.RedisDB)
	c.IndexTTL = envDuration("INDEX_TTL", c.IndexTTL)

	c.SessionTTL = envDuration("SESSION_TTL", c.SessionTTL)
	c.SessionSweepSchedule = envOr("SESSION_SWEEP_SCHEDULE", c.SessionSweepSchedule)

	c.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", c.PDFFallbackPdftotext)

	c.ModelTimeout = envDuration("MODEL_TIMEOUT", c.ModelTimeout)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
}

func (c *Config) applyFallbacks() {
	d := Default()
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = d.ChunkSize
	}
	if c.ChunkOverlap < 0 {
		c.ChunkOverlap = d.ChunkOverlap
	}
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.MinLineLength < 0 {
		c.MinLineLength = d.MinLineLength
	}
	if c.EmbeddingDim <= 0 {
		c.EmbeddingDim = d.EmbeddingDim
	}
	if c.EmbeddingBatchSize <= 0 {
		c.EmbeddingBatchSize = d.EmbeddingBatchSize
	}
	if c.EmbeddingConcurrency <= 0 {
		c.EmbeddingConcurrency = d.EmbeddingConcurrency
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.SessionSweepSchedule == "" {
		c.SessionSweepSchedule = d.SessionSweepSchedule
	}
	if c.ModelTimeout <= 0 {
		c.ModelTimeout = d.ModelTimeout
	}
}

func (c Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	switch c.Embedder {
	case "hash":
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for EMBEDDER=openai")
		}
	default:
		return fmt.Errorf("unknown EMBEDDER %q", c.Embedder)
	}
	switch c.Answerer {
	case "lexical", "http":
	case "openai":
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			return fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for ANSWERER=openai")
		}
	default:
		return fmt.Errorf("unknown ANSWERER %q", c.Answerer)
	}
	switch c.IndexStore {
	case "file", "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for INDEX_STORE=redis")
		}
	default:
		return fmt.Errorf("unknown INDEX_STORE %q", c.IndexStore)
	}
	return nil
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
