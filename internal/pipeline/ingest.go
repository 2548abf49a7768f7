package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/parser"
)

// IngestResult summarizes a completed ingestion.
type IngestResult struct {
	Session     string `json:"session_id"`
	Filename    string `json:"filename"`
	Chunks      int    `json:"chunks"`
	ContentHash string `json:"content_hash"`
	Model       string `json:"embedding_model"`
	DurationMs  int64  `json:"duration_ms"`
}

// Ingest extracts, normalizes, chunks and embeds the document at path and
// replaces the session's index with the result. Nothing is written unless
// every phase succeeds. An empty document produces an empty index. The file
// at path belongs to the caller and is never removed.
func (o *Orchestrator) Ingest(ctx context.Context, sessionID, path string) (IngestResult, error) {
	return o.ingest(ctx, sessionID, path, false)
}

// IngestUpload is Ingest for a stored upload the session takes ownership of.
// The file is removed if ingestion fails, when a later upload replaces it, and
// when the session is evicted.
func (o *Orchestrator) IngestUpload(ctx context.Context, sessionID, path string) (IngestResult, error) {
	return o.ingest(ctx, sessionID, path, true)
}

func (o *Orchestrator) ingest(ctx context.Context, sessionID, path string, owned bool) (res IngestResult, err error) {
	if owned {
		defer func() {
			if err != nil {
				o.removeUpload(path)
			}
		}()
	}
	if !index.ValidKey(sessionID) {
		return IngestResult{}, fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	start := time.Now()
	filename := filepath.Base(path)
	log := o.log.With("session", sessionID, "filename", filename)

	sess := o.sessions.GetOrCreate(sessionID)
	sess.op.Lock()
	defer sess.op.Unlock()
	prev := sess.status()

	// Phase 1: Parse
	sess.SetStatus(StatusParsing, "parsing")
	raw, err := parser.ExtractText(path, o.parserOpts)
	if err != nil {
		log.Error("extract failed", "error", err)
		sess.Fail(prev, "parsing", err)
		return IngestResult{}, fmt.Errorf("extract %s: %w", filename, err)
	}
	hash := ContentHashHex([]byte(raw))

	// Phase 2: Normalize and chunk
	sess.SetStatus(StatusChunking, "chunking")
	text := o.normalizer.Normalize(raw)
	chunks := chunker.Split(text, o.chunkCfg)
	log.Info("chunked document", "raw_chars", len(raw), "clean_chars", len(text), "chunks", len(chunks))
	if len(chunks) == 0 {
		log.Warn("no extractable content, indexing empty document")
	}

	// Phase 3: Embed
	sess.SetStatus(StatusEmbedding, "embedding")
	idx, err := index.Build(ctx, o.deps.Embedder, chunks, filename)
	if err != nil {
		log.Error("embedding failed", "error", err)
		sess.Fail(prev, "embedding", err)
		return IngestResult{}, err
	}
	log.Info("embedded chunks", "chunks", idx.Len(), "model", idx.Header.Model, "dimension", idx.Header.Dimension)

	// Phase 4: Store
	sess.SetStatus(StatusStoring, "storing")
	if err := o.deps.Store.Save(ctx, sessionID, idx); err != nil {
		log.Error("save index failed", "error", err)
		sess.Fail(prev, "storing", err)
		return IngestResult{}, fmt.Errorf("save index: %w", err)
	}

	sess.Indexed(filename, hash, idx.Len())
	upload := ""
	if owned {
		upload = path
	}
	if old := sess.swapUpload(upload); old != path {
		o.removeUpload(old)
	}
	res = IngestResult{
		Session:     sessionID,
		Filename:    filename,
		Chunks:      idx.Len(),
		ContentHash: hash,
		Model:       idx.Header.Model,
		DurationMs:  time.Since(start).Milliseconds(),
	}
	log.Info("document indexed", "chunks", res.Chunks, "duration_ms", res.DurationMs)
	return res, nil
}
