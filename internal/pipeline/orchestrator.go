package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/dgallion1/docqa/internal/answer"
	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/embedding"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/normalize"
	"github.com/dgallion1/docqa/internal/parser"
	"github.com/dgallion1/docqa/internal/retriever"
)

// DefaultSession is the session used when the caller has no session of its own.
const DefaultSession = "default"

var (
	// ErrNoDocumentIndexed is returned when a question arrives before any
	// document was indexed for the session.
	ErrNoDocumentIndexed = fmt.Errorf("no document indexed: %w", index.ErrIndexMissing)
	// ErrInvalidSession is returned for session IDs that cannot name an index.
	ErrInvalidSession = errors.New("invalid session id")
)

// Deps are the capabilities the orchestrator calls out to.
type Deps struct {
	Embedder embedding.Embedder
	Answerer answer.Answerer
	Store    index.Store
}

// Orchestrator wires ingestion and question answering.
type Orchestrator struct {
	cfg        config.Config
	deps       Deps
	retriever  *retriever.Retriever
	normalizer *normalize.Normalizer
	chunkCfg   chunker.Config
	parserOpts parser.Options
	sessions   *Sessions
	log        *slog.Logger

	cronMu sync.Mutex
	cron   *cron.Cron
}

// NewOrchestrator creates the pipeline. Call Start to enable session eviction.
func NewOrchestrator(cfg config.Config, deps Deps, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		deps:       deps,
		retriever:  retriever.New(deps.Embedder),
		normalizer: normalize.New(cfg.MinLineLength),
		chunkCfg: chunker.Config{
			Size:    cfg.ChunkSize,
			Overlap: cfg.ChunkOverlap,
		},
		parserOpts: parser.Options{PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
		sessions:   NewSessions(cfg.SessionTTL),
		log:        log,
	}
}

// Start schedules idle-session eviction.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.cronMu.Lock()
	defer o.cronMu.Unlock()
	if o.cron != nil {
		return nil
	}
	c := cron.New()
	if _, err := c.AddFunc(o.cfg.SessionSweepSchedule, func() { o.Sweep(ctx) }); err != nil {
		return fmt.Errorf("schedule session sweep %q: %w", o.cfg.SessionSweepSchedule, err)
	}
	c.Start()
	o.cron = c
	o.log.Info("session sweep scheduled", "schedule", o.cfg.SessionSweepSchedule, "ttl", o.cfg.SessionTTL)
	return nil
}

// Stop halts the eviction schedule and waits for a running sweep.
func (o *Orchestrator) Stop() {
	o.cronMu.Lock()
	c := o.cron
	o.cron = nil
	o.cronMu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}

// Sweep evicts idle sessions and deletes their indices.
func (o *Orchestrator) Sweep(ctx context.Context) int {
	evicted := o.sessions.Cleanup()
	o.dropEvicted(ctx, evicted)
	return len(evicted)
}

// dropEvicted deletes the index and upload of sessions already removed from
// the registry. An ID that was indexed again in the meantime keeps its index.
func (o *Orchestrator) dropEvicted(ctx context.Context, evicted []*Session) {
	for _, old := range evicted {
		old.op.Lock()
		o.removeUpload(old.swapUpload(""))
		old.op.Unlock()

		cur := o.sessions.GetOrCreate(old.ID)
		cur.op.Lock()
		if cur.status() == StatusReady {
			cur.op.Unlock()
			o.log.Info("session reindexed during sweep, keeping index", "session", old.ID)
			continue
		}
		err := o.deps.Store.Delete(ctx, old.ID)
		o.sessions.RemoveIf(cur)
		cur.op.Unlock()
		if err != nil {
			o.log.Warn("delete evicted index failed", "session", old.ID, "error", err)
			continue
		}
		o.log.Info("session evicted", "session", old.ID)
	}
}

// Evict removes a session, its index and its uploaded file immediately.
func (o *Orchestrator) Evict(ctx context.Context, sessionID string) error {
	if !index.ValidKey(sessionID) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	sess := o.sessions.Get(sessionID)
	if sess != nil {
		sess.op.Lock()
		defer sess.op.Unlock()
	}
	if err := o.deps.Store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete index: %w", err)
	}
	if sess != nil {
		o.removeUpload(sess.swapUpload(""))
		o.sessions.RemoveIf(sess)
	}
	o.log.Info("session evicted", "session", sessionID)
	return nil
}

func (o *Orchestrator) removeUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		o.log.Warn("remove upload failed", "path", path, "error", err)
	}
}

// Session returns a snapshot of the session state.
func (o *Orchestrator) Session(sessionID string) (SessionSnapshot, bool) {
	sess := o.sessions.Get(sessionID)
	if sess == nil {
		return SessionSnapshot{}, false
	}
	return sess.Snapshot(), true
}

// SessionCount returns the number of tracked sessions.
func (o *Orchestrator) SessionCount() int {
	return o.sessions.Len()
}
