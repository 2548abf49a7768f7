package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgallion1/docqa/internal/answer"
	"github.com/dgallion1/docqa/internal/index"
	"github.com/dgallion1/docqa/internal/retriever"
)

// Answer is the result of a question with the passages it was drawn from.
type Answer struct {
	Text    string          `json:"answer"`
	Score   float64         `json:"score"`
	Sources []retriever.Hit `json:"sources"`
}

// AnswerQuestion answers question from the session's index.
func (o *Orchestrator) AnswerQuestion(ctx context.Context, sessionID, question string) (string, error) {
	a, err := o.Ask(ctx, sessionID, question, 0)
	if err != nil {
		return "", err
	}
	return a.Text, nil
}

// Ask loads the session's index, retrieves the topK closest chunks and
// extracts an answer from them. topK <= 0 uses the configured default.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, question string, topK int) (Answer, error) {
	if !index.ValidKey(sessionID) {
		return Answer{}, fmt.Errorf("%w: %q", ErrInvalidSession, sessionID)
	}
	if topK <= 0 {
		topK = o.cfg.TopK
	}

	sess := o.sessions.Get(sessionID)
	if sess != nil {
		sess.op.Lock()
		defer sess.op.Unlock()
	}

	idx, err := o.deps.Store.Load(ctx, sessionID)
	if errors.Is(err, index.ErrIndexMissing) {
		return Answer{}, fmt.Errorf("session %q: %w", sessionID, ErrNoDocumentIndexed)
	}
	if err != nil {
		return Answer{}, fmt.Errorf("load index: %w", err)
	}
	if err := idx.CheckEmbedder(o.deps.Embedder); err != nil {
		return Answer{}, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if sess == nil {
		// Index outlived the registry, e.g. across a restart.
		sess = o.sessions.GetOrCreate(sessionID)
		if sess.status() == StatusEmpty {
			sess.Indexed(idx.Header.Source, "", idx.Len())
		}
	}

	hits, err := o.retriever.Search(ctx, question, idx, topK)
	if err != nil {
		return Answer{}, err
	}
	res, err := answer.Resolve(ctx, o.deps.Answerer, question, retriever.JoinHits(hits))
	if err != nil {
		return Answer{}, fmt.Errorf("answer: %w", err)
	}
	sess.Asked()

	if hits == nil {
		hits = []retriever.Hit{}
	}
	o.log.Debug("question answered", "session", sessionID, "hits", len(hits), "score", res.Score)
	return Answer{Text: res.Text, Score: res.Score, Sources: hits}, nil
}
