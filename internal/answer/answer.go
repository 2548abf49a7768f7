// Package answer selects an answer span for a question from retrieved context.
package answer

import (
	"context"
	"strings"
	"time"

	"github.com/dgallion1/docqa/internal/stats"
)

// NoAnswer is returned when the context is empty or the model finds no span.
const NoAnswer = "no answer found"

// Result is a model's chosen span and its confidence.
type Result struct {
	Text  string  `json:"answer"`
	Score float64 `json:"score"`
}

// Answerer extracts an answer for question from contextText.
type Answerer interface {
	Infer(ctx context.Context, question, contextText string) (Result, error)
}

// Resolve runs a, skipping the model when there is no context. An empty span
// becomes NoAnswer with score 0.
func Resolve(ctx context.Context, a Answerer, question, contextText string) (Result, error) {
	if strings.TrimSpace(contextText) == "" {
		return Result{Text: NoAnswer}, nil
	}
	res, err := a.Infer(ctx, question, contextText)
	if err != nil {
		return Result{}, err
	}
	res.Text = strings.TrimSpace(res.Text)
	if res.Text == "" {
		return Result{Text: NoAnswer}, nil
	}
	return res, nil
}

// Answer returns only the answer text.
func Answer(ctx context.Context, a Answerer, question, contextText string) (string, error) {
	res, err := Resolve(ctx, a, question, contextText)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// Instrumented records the latency of every Infer call.
type Instrumented struct {
	Answerer
	Stats *stats.Latency
}

func NewInstrumented(a Answerer, s *stats.Latency) *Instrumented {
	return &Instrumented{Answerer: a, Stats: s}
}

func (i *Instrumented) Infer(ctx context.Context, question, contextText string) (Result, error) {
	start := time.Now()
	res, err := i.Answerer.Infer(ctx, question, contextText)
	i.Stats.Since(start, err)
	return res, err
}
