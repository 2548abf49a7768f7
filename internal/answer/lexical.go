package answer

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/dgallion1/docqa/internal/embedding"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+(\s+|$)|\n+`)

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"of": true, "in": true, "on": true, "to": true, "and": true, "or": true, "for": true,
	"what": true, "who": true, "when": true, "where": true, "which": true, "why": true, "how": true,
	"do": true, "does": true, "did": true, "it": true, "its": true, "this": true, "that": true,
	"by": true, "with": true, "as": true, "at": true, "be": true, "s": true,
}

// Lexical answers offline by returning the context sentence with the highest
// Ochiai overlap of content words with the question.
type Lexical struct{}

func (Lexical) Model() string { return "lexical-overlap" }

func (Lexical) Infer(ctx context.Context, question, contextText string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	q := termSet(question)
	if len(q) == 0 {
		return Result{}, nil
	}

	var best Result
	for _, sent := range Sentences(contextText) {
		s := termSet(sent)
		if len(s) == 0 {
			continue
		}
		shared := 0
		for t := range q {
			if s[t] {
				shared++
			}
		}
		score := float64(shared) / math.Sqrt(float64(len(q))*float64(len(s)))
		if score > best.Score {
			best = Result{Text: sent, Score: score}
		}
	}
	return best, nil
}

// Sentences splits text at sentence punctuation and newlines, keeping the
// punctuation with its sentence.
func Sentences(text string) []string {
	var out []string
	prev := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		end := loc[1]
		if s := strings.TrimSpace(text[prev:end]); s != "" {
			out = append(out, s)
		}
		prev = end
	}
	if s := strings.TrimSpace(text[prev:]); s != "" {
		out = append(out, s)
	}
	return out
}

func termSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range embedding.Tokenize(text) {
		if !stopwords[tok] {
			set[tok] = true
		}
	}
	return set
}
