package answer

import (
	"regexp"
	"strings"
)

const maxSpanLength = 300

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

var codeBlockRe = regexp.MustCompile("(?s)^```(?:\\w+)?\\s*(.*?)\\s*```$")

// CleanSpan strips code fences, surrounding quotes and a leading "Answer:"
// label from a model reply.
func CleanSpan(s string) string {
	s = strings.TrimSpace(s)
	if m := codeBlockRe.FindStringSubmatch(s); len(m) > 1 {
		s = m[1]
	}
	if len(s) >= 7 && strings.EqualFold(s[:7], "answer:") {
		s = strings.TrimSpace(s[7:])
	}
	s = strings.Trim(s, "\"'`")
	return strings.TrimSpace(s)
}

// ValidateSpan returns the span as it appears in contextText, or false when
// the span is empty, too long, looks like an injected instruction, or is not a
// case-insensitive substring of the context.
func ValidateSpan(span, contextText string) (string, bool) {
	span = strings.TrimSpace(span)
	if span == "" || len(span) > maxSpanLength {
		return "", false
	}
	if injectionPattern.MatchString(span) {
		return "", false
	}
	if i := strings.Index(contextText, span); i >= 0 {
		return span, true
	}
	// Lower-casing can change byte lengths outside ASCII, so only map the
	// position back when it cannot.
	lc, ls := strings.ToLower(contextText), strings.ToLower(span)
	i := strings.Index(lc, ls)
	if i < 0 {
		return "", false
	}
	if len(lc) == len(contextText) && len(ls) == len(span) {
		return contextText[i : i+len(span)], true
	}
	return span, true
}
