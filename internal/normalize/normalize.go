// Package normalize cleans raw extracted text before chunking.
//
// Cleaning is an ordered list of independent line filters. A line is trimmed,
// then dropped if any filter rejects it. Survivors are rejoined with "\n".
package normalize

import (
	"strings"
	"unicode/utf8"
)

// DefaultMinLineLength is the shortest line kept by Default.
const DefaultMinLineLength = 10

// Filter reports whether a trimmed line should be dropped.
type Filter func(line string) bool

// Normalizer applies its filters in order.
type Normalizer struct {
	Filters []Filter
}

// Default returns the standard rules: page-number lines, "references" /
// "abstract" headers, and lines shorter than DefaultMinLineLength.
func Default() *Normalizer {
	return New(DefaultMinLineLength)
}

// New returns the standard rules with a custom minimum line length.
func New(minLineLength int) *Normalizer {
	if minLineLength <= 0 {
		minLineLength = DefaultMinLineLength
	}
	return &Normalizer{
		Filters: []Filter{
			DigitsOnly,
			BoilerplatePrefix("references", "abstract"),
			MinLength(minLineLength),
		},
	}
}

// Normalize cleans raw text line by line.
func (n *Normalizer) Normalize(raw string) string {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if n.drop(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func (n *Normalizer) drop(line string) bool {
	for _, f := range n.Filters {
		if f(line) {
			return true
		}
	}
	return false
}

// Normalize applies the default rules.
func Normalize(raw string) string {
	return Default().Normalize(raw)
}

// DigitsOnly drops lines made only of ASCII digits (page numbers).
func DigitsOnly(line string) bool {
	if line == "" {
		return false
	}
	for i := 0; i < len(line); i++ {
		if line[i] < '0' || line[i] > '9' {
			return false
		}
	}
	return true
}

// BoilerplatePrefix drops lines whose lower-cased form starts with any prefix.
// Numbered headers such as "5. References" are not matched.
func BoilerplatePrefix(prefixes ...string) Filter {
	return func(line string) bool {
		lower := strings.ToLower(line)
		for _, p := range prefixes {
			if strings.HasPrefix(lower, p) {
				return true
			}
		}
		return false
	}
}

// MinLength drops lines with fewer than n characters.
func MinLength(n int) Filter {
	return func(line string) bool {
		return utf8.RuneCountInString(line) < n
	}
}
