package chunker

import (
	"strings"
	"unicode/utf8"
)

// Config controls chunking behavior. Sizes are in characters.
type Config struct {
	Size       int      // Maximum chunk length.
	Overlap    int      // Characters shared by consecutive chunks.
	Separators []string // Boundaries to try, coarsest first.
}

// DefaultSeparators are tried in order: paragraph, line, sentence, word.
var DefaultSeparators = []string{"\n\n", "\n", ".", " "}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:       500,
		Overlap:    100,
		Separators: DefaultSeparators,
	}
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = 500
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap >= c.Size {
		c.Overlap = c.Size / 5
	}
	if len(c.Separators) == 0 {
		c.Separators = DefaultSeparators
	}
	return c
}

// Split breaks text into overlapping passages of at most cfg.Size characters,
// cutting at the coarsest separator available. A piece with no separator left
// is cut into fixed windows. Empty input yields no chunks.
func Split(text string, cfg Config) []string {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, c := range cfg.split(text, cfg.Separators) {
		c = strings.TrimSpace(c)
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (c Config) split(text string, separators []string) []string {
	sep := ""
	var rest []string
	for i, s := range separators {
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}
	if sep == "" {
		return c.windows(text)
	}

	var chunks []string
	var good []string
	for _, piece := range splitKeepSeparator(text, sep) {
		if runeLen(piece) < c.Size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, c.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, c.windows(piece)...)
		} else {
			chunks = append(chunks, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, c.merge(good)...)
	}
	return chunks
}

// merge packs small pieces into chunks up to Size, seeding each new chunk with
// trailing pieces of the previous one totalling at most Overlap characters.
func (c Config) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, p := range pieces {
		n := runeLen(p)
		if total+n > c.Size && len(current) > 0 {
			if doc := strings.Join(current, ""); strings.TrimSpace(doc) != "" {
				chunks = append(chunks, doc)
			}
			for len(current) > 0 && (total > c.Overlap || total+n > c.Size) {
				total -= runeLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}
	if doc := strings.Join(current, ""); strings.TrimSpace(doc) != "" {
		chunks = append(chunks, doc)
	}
	return chunks
}

// windows cuts separator-free text into Size-character windows that step
// forward by Size-Overlap.
func (c Config) windows(text string) []string {
	runes := []rune(text)
	if len(runes) <= c.Size {
		return []string{text}
	}
	step := c.Size - c.Overlap
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.Size
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

// splitKeepSeparator splits on sep, keeping sep at the start of every piece
// after the first.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
