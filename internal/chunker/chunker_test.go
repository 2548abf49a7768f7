package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/docqa/internal/normalize"
)

func TestSplit_EmptyInput(t *testing.T) {
	if got := Split("", DefaultConfig()); len(got) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(got))
	}
	if got := Split("  \n\n \t", DefaultConfig()); len(got) != 0 {
		t.Errorf("expected 0 chunks for whitespace, got %d", len(got))
	}
}

func TestSplit_SmallTextFitsOneChunk(t *testing.T) {
	text := "A short paragraph.\n\nAnother short paragraph."
	got := Split(text, DefaultConfig())
	if len(got) != 1 {
		t.Fatalf("expected 1 chunk, got %d: %q", len(got), got)
	}
	if got[0] != text {
		t.Errorf("expected %q, got %q", text, got[0])
	}
}

func TestSplit_NoSeparatorsWindowsWithOverlap(t *testing.T) {
	text := strings.Repeat("abcdefghij", 100) // 1000 chars, no separators
	cfg := Config{Size: 500, Overlap: 100}
	got := Split(text, cfg)

	if len(got) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(got))
	}
	for i, c := range got {
		if n := utf8.RuneCountInString(c); n > 500 {
			t.Errorf("chunk %d: length %d exceeds 500", i, n)
		}
	}

	// Chunk 2 must begin inside the last 100 characters of chunk 1.
	start1 := 0
	start2 := 400
	if text[start2:start2+len(got[1])] != got[1] {
		t.Fatalf("chunk 2 does not start at offset %d", start2)
	}
	end1 := start1 + len(got[0])
	if start2 < end1-100 || start2 >= end1 {
		t.Errorf("chunk 2 starts at %d, expected within [%d, %d)", start2, end1-100, end1)
	}
	if got[0][len(got[0])-100:] != got[1][:100] {
		t.Error("expected 100 characters of shared context between chunks 1 and 2")
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	p1 := strings.Repeat("alpha ", 50) // 300 chars
	p2 := strings.Repeat("beta ", 50)  // 250 chars
	text := strings.TrimSpace(p1) + "\n\n" + strings.TrimSpace(p2)

	got := Split(text, Config{Size: 400, Overlap: 0})
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != strings.TrimSpace(p1) {
		t.Errorf("chunk 0: expected first paragraph, got %q", got[0])
	}
	if got[1] != strings.TrimSpace(p2) {
		t.Errorf("chunk 1: expected second paragraph, got %q", got[1])
	}
}

func TestSplit_SentenceFallback(t *testing.T) {
	sentence := "The quick brown fox jumps over the lazy dog"
	text := strings.Repeat(sentence+".", 30)
	cfg := Config{Size: 200, Overlap: 50}
	got := Split(text, cfg)
	if len(got) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(got))
	}
	for i, c := range got {
		if n := utf8.RuneCountInString(c); n > cfg.Size {
			t.Errorf("chunk %d: length %d exceeds %d", i, n, cfg.Size)
		}
		// Sentence cuts keep the period at the start of the next piece.
		if i > 0 && !strings.HasPrefix(c, ".") {
			t.Errorf("chunk %d: expected to start at a sentence boundary, got %q", i, c)
		}
	}
}

func TestSplit_OverlapBetweenConsecutiveChunks(t *testing.T) {
	var words []string
	for i := 0; i < 400; i++ {
		words = append(words, "w"+strings.Repeat("x", i%7))
	}
	text := strings.Join(words, " ")
	cfg := Config{Size: 120, Overlap: 40}
	got := Split(text, cfg)
	if len(got) < 3 {
		t.Fatalf("expected several chunks, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		prevWords := strings.Fields(got[i-1])
		first := strings.Fields(got[i])[0]
		found := false
		for _, w := range prevWords[len(prevWords)/2:] {
			if w == first {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("chunk %d: expected to start with a word from the tail of chunk %d", i, i-1)
		}
	}
}

func TestSplit_LengthBound(t *testing.T) {
	text := strings.Repeat("Lorem ipsum dolor sit amet, consectetur adipiscing elit.\n", 80) +
		"\n\n" + strings.Repeat("z", 1300) + "\n\n" + strings.Repeat("Sed do eiusmod tempor. ", 40)
	cfg := DefaultConfig()
	for i, c := range Split(text, cfg) {
		if n := utf8.RuneCountInString(c); n > cfg.Size {
			t.Errorf("chunk %d: length %d exceeds %d", i, n, cfg.Size)
		}
	}
}

func TestSplit_ReconstructsNormalizedText(t *testing.T) {
	var cats, domestic strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&cats, "Cat fact %d is that cats are small carnivorous mammals. ", i)
	}
	for i := 0; i < 15; i++ {
		fmt.Fprintf(&domestic, "Domestic note %d says cats are valued for companionship. ", i)
	}
	raw := "1\nIntroduction to felines\n" + cats.String() + "\nReferences\n" + domestic.String() + "\n42\n"
	text := normalize.Normalize(raw)
	chunks := Split(text, DefaultConfig())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	// Every chunk is a substring of the text, found in order, and together the
	// chunks cover every non-whitespace character.
	covered := make([]bool, len(text))
	from := 0
	for i, c := range chunks {
		idx := strings.Index(text[from:], c)
		if idx < 0 {
			t.Fatalf("chunk %d not found in order: %q", i, c)
		}
		start := from + idx
		for j := start; j < start+len(c); j++ {
			covered[j] = true
		}
		from = start + 1
	}
	for i, r := range text {
		if !covered[i] && r != ' ' && r != '\n' {
			t.Fatalf("character %d (%q) not covered by any chunk", i, r)
		}
	}
}

func TestConfig_DefaultFallback(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.Size != 500 || cfg.Overlap != 0 || len(cfg.Separators) != 4 {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	bad := Config{Size: 100, Overlap: 150}.withDefaults()
	if bad.Overlap != 20 {
		t.Errorf("expected overlap clamped to 20, got %d", bad.Overlap)
	}
}
