package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/elchin-rustamov/courtsearch/internal/document"
)

func TestSplitEmpty(t *testing.T) {
	c := New(800, 120)
	if chunks := c.Split("doc-1", "   \n\n  ", document.NewMetadataRecord()); len(chunks) != 0 {
		t.Errorf("expected no chunks for blank input, got %d", len(chunks))
	}
}

func TestSplitShortInputSingleChunk(t *testing.T) {
	c := New(800, 120)
	text := "Məhkəmə qərar qəbul etdi. İddia təmin edildi."
	chunks := c.Split("doc-1", text, document.NewMetadataRecord())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want %q", chunks[0].Text, text)
	}
	if chunks[0].Seq != 0 {
		t.Errorf("seq = %d, want 0", chunks[0].Seq)
	}
	if chunks[0].DocumentID != "doc-1" {
		t.Errorf("document id = %q, want doc-1", chunks[0].DocumentID)
	}
}

func TestSplitRespectsMaxChars(t *testing.T) {
	c := New(200, 40)
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Məhkəmə iclası davam etdi və tərəflər dinlənildi. ")
	}
	chunks := c.Split("doc-1", b.String(), document.NewMetadataRecord())

	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > 200 {
			t.Errorf("chunk %d has %d runes, exceeds budget 200", ch.Seq, n)
		}
	}
}

func TestSplitSequentialNumbering(t *testing.T) {
	c := New(150, 30)
	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("Qərarın icrası barədə göstəriş verildi. ")
	}
	chunks := c.Split("doc-1", b.String(), document.NewMetadataRecord())

	for i, ch := range chunks {
		if ch.Seq != i {
			t.Errorf("chunk at position %d has seq %d", i, ch.Seq)
		}
	}
}

func TestSplitOverlap(t *testing.T) {
	c := New(200, 40)
	var b strings.Builder
	for i := 0; i < 50; i++ {
		b.WriteString("Tərəflərin izahatları protokola daxil edildi və araşdırıldı. ")
	}
	chunks := c.Split("doc-1", b.String(), document.NewMetadataRecord())

	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		shared := sharedPrefixWithSuffix(chunks[i-1].Text, chunks[i].Text)
		if shared < 40 {
			t.Errorf("chunks %d/%d share %d runes of overlap, want >= 40", i-1, i, shared)
		}
	}
}

func TestSplitHardBreaksOversizedRun(t *testing.T) {
	c := New(100, 20)
	// One unbroken run with no sentence punctuation at all.
	text := strings.Repeat("qərardadnaməsi ", 40)
	chunks := c.Split("doc-1", text, document.NewMetadataRecord())

	if len(chunks) < 2 {
		t.Fatalf("expected the run to be split, got %d chunks", len(chunks))
	}
	for _, ch := range chunks {
		if n := utf8.RuneCountInString(ch.Text); n > 100 {
			t.Errorf("chunk %d has %d runes, exceeds budget 100", ch.Seq, n)
		}
	}
}

func TestSplitBudgetCountsRunesNotBytes(t *testing.T) {
	// Every letter here is two bytes in UTF-8. Three sentences of 12 runes
	// each fit a 40-rune budget together; byte-based accounting would split
	// them early.
	c := New(40, 0)
	sentence := strings.Repeat("ə", 11) + "."
	text := sentence + " " + sentence + " " + sentence

	chunks := c.Split("doc-1", text, document.NewMetadataRecord())
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk of %d runes, got %d chunks", utf8.RuneCountInString(text), len(chunks))
	}
	if chunks[0].Text != text {
		t.Errorf("chunk text = %q, want the whole input", chunks[0].Text)
	}
}

func TestSplitCarriesMetadata(t *testing.T) {
	c := New(800, 120)
	meta := document.NewMetadataRecord()
	meta.Judge = "Əli Məmmədov"
	meta.Year = "2023"

	chunks := c.Split("doc-1", "Qısa mətn.", meta)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Metadata.Judge != "Əli Məmmədov" {
		t.Errorf("judge = %q, want Əli Məmmədov", chunks[0].Metadata.Judge)
	}
	if chunks[0].Metadata.Year != "2023" {
		t.Errorf("year = %q, want 2023", chunks[0].Metadata.Year)
	}
}

func TestNewClampsBadConfig(t *testing.T) {
	c := New(100, 80)
	if c.overlapChars*2 >= c.maxChars {
		t.Errorf("overlap %d not clamped below half of budget %d", c.overlapChars, c.maxChars)
	}
	c = New(0, -5)
	if c.maxChars <= 0 || c.overlapChars < 0 {
		t.Errorf("defaults not applied: max=%d overlap=%d", c.maxChars, c.overlapChars)
	}
}

// sharedPrefixWithSuffix returns the rune length of the longest prefix of
// next that is also a suffix of prev.
func sharedPrefixWithSuffix(prev, next string) int {
	prevRunes := []rune(prev)
	nextRunes := []rune(next)
	max := len(prevRunes)
	if len(nextRunes) < max {
		max = len(nextRunes)
	}
	for n := max; n > 0; n-- {
		if string(prevRunes[len(prevRunes)-n:]) == string(nextRunes[:n]) {
			return n
		}
	}
	return 0
}
