// Package chunker splits normalised document text into retrieval units.
// Chunks close on paragraph and sentence boundaries where possible, never
// exceed the configured character budget, and consecutive chunks share a
// fixed overlap so a semantic unit spanning a boundary is never entirely
// lost to one chunk.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/elchin-rustamov/courtsearch/internal/document"
)

type Chunker struct {
	maxChars     int
	overlapChars int
}

func New(maxChars, overlapChars int) *Chunker {
	if maxChars <= 0 {
		maxChars = 800
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars*2 >= maxChars {
		overlapChars = maxChars / 4
	}
	return &Chunker{
		maxChars:     maxChars,
		overlapChars: overlapChars,
	}
}

// Split produces the ordered chunk sequence for a document. Input shorter
// than one chunk yields exactly one chunk; empty input yields none.
func (c *Chunker) Split(docID string, text string, meta document.MetadataRecord) []document.Chunk {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	units := splitUnits(text)
	var chunks []document.Chunk
	var current strings.Builder
	curRunes := 0

	flush := func() {
		closed := strings.TrimSpace(current.String())
		if closed == "" {
			return
		}
		chunks = append(chunks, document.Chunk{
			DocumentID: docID,
			Seq:        len(chunks),
			Text:       closed,
			Metadata:   meta,
		})
		current.Reset()
		tail := c.overlapTail(closed)
		current.WriteString(tail)
		curRunes = utf8.RuneCountInString(tail)
	}

	// The budget counts runes, not bytes; the builder length is never
	// compared against it.
	for _, unit := range units {
		for _, piece := range c.hardSplit(unit) {
			sep := 0
			if curRunes > 0 {
				sep = 1
			}
			plen := utf8.RuneCountInString(piece)
			if curRunes+sep+plen > c.maxChars {
				flush()
				// The budget is a hard invariant; the overlap is not. Drop
				// the seeded tail if the piece cannot fit beside it.
				if curRunes > 0 && curRunes+1+plen > c.maxChars {
					current.Reset()
					curRunes = 0
				}
			}
			if curRunes > 0 {
				current.WriteString(" ")
				curRunes++
			}
			current.WriteString(piece)
			curRunes += plen
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		closed := strings.TrimSpace(current.String())
		// Skip a trailing chunk that is nothing but the previous chunk's
		// overlap tail.
		if len(chunks) == 0 || !strings.HasSuffix(chunks[len(chunks)-1].Text, closed) {
			chunks = append(chunks, document.Chunk{
				DocumentID: docID,
				Seq:        len(chunks),
				Text:       closed,
				Metadata:   meta,
			})
		}
	}
	return chunks
}

// overlapTail returns the trailing portion of a closed chunk, extended left
// to a word start so the overlap is at least overlapChars when the chunk is
// long enough.
func (c *Chunker) overlapTail(closed string) string {
	if c.overlapChars == 0 {
		return ""
	}
	runes := []rune(closed)
	if len(runes) <= c.overlapChars {
		return closed
	}
	start := len(runes) - c.overlapChars
	for start > 0 && runes[start-1] != ' ' {
		start--
	}
	return strings.TrimSpace(string(runes[start:]))
}

// hardSplit cuts a single unit that alone exceeds the budget into pieces
// that fit. Long unbroken runs happen in scanned documents with missing
// punctuation.
func (c *Chunker) hardSplit(unit string) []string {
	budget := c.maxChars - c.overlapChars
	if utf8.RuneCountInString(unit) <= budget {
		return []string{unit}
	}
	words := strings.Fields(unit)
	var pieces []string
	var b strings.Builder
	bRunes := 0
	for _, w := range words {
		wlen := utf8.RuneCountInString(w)
		if bRunes > 0 && bRunes+1+wlen > budget {
			pieces = append(pieces, b.String())
			b.Reset()
			bRunes = 0
		}
		if bRunes > 0 {
			b.WriteString(" ")
			bRunes++
		}
		// A single word longer than the budget gets cut mid-word.
		for wlen > budget {
			runes := []rune(w)
			pieces = append(pieces, string(runes[:budget]))
			w = string(runes[budget:])
			wlen -= budget
		}
		b.WriteString(w)
		bRunes += wlen
	}
	if bRunes > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}

// splitUnits breaks text into sentences, treating paragraph breaks as hard
// boundaries and sentence-final punctuation as soft ones.
func splitUnits(text string) []string {
	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.Join(strings.Fields(para), " ")
		if para == "" {
			continue
		}
		var b strings.Builder
		for _, r := range para {
			b.WriteRune(r)
			if r == '.' || r == '!' || r == '?' {
				if s := strings.TrimSpace(b.String()); s != "" {
					units = append(units, s)
				}
				b.Reset()
			}
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			units = append(units, s)
		}
	}
	return units
}
