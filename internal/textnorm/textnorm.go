// Package textnorm provides text normalisation for scanned Azerbaijani legal
// documents: UTF-8 sanitisation, whitespace collapsing, case folding that
// respects the dotted/dotless i distinction, and tokenisation with stop-word
// removal.
package textnorm

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"və": {}, "ilə": {}, "üçün": {}, "bu": {}, "o": {}, "ki": {},
	"da": {}, "də": {}, "isə": {}, "kimi": {}, "olan": {}, "olaraq": {},
	"üzrə": {}, "daha": {}, "ən": {}, "hər": {}, "bir": {}, "the": {},
	"a": {}, "an": {}, "and": {}, "of": {}, "in": {}, "on": {},
}

// Sanitize drops invalid UTF-8 byte sequences from s, keeping everything
// else intact. OCR output occasionally carries torn multi-byte runes.
func Sanitize(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	v := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		v = append(v, r)
	}
	return string(v)
}

// Normalize produces the canonical form of a document's text: valid UTF-8,
// unix line endings, horizontal whitespace collapsed within lines, and runs
// of blank lines reduced to a single blank line. Line structure is kept
// because field extraction anchors on line boundaries.
func Normalize(s string) string {
	s = Sanitize(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := 0
	for _, line := range lines {
		collapsed := strings.Join(strings.Fields(line), " ")
		if collapsed == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		out = append(out, collapsed)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// Fold lower-cases s for comparison purposes. The Azerbaijani alphabet pairs
// 'İ' with 'i' and 'I' with 'ı'; Go's generic lowering maps 'İ' to a dotted
// combining form, so those two are handled explicitly.
func Fold(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 'İ':
			b.WriteRune('i')
		case 'I':
			b.WriteRune('ı')
		default:
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// FoldEqual reports whether two strings are equal after folding and
// whitespace collapsing.
func FoldEqual(a, b string) bool {
	return Fold(strings.Join(strings.Fields(a), " ")) == Fold(strings.Join(strings.Fields(b), " "))
}

// Tokenize breaks text into folded word tokens, dropping stop-words and
// tokens shorter than two runes.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		folded := Fold(word)
		if _, isStop := stopWords[folded]; isStop {
			continue
		}
		tokens = append(tokens, folded)
	}
	return tokens
}

// HasPrefixFold reports whether token begins with prefix under folding.
// Azerbaijani is agglutinative, so "Kamranın" matches the name "Kamran".
func HasPrefixFold(token, prefix string) bool {
	return strings.HasPrefix(Fold(token), Fold(prefix))
}
