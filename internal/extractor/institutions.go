package extractor

import (
	"strings"

	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
)

// knownInstitutions is the closed list of canonical court names. Extracted
// court and district values that nearly match one of these (case or
// whitespace variants, stray punctuation) are normalised to the canonical
// string; anything else is kept verbatim.
var knownInstitutions = []string{
	"AĞDAM RAYON MƏHKƏMƏSİ",
	"ŞİRVAN APELİYYASİYA MƏHKƏMƏSİ",
	"ŞİRVAN İNZİBATİ MƏHKƏMƏSİ",
	"ŞİRVAN KOMMERSİYA MƏHKƏMƏSİ",
}

func institutionKey(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', ':', ';', '"', '\'', '«', '»':
			return -1
		}
		return r
	}, s)
	return textnorm.Fold(s)
}

// canonicalInstitution returns the canonical name matching raw, or raw
// unchanged when no known institution matches.
func canonicalInstitution(raw string) string {
	key := institutionKey(raw)
	if key == "" {
		return raw
	}
	for _, name := range knownInstitutions {
		if institutionKey(name) == key {
			return name
		}
	}
	return raw
}

// findKnownInstitution scans text for any canonical court name, tolerating
// case and whitespace variants. It returns the canonical name or "".
func findKnownInstitution(text string) string {
	folded := institutionKey(text)
	for _, name := range knownInstitutions {
		if strings.Contains(folded, institutionKey(name)) {
			return name
		}
	}
	return ""
}
