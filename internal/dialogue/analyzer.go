// Package dialogue turns free-form Azerbaijani utterances into structured
// queries. The analyzer maps utterance tokens onto known facet values; the
// controller runs the clarification loop when a mention matches more than
// one value.
package dialogue

import (
	"regexp"
	"sort"
	"strings"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
)

// Analysis is the analyzer's reading of one utterance: filters it is sure
// about, fields where several facet values fit the mention, and the text to
// rank semantically.
type Analysis struct {
	Filters   map[string]string
	Ambiguous map[string][]string
	FreeText  string
}

// caseTypeKeywords map utterance stems onto case type values. The stems are
// matched by folded prefix so inflected forms count too.
var caseTypeKeywords = map[string]string{
	"mülki":      "mülki",
	"inzibati":   "inzibati",
	"kommersiya": "kommersiya",
	"cinayət":    "cinayət",
}

var utteranceYearRe = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)\d{2})(?:[^0-9]|$)`)

type analyzer struct {
	cfg config.DialogueConfig
}

// analyze matches the utterance against the current facet values. A facet
// value is a candidate when any of its words is a folded prefix of an
// utterance token, so "Kamranın qərarları" finds both "Kamran" and
// "Kamran Əliyev". Fields already fixed by existing filters are skipped.
func (a analyzer) analyze(utterance string, facetValues map[string][]string, fixed map[string]string) Analysis {
	analysis := Analysis{
		Filters:   make(map[string]string),
		Ambiguous: make(map[string][]string),
		FreeText:  strings.TrimSpace(utterance),
	}
	tokens := textnorm.Tokenize(utterance)
	if len(tokens) == 0 {
		return analysis
	}

	for _, field := range document.FacetFields {
		if _, done := fixed[field]; done {
			continue
		}
		candidates, dominant := a.matchField(tokens, facetValues[field])
		switch {
		case len(candidates) == 1 || (len(candidates) > 1 && dominant):
			analysis.Filters[field] = candidates[0]
		case len(candidates) > 1 && len(candidates) <= a.maxCandidates():
			analysis.Ambiguous[field] = candidates
		}
		// More candidates than the cap means the mention is too generic to
		// be a usable signal; it stays part of the semantic text instead.
	}

	if _, done := fixed[document.FieldYear]; !done {
		if _, already := analysis.Filters[document.FieldYear]; !already {
			if m := utteranceYearRe.FindStringSubmatch(utterance); m != nil {
				analysis.Filters[document.FieldYear] = m[1]
			}
		}
	}

	if _, done := fixed[document.FieldCaseType]; !done {
		if _, already := analysis.Filters[document.FieldCaseType]; !already {
			if ct := matchCaseType(tokens); ct != "" {
				analysis.Filters[document.FieldCaseType] = ct
			}
		}
	}

	return analysis
}

// matchField returns the facet values mentioned by the tokens, ranked by
// how many tokens support each value, then lexicographically. The dominant
// flag is set when the top value is backed by strictly more tokens than the
// runner-up: "Kamran Əliyevin qərarları" resolves to "Kamran Əliyev" without
// a clarification, while bare "Kamranın" leaves both Kamrans in play.
func (a analyzer) matchField(tokens []string, values []string) ([]string, bool) {
	type scored struct {
		value string
		hits  int
	}
	var matched []scored
	for _, value := range values {
		hits := a.valueHits(tokens, value)
		if hits > 0 {
			matched = append(matched, scored{value: value, hits: hits})
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].hits != matched[j].hits {
			return matched[i].hits > matched[j].hits
		}
		return matched[i].value < matched[j].value
	})
	out := make([]string, 0, len(matched))
	for _, m := range matched {
		out = append(out, m.value)
	}
	dominant := len(matched) > 1 && matched[0].hits > matched[1].hits
	return out, dominant
}

// valueHits counts the utterance tokens that start with any word of the
// facet value. Agglutinative suffixes make exact equality useless here.
func (a analyzer) valueHits(tokens []string, value string) int {
	minLen := a.cfg.MinTokenLength
	if minLen <= 0 {
		minLen = 3
	}
	hits := 0
	for _, word := range strings.Fields(value) {
		if len([]rune(word)) < minLen {
			continue
		}
		for _, token := range tokens {
			if textnorm.HasPrefixFold(token, word) {
				hits++
				break
			}
		}
	}
	return hits
}

func (a analyzer) maxCandidates() int {
	if a.cfg.MaxCandidates <= 0 {
		return 5
	}
	return a.cfg.MaxCandidates
}

func matchCaseType(tokens []string) string {
	for stem, caseType := range caseTypeKeywords {
		for _, token := range tokens {
			if textnorm.HasPrefixFold(token, stem) {
				return caseType
			}
		}
	}
	return ""
}
