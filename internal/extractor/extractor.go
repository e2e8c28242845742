// Package extractor converts the normalised text of a court ruling into a
// structured metadata record. It is organised as an ordered strategy table:
// each field carries its own battery of surface patterns, evaluated
// independently, so a miss on one field never blocks the others. Extraction
// is total: a document with no recognisable fields yields a record of
// all-unknown values, which is still indexed.
package extractor

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
)

// Extractor applies the field rule table to document text.
type Extractor struct {
	rules  []fieldRule
	logger *slog.Logger
}

func New() *Extractor {
	return &Extractor{
		rules:  fieldRules(),
		logger: slog.Default().With("component", "extractor"),
	}
}

// Extract produces a MetadataRecord from normalised document text. It never
// fails; fields that cannot be located stay Unknown.
func (e *Extractor) Extract(text string) document.MetadataRecord {
	record := document.NewMetadataRecord()
	if strings.TrimSpace(text) == "" {
		return record
	}

	for _, rule := range e.rules {
		value := e.extractField(text, rule)
		if value != "" {
			record.SetValue(rule.field, value)
		}
	}

	// The explicit label is rare in practice; fall back to scanning for a
	// known institution name anywhere in the header.
	if !record.Known(document.FieldCourtName) {
		if name := findKnownInstitution(text); name != "" {
			record.CourtName = name
		}
	}

	record.Parties = e.extractParties(text)
	e.validate(&record)

	return record
}

func (e *Extractor) extractField(text string, rule fieldRule) string {
	for _, pattern := range rule.patterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		value := cleanValue(match[1])
		if rule.normalize != nil {
			value = rule.normalize(e, value)
		}
		if value != "" && value != document.Unknown {
			return value
		}
	}
	return ""
}

func (e *Extractor) extractParties(text string) []string {
	seen := make(map[string]struct{})
	var parties []string
	for _, pattern := range partyPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			party := cleanValue(match[1])
			if len([]rune(party)) <= 3 {
				continue
			}
			key := textnorm.Fold(party)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			parties = append(parties, party)
		}
	}
	return parties
}

// validate cross-checks the year against the decision date. On conflict the
// date-derived year wins and the record is flagged partially ambiguous so
// ranking can deprioritise it.
func (e *Extractor) validate(record *document.MetadataRecord) {
	if !record.Known(document.FieldDecisionDate) {
		return
	}
	dateYear := yearFromDate(record.DecisionDate)
	if dateYear == "" {
		return
	}
	if record.Known(document.FieldYear) && record.Year != dateYear {
		e.logger.Debug("year conflicts with decision date",
			"year", record.Year,
			"date", record.DecisionDate,
		)
		record.Year = dateYear
		record.PartiallyAmbiguous = true
		return
	}
	if !record.Known(document.FieldYear) {
		record.Year = dateYear
	}
}

func (e *Extractor) normalizeInstitution(value string) string {
	return canonicalInstitution(value)
}

func (e *Extractor) normalizeDecisionType(value string) string {
	upper := strings.ToUpper(strings.TrimSpace(value))
	for _, dt := range document.DecisionTypes {
		if upper == dt {
			return dt
		}
	}
	return document.Unknown
}

var yearRe = regexp.MustCompile(`(?:19|20)\d{2}`)

func (e *Extractor) normalizeYear(value string) string {
	match := yearRe.FindString(value)
	if match == "" {
		return document.Unknown
	}
	year, err := strconv.Atoi(match)
	if err != nil || year < 1900 || year > time.Now().Year()+1 {
		return document.Unknown
	}
	return match
}

var datePartsRe = regexp.MustCompile(`(\d{1,4})[.\s]+(\d{1,2})[.\s]+(\d{1,4})`)

// normalizeDate canonicalises a captured date to dd.mm.yyyy, accepting both
// day-first and year-first orderings.
func (e *Extractor) normalizeDate(value string) string {
	match := datePartsRe.FindStringSubmatch(value)
	if match == nil {
		return document.Unknown
	}
	a, b, c := match[1], match[2], match[3]
	var day, month, year string
	switch {
	case len(a) == 4:
		year, month, day = a, b, c
	case len(c) == 4:
		day, month, year = a, b, c
	default:
		return document.Unknown
	}
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	y, _ := strconv.Atoi(year)
	if d < 1 || d > 31 || m < 1 || m > 12 || y < 1900 || y > time.Now().Year()+1 {
		return document.Unknown
	}
	return fmt.Sprintf("%02d.%02d.%04d", d, m, y)
}

func yearFromDate(date string) string {
	if len(date) == 10 && date[2] == '.' && date[5] == '.' {
		return date[6:]
	}
	return ""
}

// cleanValue collapses whitespace in a captured value and truncates it at
// the next recognised field label, so a wrapped capture cannot swallow the
// following field's line. Truncation is computed in runes: folding maps one
// rune to one rune, but byte offsets shift for İ and I.
func cleanValue(raw string) string {
	value := strings.Join(strings.Fields(raw), " ")
	folded := textnorm.Fold(value)
	valueRunes := []rune(value)
	cut := len(valueRunes)
	for _, pattern := range labelCutPatterns {
		loc := pattern.FindStringIndex(folded)
		if loc == nil || loc[0] == 0 {
			continue
		}
		runeIdx := len([]rune(folded[:loc[0]]))
		if runeIdx < cut {
			cut = runeIdx
		}
	}
	value = strings.TrimSpace(string(valueRunes[:cut]))
	value = strings.Trim(value, ":;,-")
	return strings.TrimSpace(value)
}
