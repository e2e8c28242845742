package extractor

import (
	"regexp"
	"strings"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
)

// fieldRule binds a metadata field to an ordered battery of surface
// patterns. Patterns are tried in priority order and the first match wins;
// the optional normalize step canonicalises the captured value.
type fieldRule struct {
	field     string
	patterns  []*regexp.Regexp
	normalize func(*Extractor, string) string
}

// valueBody matches a capture region that may wrap onto one continuation
// line but never crosses a blank line. Captured values are later truncated
// at the next recognised field label.
const valueBody = `([^\n]{1,160}(?:\n[^\n]{1,160})?)`

// fieldLabels are the lexical anchors that terminate a wrapped value
// capture. Keeping this list in one place stops one field's capture from
// swallowing the next field's line.
var fieldLabels = []string{
	"Məhkəmənin adı", "İş No", "İş №", "Hakim", "Katib", "Ərizəçi",
	"İşin növü", "Məhkəmə aktı", "Rayon", "İddiaçı", "Cavabdeh",
	"Məhkum", "Təqsirləndirilən", "Qətetdi", "İl",
	"QƏTNAMƏ", "QƏRARNAMƏ", "QƏRAR",
}

// labelCutPatterns match folded field labels on word boundaries; cleanValue
// uses them to truncate wrapped captures at the next label.
var labelCutPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(fieldLabels))
	for _, label := range fieldLabels {
		patterns = append(patterns, regexp.MustCompile(
			`(?:^|[^\p{L}])`+regexp.QuoteMeta(textnorm.Fold(label))+`(?:[^\p{L}]|$)`))
	}
	return patterns
}()

// fuzzyAnchor builds a pattern for a lexical anchor that tolerates one
// isolated stray character between letters, which is how OCR noise usually
// manifests inside an otherwise intact label.
func fuzzyAnchor(label string) string {
	var b strings.Builder
	runes := []rune(label)
	for i, r := range runes {
		b.WriteString(regexp.QuoteMeta(string(r)))
		if i < len(runes)-1 {
			b.WriteString(`[^\p{L}\n]?`)
		}
	}
	return b.String()
}

// anchored compiles a label-prefixed capture. The leading class keeps a
// label from matching inside another word; \b is unusable here because Go's
// word boundary does not treat Azerbaijani letters as word characters.
func anchored(anchor string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\p{L}])` + anchor + `[:\-\s]*` + valueBody)
}

func fieldRules() []fieldRule {
	return []fieldRule{
		{
			field: document.FieldCourtName,
			patterns: []*regexp.Regexp{
				anchored(`[Mm]əhkəmənin adı`),
				anchored(fuzzyAnchor("Məhkəmənin adı")),
			},
			normalize: (*Extractor).normalizeInstitution,
		},
		{
			field: document.FieldCaseNumber,
			patterns: []*regexp.Regexp{
				anchored(`(?:İş|Iş|iş)\s*(?:No|№|nömrəsi)`),
				anchored(fuzzyAnchor("İş No")),
			},
		},
		{
			field: document.FieldJudge,
			patterns: []*regexp.Regexp{
				anchored(`[Hh]akim`),
				anchored(fuzzyAnchor("Hakim")),
			},
		},
		{
			field: document.FieldClerk,
			patterns: []*regexp.Regexp{
				anchored(`[Kk]atib`),
				anchored(fuzzyAnchor("Katib")),
			},
		},
		{
			field: document.FieldCaseType,
			patterns: []*regexp.Regexp{
				anchored(`(?:İşin|Işin|işin) növü`),
				anchored(fuzzyAnchor("İşin növü")),
			},
		},
		{
			field: document.FieldDistrict,
			patterns: []*regexp.Regexp{
				// Labelled district requires a delimiter: bare "rayon" occurs
				// in running prose far too often.
				regexp.MustCompile(`(?:^|[^\p{L}])[Rr]ayon(?:u)?\s*[:\-]\s*` + valueBody),
				// Venue mention such as "AĞDAM rayon" when no explicit label exists.
				regexp.MustCompile(`([\p{Lu}][\p{L}]+)\s+(?:rayon|şəhər|qəsəbə)`),
			},
			normalize: (*Extractor).normalizeInstitution,
		},
		{
			field: document.FieldDecisionType,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?:^|[^\p{L}])(QƏTNAMƏ|QƏRARNAMƏ|QƏRAR)(?:[^\p{L}]|$)`),
			},
			normalize: (*Extractor).normalizeDecisionType,
		},
		{
			field: document.FieldDecisionDate,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`\b(\d{1,2}[.\s]+\d{1,2}[.\s]+\d{4})\b`),
				regexp.MustCompile(`\b(\d{4}[.\s]+\d{1,2}[.\s]+\d{1,2})\b`),
			},
			normalize: (*Extractor).normalizeDate,
		},
		{
			field: document.FieldYear,
			patterns: []*regexp.Regexp{
				// Labelled year also requires a delimiter; "il" is a common
				// syllable and the standalone fallback below covers the rest.
				regexp.MustCompile(`(?:^|[^\p{L}])(?:İl|Il|il)i?\s*[:\-]\s*` + valueBody),
				regexp.MustCompile(`\b((?:19|20)\d{2})\b`),
			},
			normalize: (*Extractor).normalizeYear,
		},
	}
}

// partyPatterns locate the participants of a case. All matches are kept in
// document order.
var partyPatterns = []*regexp.Regexp{
	anchored(`(?:İddiaçı|Iddiaçı|iddiaçı)`),
	anchored(`[Əə]rizəçi`),
	anchored(`[Mm]əhkum`),
	anchored(`[Cc]avabdeh`),
	anchored(`[Tt]əqsirləndirilən`),
}
