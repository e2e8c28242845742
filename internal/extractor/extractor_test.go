package extractor

import (
	"testing"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/textnorm"
)

const sampleRuling = `AĞDAM RAYON MƏHKƏMƏSİ
İş No 2-123/2023
Hakim: Əli Məmmədov
Katib: Aysel Quliyeva
İşin növü: mülki
İl: 2023

QƏTNAMƏ

15.03.2023 tarixində məhkəmə iclası keçirilmişdir.
İddiaçı: Kamran Əliyev
Cavabdeh: Rəşad Həsənov

Məhkəmə iddianı təmin etməyi qərara aldı.`

func extract(t *testing.T, text string) document.MetadataRecord {
	t.Helper()
	return New().Extract(textnorm.Normalize(text))
}

func TestExtractFullHeader(t *testing.T) {
	record := extract(t, sampleRuling)

	if record.CourtName != "AĞDAM RAYON MƏHKƏMƏSİ" {
		t.Errorf("court = %q", record.CourtName)
	}
	if record.CaseNumber != "2-123/2023" {
		t.Errorf("case number = %q", record.CaseNumber)
	}
	if record.Judge != "Əli Məmmədov" {
		t.Errorf("judge = %q", record.Judge)
	}
	if record.Clerk != "Aysel Quliyeva" {
		t.Errorf("clerk = %q", record.Clerk)
	}
	if record.CaseType != "mülki" {
		t.Errorf("case type = %q", record.CaseType)
	}
	if record.Year != "2023" {
		t.Errorf("year = %q", record.Year)
	}
	if record.DecisionType != "QƏTNAMƏ" {
		t.Errorf("decision type = %q", record.DecisionType)
	}
	if record.DecisionDate != "15.03.2023" {
		t.Errorf("decision date = %q", record.DecisionDate)
	}
	if record.PartiallyAmbiguous {
		t.Error("consistent record flagged ambiguous")
	}
}

func TestExtractParties(t *testing.T) {
	record := extract(t, sampleRuling)

	want := map[string]bool{"Kamran Əliyev": true, "Rəşad Həsənov": true}
	if len(record.Parties) != len(want) {
		t.Fatalf("parties = %v", record.Parties)
	}
	for _, party := range record.Parties {
		if !want[party] {
			t.Errorf("unexpected party %q", party)
		}
	}
}

func TestEmptyTextAllUnknown(t *testing.T) {
	record := New().Extract("")
	for _, field := range []string{
		document.FieldCourtName, document.FieldCaseNumber, document.FieldJudge,
		document.FieldClerk, document.FieldCaseType, document.FieldDistrict,
		document.FieldDecisionType, document.FieldYear, document.FieldDecisionDate,
	} {
		if record.Known(field) {
			t.Errorf("field %s = %q, want unknown", field, record.Value(field))
		}
	}
}

func TestUnstructuredTextStaysUnknown(t *testing.T) {
	record := extract(t, "Bu sənəddə heç bir tanınan sahə yoxdur. Sadəcə mətn.")
	if record.Known(document.FieldJudge) || record.Known(document.FieldCaseNumber) {
		t.Errorf("spurious extraction: judge=%q case=%q", record.Judge, record.CaseNumber)
	}
}

func TestYearConflictingWithDateFlagsAmbiguity(t *testing.T) {
	text := `Hakim: Əli Məmmədov
İl: 2022

QƏRAR

15.03.2023 tarixində qəbul edilmişdir.`
	record := extract(t, text)

	if record.Year != "2023" {
		t.Errorf("year = %q, want the date-derived 2023", record.Year)
	}
	if !record.PartiallyAmbiguous {
		t.Error("conflicting year and date must flag the record")
	}
}

func TestYearDerivedFromDateWhenUnlabelled(t *testing.T) {
	text := `Hakim: Əli Məmmədov

QƏRAR

07.11.2021 tarixində qəbul edilmişdir.`
	record := extract(t, text)

	if record.DecisionDate != "07.11.2021" {
		t.Errorf("decision date = %q", record.DecisionDate)
	}
	if record.Year != "2021" {
		t.Errorf("year = %q, want 2021", record.Year)
	}
	if record.PartiallyAmbiguous {
		t.Error("derived year is not a conflict")
	}
}

func TestOCRNoiseInLabelTolerated(t *testing.T) {
	text := `Məhkə mənin adı: ŞİRVAN İNZİBATİ MƏHKƏMƏSİ
Hakim: Əli Məmmədov`
	record := extract(t, text)

	if record.CourtName != "ŞİRVAN İNZİBATİ MƏHKƏMƏSİ" {
		t.Errorf("court = %q", record.CourtName)
	}
}

func TestKnownInstitutionFoundWithoutLabel(t *testing.T) {
	text := `Sənəd ŞİRVAN KOMMERSİYA MƏHKƏMƏSİ tərəfindən verilmişdir.
Hakim: Əli Məmmədov`
	record := extract(t, text)

	if record.CourtName != "ŞİRVAN KOMMERSİYA MƏHKƏMƏSİ" {
		t.Errorf("court = %q", record.CourtName)
	}
}

func TestWrappedValueTruncatedAtNextLabel(t *testing.T) {
	// The judge value wraps onto the next line, which starts another field.
	text := "Hakim: Əli\nMəmmədov Katib: Aysel Quliyeva\n\nQƏRAR"
	record := extract(t, text)

	if record.Judge != "Əli Məmmədov" {
		t.Errorf("judge = %q, want the wrapped value without the clerk line", record.Judge)
	}
	if record.Clerk != "Aysel Quliyeva" {
		t.Errorf("clerk = %q", record.Clerk)
	}
}

func TestValueCaptureStopsAtBlankLine(t *testing.T) {
	// A blank line ends the value even when the following prose carries no
	// recognised label to truncate at.
	text := "Hakim: Əli Məmmədov\n\nTərəflər barışıq sazişi bağladılar."
	record := extract(t, text)

	if record.Judge != "Əli Məmmədov" {
		t.Errorf("judge = %q, want the value without the following paragraph", record.Judge)
	}
}

func TestDistrictFromVenueMention(t *testing.T) {
	text := `Qərar AĞDAM rayon ərazisində icra edilməlidir.
Hakim: Əli Məmmədov`
	record := extract(t, text)

	if record.District != "AĞDAM" {
		t.Errorf("district = %q, want AĞDAM", record.District)
	}
}

func TestDecisionTypePrecedence(t *testing.T) {
	// QƏRARNAMƏ must not be mistaken for its prefix QƏRAR.
	record := extract(t, "Məhkəmə QƏRARNAMƏ qəbul etdi.\nHakim: Əli Məmmədov")
	if record.DecisionType != "QƏRARNAMƏ" {
		t.Errorf("decision type = %q, want QƏRARNAMƏ", record.DecisionType)
	}
}

func TestYearFirstDateNormalized(t *testing.T) {
	record := extract(t, "Hakim: Əli Məmmədov\n\n2023.03.05 tarixli qərar.")
	if record.DecisionDate != "05.03.2023" {
		t.Errorf("decision date = %q, want 05.03.2023", record.DecisionDate)
	}
}

func TestImplausibleDateRejected(t *testing.T) {
	record := extract(t, "Hakim: Əli Məmmədov\n\n45.13.2023 tarixli sənəd.")
	if record.Known(document.FieldDecisionDate) {
		t.Errorf("decision date = %q, want unknown", record.DecisionDate)
	}
}
