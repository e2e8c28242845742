package dialogue

import (
	"testing"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/indexer/facets"
	"github.com/elchin-rustamov/courtsearch/pkg/config"
)

func dialogueConfig() config.DialogueConfig {
	return config.DialogueConfig{
		MaxClarificationRounds: 2,
		MinTokenLength:         3,
		MaxCandidates:          5,
	}
}

func facetsWithJudges(judges ...string) *facets.Cache {
	fc := facets.NewCache()
	for _, judge := range judges {
		meta := document.NewMetadataRecord()
		meta.Judge = judge
		fc.Add(meta)
	}
	return fc
}

func TestAmbiguousJudgeTriggersClarification(t *testing.T) {
	fc := facetsWithJudges("Kamran", "Kamran Əliyev")
	c := NewController(dialogueConfig(), fc, nil, nil)

	resp := c.Handle("s1", "Kamranın qərarlarını göstər")
	if resp.State != StateAwaitingClarification {
		t.Fatalf("state = %q, want awaiting_clarification", resp.State)
	}
	if resp.Field != document.FieldJudge {
		t.Errorf("field = %q, want judge", resp.Field)
	}
	if len(resp.Options) != 2 {
		t.Fatalf("options = %v, want both Kamrans", resp.Options)
	}
	if resp.Query != nil {
		t.Error("query must not be set while awaiting clarification")
	}
}

func TestClarificationResolvedByNumber(t *testing.T) {
	fc := facetsWithJudges("Kamran", "Kamran Əliyev")
	c := NewController(dialogueConfig(), fc, nil, nil)

	c.Handle("s1", "Kamranın qərarlarını göstər")
	resp := c.Handle("s1", "2")

	if resp.State != StateReadyToSearch {
		t.Fatalf("state = %q, want ready_to_search", resp.State)
	}
	if resp.Query == nil {
		t.Fatal("expected a query")
	}
	if resp.Query.Filters[document.FieldJudge] != "Kamran Əliyev" {
		t.Errorf("judge filter = %q, want Kamran Əliyev", resp.Query.Filters[document.FieldJudge])
	}
	if resp.BestEffort {
		t.Error("resolved clarification must not be best-effort")
	}
}

func TestClarificationResolvedByName(t *testing.T) {
	fc := facetsWithJudges("Kamran", "Kamran Əliyev")
	c := NewController(dialogueConfig(), fc, nil, nil)

	c.Handle("s1", "Kamranın qərarlarını göstər")
	resp := c.Handle("s1", "Kamran Əliyev")

	if resp.State != StateReadyToSearch {
		t.Fatalf("state = %q, want ready_to_search", resp.State)
	}
	if resp.Query.Filters[document.FieldJudge] != "Kamran Əliyev" {
		t.Errorf("judge filter = %q", resp.Query.Filters[document.FieldJudge])
	}
}

func TestRoundsExhaustedFallsBackBestEffort(t *testing.T) {
	fc := facetsWithJudges("Kamran", "Kamran Əliyev")
	c := NewController(dialogueConfig(), fc, nil, nil)

	c.Handle("s1", "Kamranın qərarlarını göstər")
	second := c.Handle("s1", "bilmirəm")
	if second.State != StateAwaitingClarification {
		t.Fatalf("second turn state = %q, want another question", second.State)
	}

	third := c.Handle("s1", "yenə bilmirəm")
	if third.State != StateReadyToSearch {
		t.Fatalf("third turn state = %q, want ready_to_search", third.State)
	}
	if !third.BestEffort {
		t.Error("expected best-effort flag after exhausted rounds")
	}
	if third.Query.Filters[document.FieldJudge] == "" {
		t.Error("best-effort answer must still pick a judge")
	}
}

func TestFullNameResolvesWithoutClarification(t *testing.T) {
	fc := facetsWithJudges("Kamran", "Kamran Əliyev")
	c := NewController(dialogueConfig(), fc, nil, nil)

	resp := c.Handle("s1", "Kamran Əliyevin qərarlarını göstər")
	if resp.State != StateReadyToSearch {
		t.Fatalf("state = %q, want ready_to_search", resp.State)
	}
	if resp.Query.Filters[document.FieldJudge] != "Kamran Əliyev" {
		t.Errorf("judge filter = %q, want Kamran Əliyev", resp.Query.Filters[document.FieldJudge])
	}
}

func TestYearAndCaseTypeExtracted(t *testing.T) {
	c := NewController(dialogueConfig(), facets.NewCache(), nil, nil)

	resp := c.Handle("s1", "2023 mülki işlər üzrə qərarlar")
	if resp.State != StateReadyToSearch {
		t.Fatalf("state = %q", resp.State)
	}
	if resp.Query.Filters[document.FieldYear] != "2023" {
		t.Errorf("year filter = %q, want 2023", resp.Query.Filters[document.FieldYear])
	}
	if resp.Query.Filters[document.FieldCaseType] != "mülki" {
		t.Errorf("case type filter = %q, want mülki", resp.Query.Filters[document.FieldCaseType])
	}
}

func TestUnambiguousQueryPassesThrough(t *testing.T) {
	fc := facetsWithJudges("Əli Məmmədov")
	c := NewController(dialogueConfig(), fc, nil, nil)

	resp := c.Handle("s1", "Əli Məmmədovun qərarları")
	if resp.State != StateReadyToSearch {
		t.Fatalf("state = %q", resp.State)
	}
	if resp.Query.Filters[document.FieldJudge] != "Əli Məmmədov" {
		t.Errorf("judge filter = %q", resp.Query.Filters[document.FieldJudge])
	}
	if resp.Query.Text == "" {
		t.Error("free text must be preserved for semantic ranking")
	}
}

func TestSessionRestartsAfterQuery(t *testing.T) {
	fc := facetsWithJudges("Əli Məmmədov", "Kamran")
	c := NewController(dialogueConfig(), fc, nil, nil)

	first := c.Handle("s1", "Əli Məmmədovun qərarları")
	if first.State != StateReadyToSearch {
		t.Fatalf("first state = %q", first.State)
	}

	second := c.Handle("s1", "Kamranın işləri")
	if second.State != StateReadyToSearch {
		t.Fatalf("second state = %q", second.State)
	}
	if second.Query.Filters[document.FieldJudge] != "Kamran" {
		t.Errorf("second query judge = %q, want Kamran", second.Query.Filters[document.FieldJudge])
	}
	if _, stale := second.Query.Filters[document.FieldCourtName]; stale {
		t.Error("filters leaked across queries")
	}
}
