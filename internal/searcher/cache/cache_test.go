package cache

import (
	"testing"

	"github.com/elchin-rustamov/courtsearch/internal/document"
	"github.com/elchin-rustamov/courtsearch/internal/searcher"
)

func TestBuildKeyIgnoresTokenOrder(t *testing.T) {
	a := buildKey(searcher.Query{Text: "Kamran qərarları 2023", Limit: 10})
	b := buildKey(searcher.Query{Text: "2023 qərarları Kamran", Limit: 10})
	if a != b {
		t.Errorf("token order changed the key: %s vs %s", a, b)
	}
}

func TestBuildKeyFoldsCase(t *testing.T) {
	a := buildKey(searcher.Query{Text: "İddia", Limit: 10})
	b := buildKey(searcher.Query{Text: "iddia", Limit: 10})
	if a != b {
		t.Errorf("case changed the key: %s vs %s", a, b)
	}
}

func TestBuildKeyDistinguishesFilters(t *testing.T) {
	base := searcher.Query{Text: "qərar", Limit: 10}
	filtered := searcher.Query{
		Text:    "qərar",
		Filters: map[string]string{document.FieldJudge: "Əli Məmmədov"},
		Limit:   10,
	}
	if buildKey(base) == buildKey(filtered) {
		t.Error("filterless and filtered queries share a key")
	}

	other := searcher.Query{
		Text:    "qərar",
		Filters: map[string]string{document.FieldJudge: "Kamran Əliyev"},
		Limit:   10,
	}
	if buildKey(filtered) == buildKey(other) {
		t.Error("different filter values share a key")
	}
}

func TestBuildKeyDistinguishesLimit(t *testing.T) {
	a := buildKey(searcher.Query{Text: "qərar", Limit: 10})
	b := buildKey(searcher.Query{Text: "qərar", Limit: 20})
	if a == b {
		t.Error("different limits share a key")
	}
}
