package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hyperjump/campusbot/internal/models"
)

func newIndex(t *testing.T, path string) *BleveIndex {
	t.Helper()
	idx, err := NewBleveIndex(path)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func indexAll(t *testing.T, idx *BleveIndex, entries ...*models.KnowledgeEntry) {
	t.Helper()
	for _, e := range entries {
		if err := idx.Index(context.Background(), e); err != nil {
			t.Fatalf("Index(%s): %v", e.ID, err)
		}
	}
}

func ids(results []*Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

var (
	admissions = &models.KnowledgeEntry{
		ID: "adm", Question: "Requisitos de admisión", Answer: "Cédula, diploma y formulario.",
		Category: models.CategoryAdmissions, Keywords: []string{"admision", "requisitos"}, Active: true,
	}
	costs = &models.KnowledgeEntry{
		ID: "cost", Question: "¿Cuánto cuesta la matrícula?", Answer: "El arancel depende del programa; consulta requisitos de pago.",
		Category: models.CategoryCosts, Keywords: []string{"costo", "matricula"}, Active: true,
	}
	retired = &models.KnowledgeEntry{
		ID: "old", Question: "Requisitos de admisión 2019", Answer: "Ya no aplica.",
		Category: models.CategoryAdmissions, Active: false,
	}
)

func TestBleveIndex_SearchFoldsAccents(t *testing.T) {
	idx := newIndex(t, "")
	indexAll(t, idx, admissions, costs)

	results, err := idx.Search(context.Background(), "ADMISION", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 || results[0].ID != "adm" {
		t.Fatalf("Search(ADMISION) = %v, want adm first", ids(results))
	}

	results, err = idx.Search(context.Background(), "matrícula", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "cost" {
		t.Errorf("Search(matrícula) = %v, want [cost]", ids(results))
	}
}

func TestBleveIndex_Filters(t *testing.T) {
	idx := newIndex(t, "")
	indexAll(t, idx, admissions, costs, retired)
	ctx := context.Background()

	results, err := idx.Search(ctx, "requisitos", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.ID == "old" {
			t.Errorf("inactive entry returned by default: %v", ids(results))
		}
	}

	results, err = idx.Search(ctx, "requisitos", 10, &SearchOptions{IncludeInactive: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("IncludeInactive: got %v, want 3 hits", ids(results))
	}

	cat := models.CategoryCosts
	results, err = idx.Search(ctx, "requisitos", 10, &SearchOptions{Category: &cat})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "cost" {
		t.Errorf("Category filter: got %v, want [cost]", ids(results))
	}
}

func TestBleveIndex_BoostsQuestionMatches(t *testing.T) {
	idx := newIndex(t, "")
	indexAll(t, idx, admissions, costs)

	results, err := idx.Search(context.Background(), "requisitos", 10, &SearchOptions{QuestionBoost: 3, KeywordBoost: 2})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %v, want two hits", ids(results))
	}
	if results[0].ID != "adm" {
		t.Errorf("question/keyword match should outrank answer-only match, got %v", ids(results))
	}
}

func TestBleveIndex_Fuzzy(t *testing.T) {
	idx := newIndex(t, "")
	indexAll(t, idx, costs)
	ctx := context.Background()

	results, err := idx.Search(ctx, "matricla", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("exact search should miss a typo, got %v", ids(results))
	}

	results, err = idx.Search(ctx, "matricla", 10, &SearchOptions{FuzzyEnabled: true})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("fuzzy search should tolerate one edit, got %v", ids(results))
	}
}

func TestBleveIndex_EmptyQuery(t *testing.T) {
	idx := newIndex(t, "")
	indexAll(t, idx, costs)
	results, err := idx.Search(context.Background(), " ¿? ", 10, nil)
	if err != nil || results != nil {
		t.Errorf("Search(blank) = %v, %v; want nil, nil", results, err)
	}
}

func TestBleveIndex_ReopenKeepsEntries(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "bleve")

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	indexAll(t, idx1, costs)
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2 := newIndex(t, indexPath)
	count, err := idx2.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 1 {
		t.Errorf("DocCount after reopen = %d, want 1", count)
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	idx := newIndex(t, "")
	indexAll(t, idx, costs)
	ctx := context.Background()

	if err := idx.Delete(ctx, costs.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	results, err := idx.Search(ctx, "matricula", 10, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "sub", "bleve")
	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}
