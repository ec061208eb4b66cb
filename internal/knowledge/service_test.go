package knowledge

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/campusbot/internal/errs"
	"github.com/hyperjump/campusbot/internal/keyword"
	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/storage"
)

func newService(t *testing.T) (*Service, *storage.SQLStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return New(store, idx), store
}

func TestAdd(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, models.KnowledgeInput{
		Question: "  ¿Cuáles son los   requisitos de admisión? ",
		Answer:   "Cédula y diploma.",
		Category: "admissions",
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.GetKnowledge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "¿Cuáles son los requisitos de admisión?", got.Question)
	assert.Equal(t, models.CategoryAdmissions, got.Category)
	assert.Equal(t, models.ProvenanceManual, got.Provenance)
	assert.True(t, got.Active)
	assert.Equal(t, []string{"requisitos", "admision"}, got.Keywords)
}

func TestAdd_Truncates(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, models.KnowledgeInput{
		Question: strings.Repeat("á", MaxQuestionLen+50),
		Answer:   strings.Repeat("b", MaxAnswerLen+1),
		Keywords: []string{"largo"},
	})
	require.NoError(t, err)
	got, err := store.GetKnowledge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, MaxQuestionLen, len([]rune(got.Question)))
	assert.Equal(t, MaxAnswerLen, len([]rune(got.Answer)))
	assert.Equal(t, models.CategoryGeneral, got.Category)
}

func TestAdd_EmptyQuestionIsNoop(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	id, err := svc.Add(ctx, models.KnowledgeInput{Question: " ¿?¡! ", Answer: "x"})
	require.NoError(t, err)
	assert.Empty(t, id)

	entries, err := store.ListKnowledge(ctx, models.KnowledgeFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAdd_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Add(ctx, models.KnowledgeInput{Question: "Pregunta", Answer: "Respuesta", Category: "sports"})
	assert.True(t, errs.IsKind(err, errs.KindValidation), "unknown category: %v", err)

	_, err = svc.Add(ctx, models.KnowledgeInput{Question: "Pregunta", Answer: "  "})
	assert.True(t, errs.IsKind(err, errs.KindValidation), "empty answer: %v", err)
}

func TestAdd_UpsertByID(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	in := models.KnowledgeInput{ID: "faq-1", Question: "Horario de atención", Answer: "8 a 17", Category: "schedule"}
	id, outcome, err := svc.upsert(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "faq-1", id)
	assert.Equal(t, OutcomeCreated, outcome)

	count := 4
	require.NoError(t, store.UpdateKnowledge(ctx, id, models.KnowledgeUpdate{UsageCount: &count}))

	in.Answer = "8 a 18"
	_, outcome, err = svc.upsert(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUpdated, outcome)

	got, err := store.GetKnowledge(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "8 a 18", got.Answer)
	assert.Equal(t, 4, got.UsageCount, "usage statistics survive re-import")
}

func TestUpdate(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, models.KnowledgeInput{Question: "Correo de admisiones", Answer: "admisiones@uni.edu", Category: "contact"})
	require.NoError(t, err)

	answer := "  admisiones@universidad.edu "
	got, err := svc.Update(ctx, id, models.KnowledgeUpdate{Answer: &answer, Keywords: []string{"correo", " Correo ", ""}})
	require.NoError(t, err)
	assert.Equal(t, "admisiones@universidad.edu", got.Answer)
	assert.Equal(t, []string{"correo"}, got.Keywords)

	bad := models.Category("sports")
	_, err = svc.Update(ctx, id, models.KnowledgeUpdate{Category: &bad})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = svc.Update(ctx, id, models.KnowledgeUpdate{})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	_, err = svc.Update(ctx, "missing", models.KnowledgeUpdate{Answer: &answer})
	assert.True(t, errs.IsKind(err, errs.KindUpstreamStore))
	assert.True(t, storage.IsNotFound(err))
}

func TestSearchAndDelete(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	costID, err := svc.Add(ctx, models.KnowledgeInput{Question: "¿Cuánto cuesta la matrícula?", Answer: "Depende del programa.", Category: "costs"})
	require.NoError(t, err)
	_, err = svc.Add(ctx, models.KnowledgeInput{Question: "Teléfono de contacto", Answer: "555-0000", Category: "contact"})
	require.NoError(t, err)

	resp, err := svc.Search(ctx, models.KnowledgeSearchQuery{Query: "matricula"})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, costID, resp.Results[0].Entry.ID)
	assert.Equal(t, 1, resp.Results[0].Rank)

	_, err = svc.Search(ctx, models.KnowledgeSearchQuery{Query: ""})
	assert.True(t, errs.IsKind(err, errs.KindValidation))

	require.NoError(t, svc.Delete(ctx, costID))
	resp, err = svc.Search(ctx, models.KnowledgeSearchQuery{Query: "matricula"})
	require.NoError(t, err)
	assert.Zero(t, resp.Total)

	assert.True(t, storage.IsNotFound(svc.Delete(ctx, costID)))
}

func TestMatch(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	id, err := svc.Add(ctx, models.KnowledgeInput{
		Question: "Requisitos de admisión", Answer: "Cédula y diploma.", Category: "admissions",
		Keywords: []string{"admision", "requisitos"},
	})
	require.NoError(t, err)
	inactive := false
	_, err = svc.Add(ctx, models.KnowledgeInput{Question: "Requisitos de admisión 2019", Answer: "Obsoleto.", Active: &inactive})
	require.NoError(t, err)

	matches, err := svc.Match(ctx, models.MatchRequest{Query: "requisitos de admision"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, id, matches[0].Entry.ID)
	assert.True(t, matches[0].Exact)

	_, err = svc.Match(ctx, models.MatchRequest{Query: "x", Category: "sports"})
	assert.True(t, errs.IsKind(err, errs.KindValidation))
}

func TestReindex(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "kb.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	// Entries written without an index.
	plain := New(store, nil)
	_, err = plain.Add(ctx, models.KnowledgeInput{Question: "Becas deportivas", Answer: "Hasta 50% de descuento."})
	require.NoError(t, err)
	_, err = plain.Reindex(ctx)
	assert.True(t, errs.IsKind(err, errs.KindConfiguration))

	idx, err := keyword.NewBleveIndex("")
	require.NoError(t, err)
	defer idx.Close()
	svc := New(store, idx)
	n, err := svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	resp, err := svc.Search(ctx, models.KnowledgeSearchQuery{Query: "becas"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Total)
}

func TestPreprocess(t *testing.T) {
	assert.Equal(t, "a b c", Preprocess("  a \t b\n\nc "))
	assert.Equal(t, "", Preprocess(" \n "))
}
