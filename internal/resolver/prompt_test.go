package resolver

import (
	"fmt"
	"strings"
	"testing"

	"github.com/hyperjump/campusbot/internal/generation"
	"github.com/hyperjump/campusbot/internal/matcher"
	"github.com/hyperjump/campusbot/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	var matches []matcher.Match
	for i := 1; i <= 5; i++ {
		matches = append(matches, matcher.Match{Entry: &models.KnowledgeEntry{
			Question: fmt.Sprintf("Pregunta %d", i),
			Answer:   fmt.Sprintf("Respuesta %d", i),
		}})
	}
	history := []models.Message{
		{Role: models.RoleUser, Content: "turno 1"},
		{Role: models.RoleAssistant, Content: "turno 2"},
		{Role: models.RoleUser, Content: "turno 3"},
		{Role: models.RoleAssistant, Content: "falló", IsError: true},
		{Role: models.RoleSystem, Content: "nota interna"},
		{Role: models.RoleUser, Content: "turno 4"},
		{Role: models.RoleAssistant, Content: "turno 5"},
		{Role: models.RoleUser, Content: "turno 6"},
		{Role: models.RoleAssistant, Content: "turno 7"},
		{Role: models.RoleUser, Content: "turno 8"},
		{Role: models.RoleAssistant, Content: "turno 9"},
	}

	turns := BuildPrompt(Persona{Name: "Sofía", Institution: "la Universidad del Norte"}, matches, history, "¿Y los horarios?")

	first := turns[0]
	if first.Role != generation.RoleUser {
		t.Fatalf("first turn role = %s", first.Role)
	}
	if !strings.Contains(first.Text, "Eres Sofía, el asistente virtual de la Universidad del Norte") {
		t.Errorf("persona missing from instruction: %q", first.Text)
	}
	if !strings.Contains(first.Text, "3. Pregunta: Pregunta 3\n   Respuesta: Respuesta 3") {
		t.Errorf("context block missing third entry: %q", first.Text)
	}
	if strings.Contains(first.Text, "Pregunta 4") {
		t.Error("context should hold at most three entries")
	}

	var texts []string
	for i, tr := range turns {
		if i > 0 && tr.Role == turns[i-1].Role {
			t.Errorf("turns %d and %d share role %s", i-1, i, tr.Role)
		}
		texts = append(texts, tr.Text)
	}
	joined := strings.Join(texts, "|")
	for _, want := range []string{"turno 4", "turno 5", "turno 6", "turno 7", "turno 8", "turno 9"} {
		if !strings.Contains(joined, want) {
			t.Errorf("history turn %q missing", want)
		}
	}
	for _, unwanted := range []string{"turno 3", "falló", "nota interna"} {
		if strings.Contains(joined, unwanted) {
			t.Errorf("turn %q should be excluded", unwanted)
		}
	}

	last := turns[len(turns)-1]
	if last.Role != generation.RoleUser || last.Text != "¿Y los horarios?" {
		t.Errorf("last turn = %+v", last)
	}
	if prev := turns[len(turns)-2]; prev.Role != generation.RoleModel || prev.Text != "turno 9" {
		t.Errorf("assistant history should map to model role: %+v", prev)
	}
}

func TestBuildPrompt_NoContext(t *testing.T) {
	turns := BuildPrompt(Persona{}, nil, nil, "hola")
	if len(turns) != 3 {
		t.Fatalf("got %d turns, want instruction, acknowledgement, message", len(turns))
	}
	if strings.Contains(turns[0].Text, "base de conocimiento:") {
		t.Error("no context block expected without matches")
	}
	if !strings.Contains(turns[0].Text, DefaultPersona.Name) {
		t.Error("default persona expected")
	}
	if turns[2].Text != "hola" {
		t.Errorf("message turn = %q", turns[2].Text)
	}
}

func TestHistoryWindow(t *testing.T) {
	var history []models.Message
	for i := 0; i < 10; i++ {
		history = append(history, models.Message{Role: models.RoleUser, Content: fmt.Sprint(i)})
	}
	got := HistoryWindow(history, MaxHistoryTurns)
	if len(got) != MaxHistoryTurns || got[0].Content != "4" || got[5].Content != "9" {
		t.Errorf("HistoryWindow() = %+v", got)
	}
}
