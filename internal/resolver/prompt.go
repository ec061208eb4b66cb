package resolver

import (
	"fmt"
	"strings"

	"github.com/hyperjump/campusbot/internal/generation"
	"github.com/hyperjump/campusbot/internal/matcher"
	"github.com/hyperjump/campusbot/internal/models"
)

// Persona names the assistant in the generation prompt.
type Persona struct {
	Name        string
	Institution string
}

// DefaultPersona is used when no persona is configured.
var DefaultPersona = Persona{Name: "Asistente Virtual", Institution: "la universidad"}

// instruction is the first user turn of every prompt.
func (p Persona) instruction() string {
	name, inst := p.Name, p.Institution
	if name == "" {
		name = DefaultPersona.Name
	}
	if inst == "" {
		inst = DefaultPersona.Institution
	}
	return fmt.Sprintf("Eres %s, el asistente virtual de %s. "+
		"Respondes preguntas de estudiantes y aspirantes sobre programas académicos, admisiones, costos, horarios y contacto. "+
		"Responde en español, de forma clara, breve y amable. "+
		"Usa la información de la base de conocimiento cuando sea relevante y no inventes datos como precios, fechas o teléfonos. "+
		"Si no tienes la información, indica cómo comunicarse con %s.", name, inst, inst)
}

// acknowledgement keeps user and model turns alternating after the instruction.
const acknowledgement = "Entendido. ¿En qué puedo ayudarte?"

// BuildPrompt assembles the ordered generation turns: the persona instruction
// with up to MaxContextEntries knowledge entries, the last MaxHistoryTurns
// usable history turns, and the current message. Consecutive turns of the
// same role are merged.
func BuildPrompt(p Persona, matches []matcher.Match, history []models.Message, message string) []generation.Turn {
	var sb strings.Builder
	sb.WriteString(p.instruction())
	if len(matches) > MaxContextEntries {
		matches = matches[:MaxContextEntries]
	}
	if len(matches) > 0 {
		sb.WriteString("\n\nInformación de la base de conocimiento:")
		for i, m := range matches {
			fmt.Fprintf(&sb, "\n%d. Pregunta: %s\n   Respuesta: %s", i+1, m.Entry.Question, m.Entry.Answer)
		}
	}

	var turns []generation.Turn
	turns = appendTurn(turns, generation.RoleUser, sb.String())
	turns = appendTurn(turns, generation.RoleModel, acknowledgement)
	for _, h := range HistoryWindow(history, MaxHistoryTurns) {
		role := generation.RoleUser
		if h.Role == models.RoleAssistant {
			role = generation.RoleModel
		}
		turns = appendTurn(turns, role, h.Content)
	}
	return appendTurn(turns, generation.RoleUser, message)
}

// HistoryWindow returns the last n user/assistant turns, skipping error turns
// and blank content.
func HistoryWindow(history []models.Message, n int) []models.Message {
	usable := make([]models.Message, 0, len(history))
	for _, h := range history {
		if h.IsError || strings.TrimSpace(h.Content) == "" {
			continue
		}
		if h.Role != models.RoleUser && h.Role != models.RoleAssistant {
			continue
		}
		usable = append(usable, h)
	}
	if len(usable) > n {
		usable = usable[len(usable)-n:]
	}
	return usable
}

func appendTurn(turns []generation.Turn, role generation.Role, text string) []generation.Turn {
	text = strings.TrimSpace(text)
	if text == "" {
		return turns
	}
	if n := len(turns); n > 0 && turns[n-1].Role == role {
		turns[n-1].Text += "\n\n" + text
		return turns
	}
	return append(turns, generation.Turn{Role: role, Text: text})
}
