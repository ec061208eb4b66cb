// Package intent assigns a coarse topic label to a user utterance.
package intent

import (
	"strings"

	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/textnorm"
)

// Rule pairs a label with the normalized keywords that select it.
type Rule struct {
	Label    models.Category
	Keywords []string
}

// Rules are evaluated top-down; the first rule with a keyword contained in
// the text wins. Order is significant: it breaks ties between topics.
// "maestria" is not a programs keyword, so "¿cuánto cuesta la maestría?" falls
// through to costs.
var Rules = []Rule{
	{models.CategoryPrograms, []string{
		"programa", "carrera", "posgrado", "pregrado", "especializacion", "doctorado",
		"diplomado", "oferta academica", "plan de estudio", "pensum",
	}},
	{models.CategoryAdmissions, []string{
		"admision", "inscripcion", "requisito", "ingreso", "postular", "aplicar",
		"matricula", "documentos",
	}},
	{models.CategoryContact, []string{
		"contacto", "telefono", "correo", "email", "whatsapp", "ubicacion",
		"direccion", "oficina", "comunicarme",
	}},
	{models.CategoryCosts, []string{
		"costo", "precio", "cuesta", "valor", "pago", "pagar", "arancel", "beca",
		"financiacion", "descuento",
	}},
	{models.CategorySchedule, []string{
		"horario", "fecha", "calendario", "cuando", "inicio", "duracion",
		"semestre", "jornada",
	}},
}

// Classify labels already-normalized text. Returns CategoryGeneral when no rule matches.
func Classify(normalized string) models.Category {
	if normalized == "" {
		return models.CategoryGeneral
	}
	for _, rule := range Rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(normalized, kw) {
				return rule.Label
			}
		}
	}
	return models.CategoryGeneral
}

// Detect normalizes raw text and classifies it.
func Detect(raw string) models.Category {
	return Classify(textnorm.Normalize(raw))
}
