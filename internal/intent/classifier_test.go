package intent

import (
	"testing"

	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/textnorm"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want models.Category
	}{
		{"admissions with accent", "Requisitos de admisión", models.CategoryAdmissions},
		{"admissions normalized", "requisitos de admision", models.CategoryAdmissions},
		{"costs for master degree", "¿Cuánto cuesta la maestría?", models.CategoryCosts},
		{"programs", "¿Qué programas de posgrado ofrecen?", models.CategoryPrograms},
		{"contact", "¿Cuál es el teléfono de la oficina?", models.CategoryContact},
		{"schedule", "¿Cuándo inician las clases?", models.CategorySchedule},
		{"general", "Hola, buenos días", models.CategoryGeneral},
		{"empty", "", models.CategoryGeneral},
		{"programs beats admissions", "Requisitos de la especialización en automatización", models.CategoryPrograms},
		{"admissions beats costs", "¿Cuál es el precio de la inscripción?", models.CategoryAdmissions},
		{"contact beats schedule", "Horario de atención y correo de contacto", models.CategoryContact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.in); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRulesPinned(t *testing.T) {
	want := map[models.Category][]string{
		models.CategoryPrograms:   {"programa", "carrera", "posgrado", "pregrado", "especializacion", "doctorado", "diplomado", "oferta academica", "plan de estudio", "pensum"},
		models.CategoryAdmissions: {"admision", "inscripcion", "requisito", "ingreso", "postular", "aplicar", "matricula", "documentos"},
		models.CategoryContact:    {"contacto", "telefono", "correo", "email", "whatsapp", "ubicacion", "direccion", "oficina", "comunicarme"},
		models.CategoryCosts:      {"costo", "precio", "cuesta", "valor", "pago", "pagar", "arancel", "beca", "financiacion", "descuento"},
		models.CategorySchedule:   {"horario", "fecha", "calendario", "cuando", "inicio", "duracion", "semestre", "jornada"},
	}
	order := []models.Category{models.CategoryPrograms, models.CategoryAdmissions, models.CategoryContact, models.CategoryCosts, models.CategorySchedule}
	if len(Rules) != len(order) {
		t.Fatalf("len(Rules) = %d, want %d", len(Rules), len(order))
	}
	for i, rule := range Rules {
		if rule.Label != order[i] {
			t.Errorf("Rules[%d].Label = %q, want %q", i, rule.Label, order[i])
		}
		kws := want[rule.Label]
		if len(rule.Keywords) != len(kws) {
			t.Errorf("%s keywords = %v, want %v", rule.Label, rule.Keywords, kws)
			continue
		}
		for j := range kws {
			if rule.Keywords[j] != kws[j] {
				t.Errorf("%s keyword[%d] = %q, want %q", rule.Label, j, rule.Keywords[j], kws[j])
			}
			if textnorm.Normalize(kws[j]) != kws[j] {
				t.Errorf("keyword %q is not normalized", kws[j])
			}
		}
	}
}
