package extract

import (
	"strings"

	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/textnorm"
)

// columnAliases maps normalized header names to seed fields.
var columnAliases = map[string]string{
	"question":       "question",
	"pregunta":       "question",
	"answer":         "answer",
	"respuesta":      "answer",
	"category":       "category",
	"categoria":      "category",
	"keywords":       "keywords",
	"palabras clave": "keywords",
	"id":             "id",
	"active":         "active",
	"activo":         "active",
}

// rowsToInputs maps a header row plus data rows to inputs. Without a
// recognizable header, columns are read positionally as question, answer,
// category, keywords and every row is data.
func rowsToInputs(rows [][]string) []models.KnowledgeInput {
	if len(rows) == 0 {
		return nil
	}
	columns := headerColumns(rows[0])
	data := rows[1:]
	if columns == nil {
		columns = map[string]int{"question": 0, "answer": 1, "category": 2, "keywords": 3}
		data = rows
	}
	cell := func(row []string, field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}
	out := make([]models.KnowledgeInput, 0, len(data))
	for _, row := range data {
		out = append(out, models.KnowledgeInput{
			ID:       cleanText(cell(row, "id")),
			Question: cell(row, "question"),
			Answer:   cell(row, "answer"),
			Category: cleanText(cell(row, "category")),
			Keywords: splitKeywords(cell(row, "keywords")),
			Active:   parseActive(cell(row, "active")),
		})
	}
	return out
}

// headerColumns returns field -> column index, or nil when row lacks a
// question or answer header.
func headerColumns(row []string) map[string]int {
	columns := make(map[string]int)
	for i, h := range row {
		field, ok := columnAliases[strings.TrimSpace(textnorm.Normalize(h))]
		if !ok {
			continue
		}
		if _, dup := columns[field]; !dup {
			columns[field] = i
		}
	}
	_, hasQ := columns["question"]
	_, hasA := columns["answer"]
	if !hasQ || !hasA {
		return nil
	}
	return columns
}
