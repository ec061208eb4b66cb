package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/hyperjump/campusbot/internal/models"
)

// extractCSV reads comma separated rows; semicolon is used when the first line has no comma.
func extractCSV(content []byte) ([]models.KnowledgeInput, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	first, _, _ := bytes.Cut(content, []byte("\n"))
	if !bytes.ContainsRune(first, ',') && bytes.ContainsRune(first, ';') {
		r.Comma = ';'
	}
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse CSV: %w", err)
	}
	return rowsToInputs(rows), nil
}
