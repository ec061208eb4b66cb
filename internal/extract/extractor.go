// Package extract reads knowledge seed rows from YAML, Excel, and CSV files.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyperjump/campusbot/internal/models"
)

// SupportedExtensions lists the seed formats Extract understands.
var SupportedExtensions = []string{".yaml", ".yml", ".xlsx", ".csv"}

// Supported reports whether ext (with leading dot, any case) is a seed format.
func Supported(ext string) bool {
	ext = strings.ToLower(ext)
	for _, s := range SupportedExtensions {
		if s == ext {
			return true
		}
	}
	return false
}

// Extractor turns seed files into knowledge inputs.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its rows in file order.
// Rows with neither question nor answer are dropped; all other validation is
// left to the caller.
func (e *Extractor) Extract(path string) ([]models.KnowledgeInput, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, strings.ToLower(filepath.Ext(path)))
}

// ExtractBytes parses content based on the given extension (with leading dot).
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]models.KnowledgeInput, error) {
	var (
		rows []models.KnowledgeInput
		err  error
	)
	switch ext {
	case ".yaml", ".yml":
		rows, err = extractYAML(content)
	case ".xlsx":
		rows, err = extractExcel(content)
	case ".csv":
		rows, err = extractCSV(content)
	default:
		return nil, fmt.Errorf("unsupported seed format %q", ext)
	}
	if err != nil {
		return nil, err
	}
	out := rows[:0]
	for _, r := range rows {
		r.Question = cleanText(r.Question)
		r.Answer = cleanText(r.Answer)
		if r.Question == "" && r.Answer == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
