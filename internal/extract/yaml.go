package extract

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/campusbot/internal/models"
)

type yamlSeed struct {
	Entries []models.KnowledgeInput `yaml:"entries"`
}

// extractYAML accepts either a top-level list of entries or {entries: [...]}.
func extractYAML(content []byte) ([]models.KnowledgeInput, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(trimmed, &node); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return nil, nil
	}
	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var rows []models.KnowledgeInput
		if err := root.Decode(&rows); err != nil {
			return nil, fmt.Errorf("decode YAML entries: %w", err)
		}
		return rows, nil
	case yaml.MappingNode:
		var seed yamlSeed
		if err := root.Decode(&seed); err != nil {
			return nil, fmt.Errorf("decode YAML entries: %w", err)
		}
		return seed.Entries, nil
	default:
		return nil, fmt.Errorf("YAML seed must be a list or a mapping with entries")
	}
}
