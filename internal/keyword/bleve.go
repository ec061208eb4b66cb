package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/campusbot/internal/models"
	"github.com/hyperjump/campusbot/internal/textnorm"
)

const (
	fieldQuestion = "question"
	fieldAnswer   = "answer"
	fieldKeywords = "keywords"
	fieldCategory = "category"
	fieldActive   = "active"
)

// indexedEntry is the document stored in bleve. Text fields hold normalized
// text so accented and unaccented spellings match.
type indexedEntry struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Keywords string `json:"keywords"`
	Category string `json:"category"`
	Active   string `json:"active"`
}

// BleveIndex implements Index using Bleve.
type BleveIndex struct {
	index bleve.Index
}

func newMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer, no stemming: input is already normalized Spanish text.
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldQuestion, text)
	docMapping.AddFieldMappingsAt(fieldAnswer, text)
	docMapping.AddFieldMappingsAt(fieldKeywords, text)

	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keywordanalyzer.Name
	docMapping.AddFieldMappingsAt(fieldCategory, exact)
	docMapping.AddFieldMappingsAt(fieldActive, exact)

	im.AddDocumentMapping("knowledge", docMapping)
	im.DefaultType = "knowledge"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return &BleveIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index adds or replaces entry in the index.
func (b *BleveIndex) Index(ctx context.Context, entry *models.KnowledgeEntry) error {
	doc := indexedEntry{
		Question: textnorm.Normalize(entry.Question),
		Answer:   textnorm.Normalize(entry.Answer),
		Keywords: textnorm.Normalize(strings.Join(entry.Keywords, " ")),
		Category: string(entry.Category),
		Active:   fmt.Sprint(entry.Active),
	}
	return b.index.Index(entry.ID, doc)
}

// Search runs query over question, answer, and keywords and returns up to
// limit hits. With field boosts, per-field scores are added and weighted by the
// share of query terms each entry matches.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error) {
	if opts == nil {
		opts = &SearchOptions{}
	}
	terms := textnorm.Tokenize(query)
	if len(terms) == 0 {
		terms = textnorm.Words(query)
	}
	if len(terms) == 0 || limit <= 0 {
		return nil, nil
	}
	fuzziness := opts.Fuzziness
	if fuzziness <= 0 {
		fuzziness = 1
	}

	questionBoost := opts.QuestionBoost
	keywordBoost := opts.KeywordBoost
	if questionBoost <= 1 && keywordBoost <= 1 {
		q := b.filtered(b.termsQuery(terms, "", opts.FuzzyEnabled, fuzziness), opts)
		return b.run(q, limit)
	}
	if questionBoost < 1 {
		questionBoost = 1
	}
	if keywordBoost < 1 {
		keywordBoost = 1
	}
	return b.searchWithBoosts(terms, limit, map[string]float64{
		fieldQuestion: questionBoost,
		fieldKeywords: keywordBoost,
		fieldAnswer:   1,
	}, opts, fuzziness)
}

func (b *BleveIndex) run(q blevequery.Query, limit int) ([]*Result, error) {
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	res, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(res.Hits))
	for i, hit := range res.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// searchWithBoosts scores each field separately and merges:
// score = sum(fieldScore * boost) * coverage^2, coverage = matched terms / query terms.
func (b *BleveIndex) searchWithBoosts(terms []string, limit int, boosts map[string]float64, opts *SearchOptions, fuzziness int) ([]*Result, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	scores := make(map[string]float64)
	for field, boost := range boosts {
		q := b.filtered(b.termsQuery(terms, field, opts.FuzzyEnabled, fuzziness), opts)
		hits, err := b.run(q, reqSize)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			scores[h.ID] += h.Score * boost
		}
	}

	coverage := make(map[string]int)
	if len(terms) > 1 {
		for _, term := range terms {
			q := b.filtered(b.termsQuery([]string{term}, "", opts.FuzzyEnabled, fuzziness), opts)
			hits, err := b.run(q, reqSize)
			if err != nil {
				continue
			}
			for _, h := range hits {
				coverage[h.ID]++
			}
		}
	}

	merged := make([]*Result, 0, len(scores))
	for id, score := range scores {
		if len(terms) > 1 {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			score *= c * c
		}
		merged = append(merged, &Result{ID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// termsQuery matches any of terms. An empty field searches all text fields.
func (b *BleveIndex) termsQuery(terms []string, field string, fuzzy bool, fuzziness int) blevequery.Query {
	fields := []string{fieldQuestion, fieldAnswer, fieldKeywords}
	if field != "" {
		fields = []string{field}
	}
	queries := make([]blevequery.Query, 0, len(terms)*len(fields))
	for _, term := range terms {
		for _, f := range fields {
			if fuzzy {
				fq := bleve.NewFuzzyQuery(term)
				fq.SetFuzziness(fuzziness)
				fq.SetField(f)
				queries = append(queries, fq)
				continue
			}
			mq := bleve.NewMatchQuery(term)
			mq.SetField(f)
			queries = append(queries, mq)
		}
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// filtered restricts q to active entries and, optionally, one category.
func (b *BleveIndex) filtered(q blevequery.Query, opts *SearchOptions) blevequery.Query {
	must := []blevequery.Query{q}
	if !opts.IncludeInactive {
		tq := bleve.NewTermQuery("true")
		tq.SetField(fieldActive)
		must = append(must, tq)
	}
	if opts.Category != nil {
		tq := bleve.NewTermQuery(string(*opts.Category))
		tq.SetField(fieldCategory)
		must = append(must, tq)
	}
	if len(must) == 1 {
		return q
	}
	return bleve.NewConjunctionQuery(must...)
}

// Delete removes an entry from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// DocCount returns the number of indexed entries.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}
