// Package keyword provides literal and regexp matching over indexed chunk
// text, complementing the semantic side of the pipeline.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// MatchResult is a single literal-match hit.
type MatchResult struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Matcher indexes chunk text in Bleve and answers match and regexp queries.
type Matcher struct {
	index bleve.Index
}

type chunkDoc struct {
	Text string `json:"text"`
}

func indexMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so literal
	// queries match the exact word.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewMatcher creates or opens a Bleve index at path. An empty path builds an
// in-memory index, used by tests and the one-shot CLI commands.
func NewMatcher(path string) (*Matcher, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(indexMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory index: %w", err)
		}
		return &Matcher{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open keyword index: %w", openErr)
		}
		return &Matcher{index: index}, nil
	}
	index, err := bleve.New(path, indexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create keyword index: %w", err)
	}
	return &Matcher{index: index}, nil
}

// Index adds or replaces one chunk's text under id.
func (m *Matcher) Index(ctx context.Context, id, text string) error {
	return m.index.Index(id, chunkDoc{Text: text})
}

// IndexBatch adds texts keyed by id in one Bleve batch.
func (m *Matcher) IndexBatch(ctx context.Context, texts map[string]string) error {
	batch := m.index.NewBatch()
	for id, text := range texts {
		if err := batch.Index(id, chunkDoc{Text: text}); err != nil {
			return fmt.Errorf("failed to batch chunk %s: %w", id, err)
		}
	}
	return m.index.Batch(batch)
}

// Match runs a term match query and returns up to limit hits, best first.
func (m *Matcher) Match(ctx context.Context, query string, limit int) ([]*MatchResult, error) {
	q := bleve.NewMatchQuery(query)
	q.SetField("text")
	return m.run(bleve.NewSearchRequest(q), limit)
}

// MatchRegexp runs a regexp query over the indexed terms. Terms are
// lowercased by the analyzer, so the pattern is lowercased to match.
func (m *Matcher) MatchRegexp(ctx context.Context, pattern string, limit int) ([]*MatchResult, error) {
	q := bleve.NewRegexpQuery(strings.ToLower(pattern))
	q.SetField("text")
	return m.run(bleve.NewSearchRequest(q), limit)
}

func (m *Matcher) run(req *bleve.SearchRequest, limit int) ([]*MatchResult, error) {
	if limit <= 0 {
		limit = 10
	}
	req.Size = limit
	req.Fields = []string{"text"}
	results, err := m.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	out := make([]*MatchResult, len(results.Hits))
	for i, hit := range results.Hits {
		r := &MatchResult{ID: hit.ID, Score: hit.Score}
		if text, ok := hit.Fields["text"].(string); ok {
			r.Text = text
		}
		out[i] = r
	}
	return out, nil
}

// Delete removes a chunk from the index.
func (m *Matcher) Delete(ctx context.Context, id string) error {
	return m.index.Delete(id)
}

// DocCount returns the number of indexed chunks.
func (m *Matcher) DocCount() (uint64, error) {
	return m.index.DocCount()
}

// Close closes the underlying index.
func (m *Matcher) Close() error {
	return m.index.Close()
}
