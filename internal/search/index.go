package search

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Index wraps an in-memory Bleve index over one generation's documents.
// Documents are keyed by their position in the generation.
type Index struct {
	index bleve.Index
}

// IndexedDocument represents a document in the search index
type IndexedDocument struct {
	Position int `json:"-"`
	Kind     string
	Title    string
	Content  string
	Author   string
	URL      string
}

// SearchResult represents a search result
type SearchResult struct {
	Position  int                 `json:"-"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"` // Highlighted snippets
}

// New creates an empty in-memory index
func New() (*Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return &Index{index: idx}, nil
}

// buildIndexMapping creates a custom index mapping with English stemming on titles
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	keywordFieldMapping.IncludeInAll = false

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("Kind", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Title", titleFieldMapping)
	docMapping.AddFieldMappingsAt("Content", textFieldMapping)
	docMapping.AddFieldMappingsAt("Author", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("URL", keywordFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

// IndexDocuments adds docs in a single batch
func (i *Index) IndexDocuments(docs []*IndexedDocument) error {
	batch := i.index.NewBatch()
	for _, doc := range docs {
		if err := batch.Index(strconv.Itoa(doc.Position), doc); err != nil {
			return fmt.Errorf("batch index %s: %w", doc.URL, err)
		}
	}

	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Search runs a query string query (quotes, +/-, fuzzy ~) and returns
// matching positions, best first.
func (i *Index) Search(queryStr string, limit int) ([]*SearchResult, error) {
	query := bleve.NewQueryStringQuery(queryStr)

	search := bleve.NewSearchRequestOptions(query, limit, 0, false)
	search.Highlight = bleve.NewHighlightWithStyle("html")

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		pos, err := strconv.Atoi(hit.ID)
		if err != nil {
			return nil, fmt.Errorf("search: unexpected document id %q", hit.ID)
		}
		searchResults = append(searchResults, &SearchResult{
			Position:  pos,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		})
	}

	return searchResults, nil
}

// Count returns the number of documents in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
