// Package index builds immutable, query-ready generations of documents.
//
// A Generation stores every document once, in creation order, and answers
// URL, author, time range and full-text queries through position lists
// into that arena. Generations are never modified after Build returns, so
// any number of goroutines may read one concurrently.
package index

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/search"
)

// Options carries generation metadata
type Options struct {
	Head    string // Commit the documents were extracted from
	BuiltAt time.Time
}

// Generation is one immutable, consistent set of documents
type Generation struct {
	ID      uuid.UUID
	Head    string
	BuiltAt time.Time

	docs     []*content.Document
	byURL    map[string]int
	byAuthor map[string][]int
	posts    []int
	search   *search.Index
}

// AuthorSummary describes one author key
type AuthorSummary struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

// Hit is one full-text search match
type Hit struct {
	Document  *content.Document   `json:"document"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

// Less is the primary document order: creation time, then title, then path
func Less(a, b *content.Document) bool {
	if !a.CreateTime.Equal(b.CreateTime) {
		return a.CreateTime.Before(b.CreateTime)
	}
	if a.Title != b.Title {
		return a.Title < b.Title
	}
	return a.Path < b.Path
}

// Build sorts docs and derives every lookup structure. Two documents that
// expand to the same URL are an index error.
func Build(docs []*content.Document, opts Options) (*Generation, error) {
	sorted := make([]*content.Document, len(docs))
	copy(sorted, docs)
	sort.SliceStable(sorted, func(i, j int) bool { return Less(sorted[i], sorted[j]) })

	builtAt := opts.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now()
	}

	g := &Generation{
		ID:       uuid.New(),
		Head:     opts.Head,
		BuiltAt:  builtAt,
		docs:     sorted,
		byURL:    make(map[string]int, len(sorted)),
		byAuthor: make(map[string][]int),
	}

	indexed := make([]*search.IndexedDocument, 0, len(sorted))
	for pos, doc := range sorted {
		if prev, ok := g.byURL[doc.URL]; ok {
			return nil, fmt.Errorf("%w: %s and %s both map to %s", errs.ErrIndex, sorted[prev].Path, doc.Path, doc.URL)
		}
		g.byURL[doc.URL] = pos

		if key := doc.AuthorKey(); key != "" {
			g.byAuthor[key] = append(g.byAuthor[key], pos)
		}
		if doc.Kind == content.KindPost {
			g.posts = append(g.posts, pos)
		}

		entry := &search.IndexedDocument{
			Position: pos,
			Kind:     doc.Kind.String(),
			Title:    doc.Title,
			Content:  doc.Body,
			URL:      doc.URL,
		}
		if doc.Author != nil {
			entry.Author = doc.Author.Name
		}
		indexed = append(indexed, entry)
	}

	idx, err := buildSearchIndex(indexed)
	if err != nil {
		return nil, err
	}
	g.search = idx

	return g, nil
}

// buildSearchIndex indexes entries into a fresh in-memory index. Every entry
// must land under its own position; the index is closed when it is not
// returned.
func buildSearchIndex(entries []*search.IndexedDocument) (*search.Index, error) {
	idx, err := search.New()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrIndex, err)
	}
	if err := idx.IndexDocuments(entries); err != nil {
		idx.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIndex, err)
	}
	n, err := idx.Count()
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("%w: %v", errs.ErrIndex, err)
	}
	if n != uint64(len(entries)) {
		idx.Close()
		return nil, fmt.Errorf("%w: indexed %d of %d documents", errs.ErrIndex, n, len(entries))
	}
	return idx, nil
}

// Len returns the number of documents
func (g *Generation) Len() int {
	return len(g.docs)
}

// Documents returns every document in primary order
func (g *Generation) Documents() []*content.Document {
	out := make([]*content.Document, len(g.docs))
	copy(out, g.docs)
	return out
}

// Lookup finds the document served at url
func (g *Generation) Lookup(url string) (*content.Document, bool) {
	pos, ok := g.byURL[url]
	if !ok {
		return nil, false
	}
	return g.docs[pos], true
}

// URLs returns every URL in primary document order
func (g *Generation) URLs() []string {
	urls := make([]string, len(g.docs))
	for i, d := range g.docs {
		urls[i] = d.URL
	}
	return urls
}

// Posts returns up to count posts; count <= 0 returns all of them
func (g *Generation) Posts(count int, newestFirst bool) []*content.Document {
	n := len(g.posts)
	if count > 0 && count < n {
		n = count
	}

	out := make([]*content.Document, 0, n)
	for i := 0; i < n; i++ {
		pos := g.posts[i]
		if newestFirst {
			pos = g.posts[len(g.posts)-1-i]
		}
		out = append(out, g.docs[pos])
	}
	return out
}

// ByAuthor returns the posts and pages created by the author with key,
// oldest first. The key may be either a slug or a display name.
func (g *Generation) ByAuthor(key string) []*content.Document {
	return g.collect(g.byAuthor[content.Slugify(key)])
}

// Authors lists every author key, sorted by key
func (g *Generation) Authors() []AuthorSummary {
	out := make([]AuthorSummary, 0, len(g.byAuthor))
	for key, positions := range g.byAuthor {
		out = append(out, AuthorSummary{
			Key:       key,
			Name:      g.docs[positions[0]].Author.Name,
			Documents: len(positions),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// TimeRange returns posts created within [from, to], oldest first
func (g *Generation) TimeRange(from, to time.Time) []*content.Document {
	if to.Before(from) {
		return nil
	}
	lo := sort.Search(len(g.posts), func(i int) bool {
		return !g.docs[g.posts[i]].CreateTime.Before(from)
	})
	hi := sort.Search(len(g.posts), func(i int) bool {
		return g.docs[g.posts[i]].CreateTime.After(to)
	})
	if lo >= hi {
		return nil
	}
	return g.collect(g.posts[lo:hi])
}

// Search runs a full-text query over titles, bodies and authors
func (g *Generation) Search(query string, limit int) ([]Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	results, err := g.search.Search(query, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrQuery, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r.Position < 0 || r.Position >= len(g.docs) {
			continue
		}
		hits = append(hits, Hit{Document: g.docs[r.Position], Score: r.Score, Fragments: r.Fragments})
	}
	return hits, nil
}

func (g *Generation) collect(positions []int) []*content.Document {
	out := make([]*content.Document, len(positions))
	for i, pos := range positions {
		out[i] = g.docs[pos]
	}
	return out
}
