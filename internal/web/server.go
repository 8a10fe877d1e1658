package web

import (
	"bytes"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/renderinc/gitpress/internal/content"
	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/index"
	"github.com/renderinc/gitpress/internal/storage"
	"github.com/renderinc/gitpress/internal/store"
)

//go:embed templates/*.html
var templatesFS embed.FS

// RunLister reads the update-run journal
type RunLister interface {
	ListRuns(limit int) ([]*storage.Run, error)
}

// Options configures a Server
type Options struct {
	Journal     RunLister // Optional
	UpdateToken string    // Empty leaves POST /api/update open
	IndexSize   int       // Posts on the front page
	Location    *time.Location
	CacheSize   int // Rendered documents kept in memory
	Logger      *slog.Logger
}

type Server struct {
	store       *store.Store
	journal     RunLister
	updateToken string
	indexSize   int
	location    *time.Location
	templates   *template.Template
	markdown    goldmark.Markdown
	rendered    *lru.Cache[string, template.HTML]
	logger      *slog.Logger
}

func NewServer(st *store.Store, opts Options) (*Server, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	funcs := template.FuncMap{
		"date": func(t time.Time) string { return t.In(loc).Format("January 2, 2006") },
	}
	tmpl, err := template.New("").Funcs(funcs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error parsing templates: %w", err)
	}

	cacheSize := opts.CacheSize
	if cacheSize <= 0 {
		cacheSize = 256
	}
	rendered, err := lru.New[string, template.HTML](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create render cache: %w", err)
	}

	indexSize := opts.IndexSize
	if indexSize <= 0 {
		indexSize = 10
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		store:       st,
		journal:     opts.Journal,
		updateToken: opts.UpdateToken,
		indexSize:   indexSize,
		location:    loc,
		templates:   tmpl,
		markdown: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		),
		rendered: rendered,
		logger:   logger,
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// HTML views
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /archive/{year}", s.handleArchive)
	mux.HandleFunc("GET /archive/{year}/{month}", s.handleArchive)
	mux.HandleFunc("GET /authors/{key}", s.handleAuthor)
	mux.HandleFunc("GET /search", s.handleSearchPage)

	// JSON API
	mux.HandleFunc("GET /api/documents", s.handleListDocuments)
	mux.HandleFunc("GET /api/doc", s.handleGetDoc)
	mux.HandleFunc("GET /api/authors", s.handleListAuthors)
	mux.HandleFunc("GET /api/authors/{key}", s.handleAuthorDocuments)
	mux.HandleFunc("GET /api/archive", s.handleTimeRange)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/runs", s.handleRuns)
	mux.HandleFunc("POST /api/update", s.handleUpdate)
	mux.HandleFunc("GET /health", s.handleHealth)

	// Everything else is a document URL
	mux.HandleFunc("GET /", s.handleDocument)

	return mux
}

// documentView is the JSON shape of a document in listings
type documentView struct {
	*content.Document
	AuthorKey string `json:"author_key,omitempty"`
}

func views(docs []*content.Document) []documentView {
	out := make([]documentView, len(docs))
	for i, d := range docs {
		out[i] = documentView{Document: d, AuthorKey: d.AuthorKey()}
	}
	return out
}

type pageData struct {
	Title     string
	Heading   string
	Documents []*content.Document
	Document  *content.Document
	HTML      template.HTML
	Query     string
	Ready     bool
}

func (s *Server) render(w http.ResponseWriter, name string, status int, data pageData) {
	data.Ready = s.store.Ready()

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("error rendering template", "template", name, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, "index.html", http.StatusOK, pageData{
		Title:     "Latest posts",
		Documents: s.store.ListIndex(s.indexSize, true),
	})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil || year < 1 || year > 9999 {
		http.NotFound(w, r)
		return
	}

	from := time.Date(year, time.January, 1, 0, 0, 0, 0, s.location)
	to := from.AddDate(1, 0, 0)
	heading := strconv.Itoa(year)

	if m := r.PathValue("month"); m != "" {
		month, err := strconv.Atoi(m)
		if err != nil || month < 1 || month > 12 {
			http.NotFound(w, r)
			return
		}
		from = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.location)
		to = from.AddDate(0, 1, 0)
		heading = from.Format("January 2006")
	}

	s.render(w, "list.html", http.StatusOK, pageData{
		Title:     "Archive " + heading,
		Heading:   "Archive: " + heading,
		Documents: s.store.ListByTimeRange(from, to.Add(-time.Nanosecond)),
	})
}

func (s *Server) handleAuthor(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	docs := s.store.ListByAuthor(key)
	if len(docs) == 0 {
		s.render(w, "list.html", http.StatusNotFound, pageData{Title: "Unknown author", Heading: "No documents by " + key})
		return
	}
	s.render(w, "list.html", http.StatusOK, pageData{
		Title:     docs[0].Author.Name,
		Heading:   "Written by " + docs[0].Author.Name,
		Documents: docs,
	})
}

func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	data := pageData{Title: "Search", Heading: "Search", Query: query}
	if query != "" {
		hits, err := s.store.Search(query, 20)
		if err != nil {
			s.render(w, "list.html", http.StatusBadRequest, pageData{Title: "Search", Heading: "Invalid query", Query: query})
			return
		}
		for _, h := range hits {
			data.Documents = append(data.Documents, h.Document)
		}
		data.Heading = fmt.Sprintf("%d results for %q", len(hits), query)
	}
	s.render(w, "list.html", http.StatusOK, data)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	gen := s.store.Generation()
	if gen == nil {
		s.render(w, "list.html", http.StatusServiceUnavailable, pageData{Title: "Starting", Heading: "Content is still loading"})
		return
	}

	doc, ok := gen.Lookup(r.URL.Path)
	if !ok {
		s.render(w, "list.html", http.StatusNotFound, pageData{Title: "Not found", Heading: "Page not found"})
		return
	}

	cacheKey := gen.ID.String() + doc.URL
	html, ok := s.rendered.Get(cacheKey)
	if !ok {
		var buf bytes.Buffer
		if err := s.markdown.Convert([]byte(doc.Body), &buf); err != nil {
			s.logger.Error("failed to render markdown", "path", doc.Path, "error", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		html = template.HTML(buf.String())
		s.rendered.Add(cacheKey, html)
	}

	s.render(w, "document.html", http.StatusOK, pageData{Title: doc.Title, Document: doc, HTML: html})
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	count := 0
	if c := r.URL.Query().Get("count"); c != "" {
		n, err := strconv.Atoi(c)
		if err != nil {
			writeError(w, http.StatusBadRequest, "", "count must be an integer")
			return
		}
		count = n
	}
	newestFirst := r.URL.Query().Get("order") != "oldest"

	writeJSON(w, http.StatusOK, views(s.store.ListIndex(count, newestFirst)))
}

func (s *Server) handleGetDoc(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		writeError(w, http.StatusBadRequest, "", "Missing url parameter")
		return
	}

	doc, ok := s.store.LookupByURL(url)
	if !ok {
		writeError(w, http.StatusNotFound, "", "Document not found")
		return
	}

	if r.URL.Query().Get("format") == "md" {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Write([]byte(doc.Content))
		return
	}

	writeJSON(w, http.StatusOK, struct {
		documentView
		Body string `json:"body"`
	}{documentView{Document: doc, AuthorKey: doc.AuthorKey()}, doc.Body})
}

func (s *Server) handleListAuthors(w http.ResponseWriter, r *http.Request) {
	authors := s.store.Authors()
	if authors == nil {
		authors = []index.AuthorSummary{}
	}
	writeJSON(w, http.StatusOK, authors)
}

func (s *Server) handleAuthorDocuments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, views(s.store.ListByAuthor(r.PathValue("key"))))
}

func (s *Server) handleTimeRange(w http.ResponseWriter, r *http.Request) {
	from, err := s.parseTime(r.URL.Query().Get("from"), false)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "from: "+err.Error())
		return
	}
	to, err := s.parseTime(r.URL.Query().Get("to"), true)
	if err != nil {
		writeError(w, http.StatusBadRequest, "", "to: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, views(s.store.ListByTimeRange(from, to)))
}

// parseTime accepts RFC 3339 timestamps or dates in the configured zone.
// A date used as an upper bound covers the whole day.
func (s *Server) parseTime(v string, upper bool) (time.Time, error) {
	if v == "" {
		if upper {
			return time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC), nil
		}
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, s.location)
	if err != nil {
		return time.Time{}, errors.New("expected RFC 3339 time or YYYY-MM-DD")
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return t, nil
}

type searchHit struct {
	documentView
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "", "Missing q parameter")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	hits, err := s.store.Search(query, limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, errs.Kind(err), err.Error())
		return
	}

	out := make([]searchHit, len(hits))
	for i, h := range hits {
		out[i] = searchHit{
			documentView: documentView{Document: h.Document, AuthorKey: h.Document.AuthorKey()},
			Score:        h.Score,
			Fragments:    h.Fragments,
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeJSON(w, http.StatusOK, []*storage.Run{})
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	runs, err := s.journal.ListRuns(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "", fmt.Sprintf("Error listing runs: %v", err))
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusForbidden, "permission", "invalid update token")
		return
	}

	gen, err := s.store.TriggerUpdate(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		s.logger.Warn("update failed", "error", err)
		writeError(w, StatusFor(err), errs.Kind(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"generation": gen.ID,
		"head":       gen.Head,
		"documents":  gen.Len(),
		"built_at":   gen.BuiltAt,
	})
}

func (s *Server) authorized(r *http.Request) bool {
	if s.updateToken == "" {
		return true
	}
	token := r.URL.Query().Get("token")
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		token = strings.TrimPrefix(h, "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.updateToken)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	status := http.StatusOK

	if gen := s.store.Generation(); gen != nil {
		resp["generation"] = gen.ID
		resp["head"] = gen.Head
		resp["documents"] = gen.Len()
		resp["built_at"] = gen.BuiltAt
	} else {
		resp["status"] = "starting"
		status = http.StatusServiceUnavailable
	}

	if at, err := s.store.LastFailure(); err != nil {
		resp["last_error"] = err.Error()
		resp["last_error_kind"] = errs.Kind(err)
		resp["last_error_at"] = at
	}

	writeJSON(w, status, resp)
}

// StatusFor maps an update failure to an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrAuth):
		return http.StatusBadGateway
	case errors.Is(err, errs.ErrNetwork):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	body := map[string]string{"error": msg}
	if kind != "" {
		body["kind"] = kind
	}
	writeJSON(w, status, body)
}
