package content

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/adrg/frontmatter"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"golang.org/x/sync/errgroup"

	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/history"
)

// Scope selects which repository paths become documents of one kind
type Scope struct {
	Kind    Kind
	Glob    string // doublestar pattern relative to the repository root
	Pattern Pattern
}

// Match reports whether p is in scope
func (s Scope) Match(p string) bool {
	ok, err := doublestar.Match(s.Glob, p)
	return err == nil && ok
}

// LoaderOptions configures a Loader
type LoaderOptions struct {
	Scopes   []Scope
	Location *time.Location
	Workers  int // Decode concurrency (0 = 4)
}

// Loader materialises documents from a head tree and resolved provenance
type Loader struct {
	scopes   []Scope
	location *time.Location
	workers  int
}

// NewLoader creates a loader. Every glob must be a valid doublestar pattern.
func NewLoader(opts LoaderOptions) (*Loader, error) {
	for _, s := range opts.Scopes {
		if !doublestar.ValidatePattern(s.Glob) {
			return nil, fmt.Errorf("%w: invalid %s glob %q", errs.ErrConfig, s.Kind, s.Glob)
		}
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	return &Loader{scopes: opts.Scopes, location: loc, workers: workers}, nil
}

type pending struct {
	scope  Scope
	path   string
	record *history.Record
	raw    []byte
}

// Load reads every in-scope file of tree and builds its document.
// Records for paths absent from tree or out of scope are ignored; an
// in-scope file without a record is a repository error.
func (l *Loader) Load(ctx context.Context, tree *object.Tree, records map[string]*history.Record) ([]*Document, error) {
	var work []pending

	// Blob reads share the repository storer and stay on this goroutine
	err := tree.Files().ForEach(func(f *object.File) error {
		if f.Mode == filemode.Symlink || f.Mode == filemode.Submodule {
			return nil
		}
		scope, ok := l.scopeOf(f.Name)
		if !ok {
			return nil
		}

		rec, ok := records[f.Name]
		if !ok {
			return fmt.Errorf("%w: no history for %s", errs.ErrRepository, f.Name)
		}

		raw, err := readBlob(f)
		if err != nil {
			return fmt.Errorf("%w: read %s: %v", errs.ErrRepository, f.Name, err)
		}

		work = append(work, pending{scope: scope, path: f.Name, record: rec, raw: raw})
		return ctx.Err()
	})
	if err != nil {
		return nil, err
	}

	docs := make([]*Document, len(work))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for i := range work {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := l.decode(work[i])
			if err != nil {
				return err
			}
			docs[i] = doc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return docs, nil
}

// scopeOf returns the first scope matching p
func (l *Loader) scopeOf(p string) (Scope, bool) {
	for _, s := range l.scopes {
		if s.Match(p) {
			return s, true
		}
	}
	return Scope{}, false
}

func readBlob(f *object.File) ([]byte, error) {
	r, err := f.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func (l *Loader) decode(p pending) (*Document, error) {
	if !utf8.Valid(p.raw) {
		return nil, fmt.Errorf("%w: %s is not valid UTF-8", errs.ErrEncoding, p.path)
	}

	meta := map[string]any{}
	body, err := frontmatter.Parse(bytes.NewReader(p.raw), &meta)
	if err != nil {
		return nil, fmt.Errorf("%w: front matter of %s: %v", errs.ErrEncoding, p.path, err)
	}
	if len(meta) == 0 {
		meta = nil
	} else {
		meta = normalize(meta).(map[string]any)
	}

	title := strings.TrimSuffix(path.Base(p.path), path.Ext(p.path))
	slug := Slugify(title)
	if slug == "" {
		return nil, fmt.Errorf("%w: %s has an empty slug", errs.ErrIndex, p.path)
	}

	created := p.record.Created.In(l.location)
	doc := &Document{
		Kind:       p.scope.Kind,
		Path:       p.path,
		Title:      title,
		Slug:       slug,
		URL:        p.scope.Pattern.Expand(slug, created),
		Content:    string(p.raw),
		Body:       string(body),
		Meta:       meta,
		CreateTime: created,
		ModifyTime: p.record.Modified.In(l.location),
	}
	if p.record.Author.Name != "" {
		doc.Author = &Author{Name: p.record.Author.Name, Email: p.record.Author.Email}
	}

	return doc, nil
}

// normalize rewrites YAML's map[interface{}]interface{} values into
// map[string]any so metadata encodes as JSON.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalize(val)
		}
		return t
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = normalize(val)
		}
		return m
	case []any:
		for i, val := range t {
			t[i] = normalize(val)
		}
		return t
	default:
		return v
	}
}
