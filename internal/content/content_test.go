package content

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/gitpress/internal/errs"
	"github.com/renderinc/gitpress/internal/gittest"
	"github.com/renderinc/gitpress/internal/history"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello World":       "hello-world",
		"Héllo Wörld":       "hello-world",
		"  leading spaces":  "leading-spaces",
		"trailing!!!":       "trailing",
		"Go 1.24 release":   "go-1-24-release",
		"already-a-slug":    "already-a-slug",
		"under_score":       "under-score",
		"한국어":               "한국어",
		"!!!":               "",
		"Ünïcödé & Friends": "unicode-friends",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), "Slugify(%q)", in)
	}
}

func TestParsePatternErrors(t *testing.T) {
	bad := []string{
		"{slug}",
		"/posts/{title}",
		"/posts/{slug",
		"/posts/slug}",
		"/{year}/{month}",
	}
	for _, raw := range bad {
		_, err := ParsePattern(raw)
		assert.ErrorIs(t, err, errs.ErrConfig, raw)
	}
}

func TestPatternExpand(t *testing.T) {
	at := time.Date(2024, time.March, 5, 10, 0, 0, 0, time.UTC)

	p := MustParsePattern("/{year}/{month}/{day}/{slug}")
	assert.Equal(t, "/2024/3/5/hello", p.Expand("hello", at))
	assert.Equal(t, "/{year}/{month}/{day}/{slug}", p.String())

	assert.Equal(t, "/hello.html", MustParsePattern("/{slug}.html").Expand("hello", at))
	assert.Equal(t, "/pages/about/", MustParsePattern("/pages/{slug}/").Expand("about", at))
}

func TestPatternUsesLocalDate(t *testing.T) {
	// 23:30 UTC on the 5th is already the 6th in Tokyo
	tokyo := time.FixedZone("JST", 9*3600)
	at := time.Date(2024, time.March, 5, 23, 30, 0, 0, time.UTC).In(tokyo)

	assert.Equal(t, "/2024/3/6/x", MustParsePattern("/{year}/{month}/{day}/{slug}").Expand("x", at))
}

func testScopes() []Scope {
	return []Scope{
		{Kind: KindPost, Glob: "posts/*.md", Pattern: MustParsePattern("/{year}/{month}/{slug}")},
		{Kind: KindPage, Glob: "pages/*.md", Pattern: MustParsePattern("/{slug}")},
	}
}

func record(p string, created, modified int64, author string) *history.Record {
	return &history.Record{
		Path:     p,
		Author:   history.Signature{Name: author, Email: author + "@example.com"},
		Created:  time.Unix(created, 0).UTC(),
		Modified: time.Unix(modified, 0).UTC(),
	}
}

func TestLoaderBuildsDocuments(t *testing.T) {
	r := gittest.New(t)
	r.Write("posts/Hello World.md", "---\ntags: [go, git]\nextra:\n  draft: false\n---\n# Hi\n")
	r.Write("pages/About.md", "plain page\n")
	r.Write("README.md", "not content\n")
	r.Write("posts/nested/deep.md", "out of scope\n")
	head := r.Commit("alice", 1000)

	loader, err := NewLoader(LoaderOptions{Scopes: testScopes(), Location: time.UTC})
	require.NoError(t, err)

	records := map[string]*history.Record{
		"posts/Hello World.md": record("posts/Hello World.md", 1709596800, 1709600000, "alice"),
		"pages/About.md":       record("pages/About.md", 1000, 2000, ""),
		"posts/removed.md":     record("posts/removed.md", 1000, 1000, "bob"),
	}

	docs, err := loader.Load(context.Background(), r.Tree(head), records)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	byPath := map[string]*Document{}
	for _, d := range docs {
		byPath[d.Path] = d
	}

	post := byPath["posts/Hello World.md"]
	require.NotNil(t, post)
	assert.Equal(t, KindPost, post.Kind)
	assert.Equal(t, "Hello World", post.Title)
	assert.Equal(t, "hello-world", post.Slug)
	assert.Equal(t, "/2024/3/hello-world", post.URL)
	assert.Equal(t, "# Hi\n", post.Body)
	assert.Contains(t, post.Content, "tags:")
	assert.Equal(t, []any{"go", "git"}, post.Meta["tags"])
	assert.Equal(t, map[string]any{"draft": false}, post.Meta["extra"])
	require.NotNil(t, post.Author)
	assert.Equal(t, "alice", post.Author.Name)
	assert.Equal(t, "alice", post.AuthorKey())

	page := byPath["pages/About.md"]
	require.NotNil(t, page)
	assert.Equal(t, KindPage, page.Kind)
	assert.Equal(t, "/about", page.URL)
	assert.Nil(t, page.Author)
	assert.Nil(t, page.Meta)
	assert.Empty(t, page.AuthorKey())
}

func TestLoaderConvertsTimeZone(t *testing.T) {
	r := gittest.New(t)
	head := r.Write("posts/late.md", "x\n").Commit("alice", 1000)

	tokyo := time.FixedZone("JST", 9*3600)
	loader, err := NewLoader(LoaderOptions{Scopes: testScopes(), Location: tokyo})
	require.NoError(t, err)

	// 2024-03-31 20:00 UTC is April 1st in Tokyo
	created := time.Date(2024, time.March, 31, 20, 0, 0, 0, time.UTC).Unix()
	docs, err := loader.Load(context.Background(), r.Tree(head), map[string]*history.Record{
		"posts/late.md": record("posts/late.md", created, created, "alice"),
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "/2024/4/late", docs[0].URL)
	assert.Equal(t, tokyo, docs[0].CreateTime.Location())
}

func TestLoaderErrors(t *testing.T) {
	loader, err := NewLoader(LoaderOptions{Scopes: testScopes()})
	require.NoError(t, err)

	t.Run("missing record", func(t *testing.T) {
		r := gittest.New(t)
		head := r.Write("posts/a.md", "a\n").Commit("alice", 1000)

		_, err := loader.Load(context.Background(), r.Tree(head), map[string]*history.Record{})
		assert.ErrorIs(t, err, errs.ErrRepository)
	})

	t.Run("invalid utf8", func(t *testing.T) {
		r := gittest.New(t)
		head := r.Write("posts/a.md", "bad \xff\xfe bytes\n").Commit("alice", 1000)

		_, err := loader.Load(context.Background(), r.Tree(head), map[string]*history.Record{
			"posts/a.md": record("posts/a.md", 1000, 1000, "alice"),
		})
		assert.ErrorIs(t, err, errs.ErrEncoding)
	})

	t.Run("malformed front matter", func(t *testing.T) {
		r := gittest.New(t)
		head := r.Write("posts/a.md", "---\ntitle: [unclosed\n---\nbody\n").Commit("alice", 1000)

		_, err := loader.Load(context.Background(), r.Tree(head), map[string]*history.Record{
			"posts/a.md": record("posts/a.md", 1000, 1000, "alice"),
		})
		assert.ErrorIs(t, err, errs.ErrEncoding)
	})

	t.Run("empty slug", func(t *testing.T) {
		r := gittest.New(t)
		head := r.Write("posts/!!!.md", "x\n").Commit("alice", 1000)

		_, err := loader.Load(context.Background(), r.Tree(head), map[string]*history.Record{
			"posts/!!!.md": record("posts/!!!.md", 1000, 1000, "alice"),
		})
		assert.ErrorIs(t, err, errs.ErrIndex)
	})
}

func TestNewLoaderRejectsBadGlob(t *testing.T) {
	_, err := NewLoader(LoaderOptions{Scopes: []Scope{{Kind: KindPost, Glob: "posts/[", Pattern: MustParsePattern("/{slug}")}}})
	assert.ErrorIs(t, err, errs.ErrConfig)
}
