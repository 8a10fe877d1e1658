package content

import (
	"fmt"
	"time"
)

// Kind distinguishes posts from pages
type Kind int

const (
	KindPost Kind = iota
	KindPage
)

func (k Kind) String() string {
	switch k {
	case KindPost:
		return "post"
	case KindPage:
		return "page"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText lets Kind render as "post"/"page" in JSON
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Author identifies who created a document
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Document is a post or page extracted from the repository.
// Documents are shared between concurrent readers and must not be modified
// after the loader returns them.
type Document struct {
	Kind       Kind           `json:"kind"`
	Path       string         `json:"path"`
	Title      string         `json:"title"`
	Slug       string         `json:"slug"`
	URL        string         `json:"url"`
	Content    string         `json:"-"`                // Raw file content, front matter included
	Body       string         `json:"-"`                // Markdown without front matter
	Meta       map[string]any `json:"meta,omitempty"`   // Parsed front matter
	Author     *Author        `json:"author,omitempty"` // nil when the commit carried no author name
	CreateTime time.Time      `json:"create_time"`
	ModifyTime time.Time      `json:"modify_time"`
}

// AuthorKey returns the key the document is grouped under in author listings
func (d *Document) AuthorKey() string {
	if d.Author == nil {
		return ""
	}
	return Slugify(d.Author.Name)
}
