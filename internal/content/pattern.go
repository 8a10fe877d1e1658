package content

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/renderinc/gitpress/internal/errs"
)

type placeholder int

const (
	literal placeholder = iota
	slugField
	yearField
	monthField
	dayField
)

var placeholders = map[string]placeholder{
	"slug":  slugField,
	"year":  yearField,
	"month": monthField,
	"day":   dayField,
}

type segment struct {
	field placeholder
	text  string
}

// Pattern is a parsed URL pattern such as "/{year}/{month}/{slug}".
type Pattern struct {
	raw      string
	segments []segment
}

// ParsePattern parses a URL pattern. Patterns must start with "/", must
// reference {slug} and may reference {year}, {month} and {day}.
func ParsePattern(raw string) (Pattern, error) {
	if !strings.HasPrefix(raw, "/") {
		return Pattern{}, fmt.Errorf("%w: url pattern %q must start with /", errs.ErrConfig, raw)
	}

	p := Pattern{raw: raw}
	hasSlug := false
	rest := raw
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if closeIdx := strings.IndexByte(rest, '}'); closeIdx >= 0 && (open < 0 || closeIdx < open) {
			return Pattern{}, fmt.Errorf("%w: url pattern %q has unmatched }", errs.ErrConfig, raw)
		}
		if open < 0 {
			p.segments = append(p.segments, segment{field: literal, text: rest})
			break
		}
		if open > 0 {
			p.segments = append(p.segments, segment{field: literal, text: rest[:open]})
		}

		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return Pattern{}, fmt.Errorf("%w: url pattern %q has unclosed {", errs.ErrConfig, raw)
		}
		name := rest[open+1 : open+end]
		field, ok := placeholders[name]
		if !ok {
			return Pattern{}, fmt.Errorf("%w: url pattern %q has unknown placeholder {%s}", errs.ErrConfig, raw, name)
		}
		if field == slugField {
			hasSlug = true
		}
		p.segments = append(p.segments, segment{field: field})
		rest = rest[open+end+1:]
	}

	if !hasSlug {
		return Pattern{}, fmt.Errorf("%w: url pattern %q must contain {slug}", errs.ErrConfig, raw)
	}
	return p, nil
}

// MustParsePattern is like ParsePattern but panics on error
func MustParsePattern(raw string) Pattern {
	p, err := ParsePattern(raw)
	if err != nil {
		panic(err)
	}
	return p
}

// Expand substitutes slug and the calendar date of t. t must already be in
// the configured time zone. Month and day are not zero-padded.
func (p Pattern) Expand(slug string, t time.Time) string {
	var b strings.Builder
	for _, seg := range p.segments {
		switch seg.field {
		case literal:
			b.WriteString(seg.text)
		case slugField:
			b.WriteString(slug)
		case yearField:
			b.WriteString(strconv.Itoa(t.Year()))
		case monthField:
			b.WriteString(strconv.Itoa(int(t.Month())))
		case dayField:
			b.WriteString(strconv.Itoa(t.Day()))
		}
	}
	return b.String()
}

func (p Pattern) String() string {
	return p.raw
}
