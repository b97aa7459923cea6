// Package html turns the HTML fragments scraped into product records into
// plain text suitable for embedding and for the assistant prompt.
package html

import (
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/vetrina/internal/core/domain"
	"github.com/custodia-labs/vetrina/internal/core/ports/driven"
)

var _ driven.ProductNormaliser = (*Normaliser)(nil)

// Normaliser cleans the text fields of product records.
type Normaliser struct{}

// New returns a Normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// Normalise strips markup from the long fields and flattens the short ones
// to a single line. ID, URL, image and prices pass through unchanged.
func (n *Normaliser) Normalise(p domain.ProductRecord) domain.ProductRecord {
	for _, f := range []*string{&p.Name, &p.Brand, &p.Category, &p.Subcategory} {
		*f = singleLine(*f)
	}
	for _, f := range []*string{&p.Ingredients, &p.Technologies} {
		*f = singleLine(StripHTML(*f))
	}
	for _, f := range []*string{&p.Description, &p.UsageInstructions, &p.Benefits} {
		*f = StripHTML(*f)
	}
	return p
}

// hidden elements contribute no text at all.
var hidden = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Svg:      true,
	atom.Noscript: true,
	atom.Template: true,
}

// breaking elements start a new line when they open or close.
var breaking = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true, atom.H6: true,
	atom.Ul: true, atom.Ol: true, atom.Li: true, atom.Dl: true, atom.Dt: true, atom.Dd: true,
	atom.Table: true, atom.Tr: true, atom.Blockquote: true, atom.Hr: true,
}

// StripHTML decodes entities and drops tags, comments and the contents of
// script-like elements. Block elements become line breaks; each line is
// trimmed and blank lines are dropped. Malformed markup yields whatever
// text was readable up to the error.
func StripHTML(content string) string {
	if !strings.ContainsAny(content, "<&") {
		return tidyLines(content)
	}

	var b strings.Builder
	depth := 0 // nesting inside hidden elements
	z := xhtml.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		switch tt {
		case xhtml.ErrorToken:
			return tidyLines(b.String())
		case xhtml.TextToken:
			if depth == 0 {
				b.Write(z.Text())
			}
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken, xhtml.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			switch {
			case hidden[a] && tt == xhtml.StartTagToken:
				depth++
			case hidden[a] && tt == xhtml.EndTagToken:
				depth = max(depth-1, 0)
			case breaking[a] && depth == 0:
				b.WriteByte('\n')
			}
		}
	}
}

// tidyLines collapses whitespace inside each line, including no-break
// spaces, and removes empty lines.
func tidyLines(content string) string {
	lines := strings.Split(content, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = singleLine(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
