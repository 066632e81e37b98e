// Package page resolves page titles and IDs on a wiki into descriptors:
// canonical title, link, summary and image, with moderation applied.
package page

import (
	"github.com/olgasafonova/wiki-resolver-mcp-server/internal/site"
)

// Page properties recorded before and after resolution.
const (
	PropertyPage     = "page"
	PropertyTemplate = "template"
)

// Query selects the page to resolve. Exactly one of Title and PageID is set.
// The remaining fields carry recursion state and are zero for a top-level call.
type Query struct {
	Title           *string
	PageID          *int
	DocMode         bool   // resolving a template's documentation page
	InterwikiDepth  int    // interwiki hops taken so far
	InterwikiPrefix string // prefixes accumulated along the hops, e.g. "en:fr:"
	InterwikiMode   bool   // reached through an interwiki hop
}

// TitleQuery returns a top-level query for title.
func TitleQuery(title string) Query {
	return Query{Title: &title}
}

// IDQuery returns a top-level query for a page ID.
func IDQuery(id int) Query {
	return Query{PageID: &id}
}

// Descriptor is the result of one resolution. A nil Title means the site
// homepage, or a redacted result when Redacted is set. A nil Description
// means none was computed; "" means it was computed and is empty.
type Descriptor struct {
	Site               *site.Metadata `json:"-"`
	Title              *string        `json:"title"`
	BeforeTitle        *string        `json:"before_title,omitempty"`
	ID                 int            `json:"id"`
	Link               *string        `json:"link"`
	File               *string        `json:"file,omitempty"`
	Description        *string        `json:"description"`
	Args               string         `json:"args,omitempty"`
	Section            *string        `json:"section,omitempty"`
	InterwikiPrefix    string         `json:"interwiki_prefix,omitempty"`
	Status             bool           `json:"status"`
	BeforePageProperty string         `json:"before_page_property"`
	PageProperty       string         `json:"page_property"`
	InvalidNamespace   bool           `json:"invalid_namespace,omitempty"`
	Redacted           bool           `json:"redacted,omitempty"`
	Warning            string         `json:"warning,omitempty"`

	// Cause is the error behind a failed descriptor, when there was one.
	Cause error `json:"-"`
}

func newDescriptor(meta *site.Metadata, title *string, prefix string) Descriptor {
	return Descriptor{
		Site:               meta,
		Title:              title,
		ID:                 -1,
		InterwikiPrefix:    prefix,
		Status:             true,
		BeforePageProperty: PropertyPage,
		PageProperty:       PropertyPage,
	}
}

// Banned reports whether moderation redacted the result.
func (d *Descriptor) Banned() bool {
	return d.Redacted
}

// TitleOr returns the title, or def when it is nil.
func (d *Descriptor) TitleOr(def string) string {
	if d.Title == nil {
		return def
	}
	return *d.Title
}

func ptr[T any](v T) *T {
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
