// Package query turns structured search input into the native query
// expression understood by every index backend.
package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/engine"
)

// Sort is a selectable result order.
type Sort struct {
	Field string `json:"field"`
	Label string `json:"label"`
}

// Sorts lists the accepted sort fields. The first one is the default.
var Sorts = []Sort{
	{Field: engine.SortRelevance, Label: "Relevancy"},
	{Field: "mtime", Label: "Date"},
	{Field: "url", Label: "Path"},
	{Field: "filename", Label: "Filename"},
	{Field: "fbytes", Label: "Size"},
	{Field: "author", Label: "Author"},
}

// DefaultSort is used when a request names no or an unknown sort field.
const DefaultSort = engine.SortRelevance

// Request is one search as submitted by a client. Page is 1-based; 0 asks
// for every result on a single page.
type Request struct {
	Query     string `json:"query"`
	Before    string `json:"before"`
	After     string `json:"after"`
	Dir       string `json:"dir"`
	Sort      string `json:"sort"`
	Ascending int    `json:"ascending"`
	Page      int    `json:"page"`
	Highlight int    `json:"highlight"`
	Snippets  int    `json:"snippets"`
}

// NewRequest returns a request with every parameter at its default.
func NewRequest() Request {
	return Request{
		Dir:       catalog.Unrestricted,
		Sort:      DefaultSort,
		Highlight: 1,
		Snippets:  1,
	}
}

// ParseRequest reads a request from URL query values. Missing or
// malformed values take their defaults and unknown sort fields fall back
// to DefaultSort.
func ParseRequest(v url.Values) Request {
	r := NewRequest()
	r.Query = strings.TrimSpace(v.Get("query"))
	r.Before = strings.TrimSpace(v.Get("before"))
	r.After = strings.TrimSpace(v.Get("after"))
	if dir := strings.TrimSpace(v.Get("dir")); dir != "" {
		r.Dir = dir
	}
	if ValidSort(v.Get("sort")) {
		r.Sort = v.Get("sort")
	}
	r.Ascending = intParam(v, "ascending", r.Ascending)
	r.Page = intParam(v, "page", r.Page)
	r.Highlight = intParam(v, "highlight", r.Highlight)
	r.Snippets = intParam(v, "snippets", r.Snippets)
	if r.Page < 0 {
		r.Page = 0
	}
	return r
}

func intParam(v url.Values, key string, def int) int {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

// ValidSort reports whether field is one of Sorts.
func ValidSort(field string) bool {
	for _, s := range Sorts {
		if s.Field == field {
			return true
		}
	}
	return false
}

// Values encodes r back into URL query values.
func (r Request) Values() url.Values {
	v := url.Values{}
	v.Set("query", r.Query)
	v.Set("before", r.Before)
	v.Set("after", r.After)
	v.Set("dir", r.Dir)
	v.Set("sort", r.Sort)
	v.Set("ascending", strconv.Itoa(r.Ascending))
	v.Set("page", strconv.Itoa(r.Page))
	v.Set("highlight", strconv.Itoa(r.Highlight))
	v.Set("snippets", strconv.Itoa(r.Snippets))
	return v
}

// WithPage returns a copy of r asking for page.
func (r Request) WithPage(page int) Request {
	r.Page = page
	return r
}

// Compile builds the native expression for r: the free text, then a date
// clause when either bound is set, then a dir clause unless the scope is
// unrestricted. The result doubles as the human-readable query string.
func Compile(r Request) string {
	qs := r.Query
	if r.After != "" || r.Before != "" {
		qs += " date:" + r.After + "/" + r.Before
	}
	if r.Dir != "" && r.Dir != catalog.Unrestricted {
		qs += ` dir:"` + r.Dir + `" `
	}
	return qs
}

// NormaliseFilename replaces every character outside [A-Za-z0-9_-] with an
// underscore.
func NormaliseFilename(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
