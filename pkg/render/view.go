// Package render turns a page of search results into what clients see: the
// view model behind the HTML pages and the JSON and CSV exports.
package render

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/search"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// pageWindow is how many page links are shown on each side of the current
// page.
const pageWindow = 5

// View is everything the results page shows. It is built once per request.
type View struct {
	Request    query.Request
	Query      string
	Records    []search.Record
	Total      int
	Ceiling    int
	Page       int
	Pages      int
	PerPage    int
	Elapsed    time.Duration
	Dirs       []string
	Sorts      []query.Sort
	Options    settings.Options
	Mounts     map[string]string
	Extraction bool
}

// Item is a record with its position and links.
type Item struct {
	search.Record
	Number      int
	TitleURL    string
	DocURL      string
	PreviewURL  string
	DownloadURL string
}

// PageLink is one entry of the pager.
type PageLink struct {
	Number  int
	URL     string
	Current bool
}

// NewView assembles the view of page. dirs is the browse tree.
func NewView(snap *settings.Snapshot, req query.Request, page *search.Page, dirs []string, extraction bool) *View {
	return &View{
		Request:    req,
		Query:      query.Compile(req),
		Records:    page.Records,
		Total:      page.Total,
		Ceiling:    page.Ceiling,
		Page:       page.Page,
		Pages:      page.Pages(),
		PerPage:    page.PerPage,
		Elapsed:    page.Elapsed,
		Dirs:       dirs,
		Sorts:      query.Sorts,
		Options:    snap.Options,
		Mounts:     snap.Mounts,
		Extraction: extraction,
	}
}

// Offset is the absolute position of the first record on the page.
func (v *View) Offset() int {
	if v.Page < 1 {
		return 0
	}
	return (v.Page - 1) * v.PerPage
}

// Items returns the records with their absolute positions and links.
func (v *View) Items() []Item {
	qs := v.Request.Values().Encode()
	items := make([]Item, len(v.Records))
	for i, rec := range v.Records {
		n := v.Offset() + i
		item := Item{
			Record:      rec,
			Number:      n,
			DocURL:      MountURL(rec.URL, v.Mounts),
			PreviewURL:  fmt.Sprintf("preview/%d?%s", n, qs),
			DownloadURL: fmt.Sprintf("download/%d?%s", n, qs),
		}
		switch v.Options.TitleLink {
		case "open":
			item.TitleURL = item.DocURL
		case "preview":
			item.TitleURL = item.PreviewURL
		default:
			item.TitleURL = item.DownloadURL
		}
		items[i] = item
	}
	return items
}

// PageLinks returns the pager links around the current page.
func (v *View) PageLinks() []PageLink {
	if v.Pages <= 1 {
		return nil
	}
	first := max(1, v.Page-pageWindow)
	last := min(v.Pages, v.Page+pageWindow)
	links := make([]PageLink, 0, last-first+1)
	for n := first; n <= last; n++ {
		links = append(links, PageLink{
			Number:  n,
			URL:     "results?" + v.Request.WithPage(n).Values().Encode(),
			Current: n == v.Page,
		})
	}
	return links
}

// ExportURL returns the link of an export route (json or csv) for the
// current request.
func (v *View) ExportURL(route string) string {
	return route + "?" + v.Request.Values().Encode()
}

// MountURL rewrites a file URL below a known directory to use that
// directory's mount prefix. The longest matching directory wins. Other
// URLs are returned unchanged.
func MountURL(docURL string, mounts map[string]string) string {
	dirs := make([]string, 0, len(mounts))
	for d := range mounts {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool {
		return len(dirs[i]) > len(dirs[j])
	})
	for _, d := range dirs {
		prefix := "file://" + strings.TrimSuffix(d, "/")
		if docURL != prefix && !strings.HasPrefix(docURL, prefix+"/") {
			continue
		}
		if strings.TrimSuffix(mounts[d], "/") == prefix {
			return docURL
		}
		rest := strings.TrimPrefix(docURL, prefix)
		return strings.TrimSuffix(mounts[d], "/") + escapePath(rest)
	}
	return docURL
}

func escapePath(p string) string {
	u := url.URL{Path: p}
	return u.EscapedPath()
}
