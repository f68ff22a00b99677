package search

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/ncruces/go-strftime"

	"github.com/rubiojr/fedsearch/pkg/engine"
)

// Record is one normalized search result. Stored fields absent from the
// document are empty strings. Snippet is nil unless snippets were asked
// for.
type Record struct {
	IPath           string `json:"ipath"`
	Filename        string `json:"filename"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	FBytes          string `json:"fbytes"`
	DBytes          string `json:"dbytes"`
	Size            string `json:"size"`
	FMTime          string `json:"fmtime"`
	DMTime          string `json:"dmtime"`
	MTime           string `json:"mtime"`
	MType           string `json:"mtype"`
	OrigCharset     string `json:"origcharset"`
	Sig             string `json:"sig"`
	RelevancyRating string `json:"relevancyrating"`
	URL             string `json:"url"`
	Abstract        string `json:"abstract"`
	Keywords        string `json:"keywords"`

	Label   string  `json:"label"`
	Sha     string  `json:"sha"`
	Time    string  `json:"time"`
	Snippet *string `json:"snippet,omitempty"`
}

// Field returns the value of a known field by name, "" for unknown names
// and for an absent snippet.
func (r *Record) Field(name string) string {
	switch name {
	case "ipath":
		return r.IPath
	case "filename":
		return r.Filename
	case "title":
		return r.Title
	case "author":
		return r.Author
	case "fbytes":
		return r.FBytes
	case "dbytes":
		return r.DBytes
	case "size":
		return r.Size
	case "fmtime":
		return r.FMTime
	case "dmtime":
		return r.DMTime
	case "mtime":
		return r.MTime
	case "mtype":
		return r.MType
	case "origcharset":
		return r.OrigCharset
	case "sig":
		return r.Sig
	case "relevancyrating":
		return r.RelevancyRating
	case "url":
		return r.URL
	case "abstract":
		return r.Abstract
	case "keywords":
		return r.Keywords
	case "time":
		return r.Time
	case "label":
		return r.Label
	case "snippet":
		if r.Snippet != nil {
			return *r.Snippet
		}
	}
	return ""
}

// NewRecord copies the stored fields of doc and derives label, identity
// and display time.
func NewRecord(doc engine.Document, timefmt string) Record {
	get := func(name string) string {
		v, _ := doc.Field(name)
		return v
	}
	r := Record{
		IPath:           get("ipath"),
		Filename:        get("filename"),
		Title:           get("title"),
		Author:          get("author"),
		FBytes:          get("fbytes"),
		DBytes:          get("dbytes"),
		Size:            get("size"),
		FMTime:          get("fmtime"),
		DMTime:          get("dmtime"),
		MTime:           get("mtime"),
		MType:           get("mtype"),
		OrigCharset:     get("origcharset"),
		Sig:             get("sig"),
		RelevancyRating: get("relevancyrating"),
		URL:             get("url"),
		Abstract:        get("abstract"),
		Keywords:        get("keywords"),
	}

	switch {
	case r.Title != "":
		r.Label = r.Title
	case r.Filename != "":
		r.Label = r.Filename
	default:
		r.Label = "?"
	}
	r.Sha = Identity(r.URL, r.IPath)
	r.Time = FormatTime(timefmt, r.MTime)
	return r
}

// Identity is the stable digest of a document: hex sha1 of its URL
// followed by its internal path.
func Identity(url, ipath string) string {
	sum := sha1.Sum([]byte(url + ipath))
	return hex.EncodeToString(sum[:])
}

// FormatTime renders a unix timestamp string with a strftime layout in
// UTC. Empty or malformed timestamps format as the epoch.
func FormatTime(layout, mtime string) string {
	secs, err := strconv.ParseInt(mtime, 10, 64)
	if err != nil {
		secs = 0
	}
	return strftime.Format(layout, time.Unix(secs, 0).UTC())
}

// Highlighter marks query matches in snippets for the HTML front end.
type Highlighter struct{}

func (Highlighter) StartMatch(int) string {
	return `<span class="search-result-highlight">`
}

func (Highlighter) EndMatch() string {
	return "</span>"
}
