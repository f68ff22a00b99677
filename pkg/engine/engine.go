// Package engine defines the contract between the query router and a
// full-text index backend.
//
// A backend owns the on-disk index format, tokenization, ranking and
// abstract generation. The router only opens sessions, sorts, executes a
// native query expression and walks a row cursor. Backends register
// themselves by name (see Register) and are selected by the configuration's
// backend key.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

var (
	// ErrUnknownBackend is returned by New for unregistered backend names.
	ErrUnknownBackend = errors.New("unknown index backend")

	// ErrSessionNotExecuted is returned by cursor operations on a session
	// that has not run a query yet.
	ErrSessionNotExecuted = errors.New("session has not executed a query")
)

// SortRelevance is the sort field meaning "engine relevance order".
const SortRelevance = "relevancyrating"

// KnownFields enumerates the document fields a result exposes, in display
// order. The last three are derived by the router, not stored.
var KnownFields = []string{
	"ipath", "filename", "title", "author", "fbytes", "dbytes", "size",
	"fmtime", "dmtime", "mtime", "mtype", "origcharset", "sig",
	"relevancyrating", "url", "abstract", "keywords",
	"time", "snippet", "label",
}

// IsKnownField reports whether name is in KnownFields.
func IsKnownField(name string) bool {
	for _, f := range KnownFields {
		if f == name {
			return true
		}
	}
	return false
}

// Engine opens read sessions over one or more index locations and creates
// writers for the indexer.
type Engine interface {
	// Name is the registry name of the backend.
	Name() string

	// Location returns the index location stored under a config root.
	Location(confRoot string) string

	// Open returns a session spanning primary and every extra location.
	Open(primary string, extra []string) (Session, error)

	// Create opens (or creates) the index at location for writing.
	// langs lists the stemming languages the index should support.
	Create(location string, langs []string) (Writer, error)
}

// Session is an open query context over one or more indexes. Sessions are
// not safe for concurrent use.
type Session interface {
	SetAbstractParams(maxChars, contextChars int)
	SortBy(field string, ascending bool)

	// Execute runs expr. A malformed expression or backend failure is
	// returned as an error; the caller decides how to degrade.
	Execute(ctx context.Context, expr string, stem bool, langs []string) error

	// RowCount is the number of matches of the last Execute.
	RowCount() int

	// Seek positions the cursor at an absolute row offset.
	Seek(offset int) error

	// Next returns the row under the cursor and advances it. It returns
	// io.EOF once the result set is exhausted.
	Next(ctx context.Context) (Document, error)

	// MakeAbstract returns an excerpt of doc around the query matches. When
	// hl is non-nil, matches are wrapped with its markers and the rest of
	// the text is HTML-escaped.
	MakeAbstract(doc Document, hl Highlighter) string

	Close() error
}

// Document is one matched row. Field reports false for absent fields.
type Document interface {
	Field(name string) (string, bool)
}

// Highlighter supplies the markers placed around query matches.
type Highlighter interface {
	StartMatch(idx int) string
	EndMatch() string
}

// Writer adds documents to an index.
type Writer interface {
	Index(ctx context.Context, doc *Doc) error
	Close() error
}

// Deleter is implemented by writers that can remove documents by ID.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Doc is the unit the indexer hands to a Writer.
type Doc struct {
	URL      string
	IPath    string
	Filename string
	Title    string
	Author   string
	MimeType string
	Charset  string
	Keywords string
	Abstract string
	Dir      string
	Content  string
	FBytes   int64
	DBytes   int64
	FMTime   int64
	DMTime   int64
}

// ID is the index-internal identifier of d.
func (d *Doc) ID() string {
	if d.IPath == "" {
		return d.URL
	}
	return d.URL + "|" + d.IPath
}

// Sig is a change signature built from size and modification time.
func (d *Doc) Sig() string {
	return fmt.Sprintf("%d%d", d.FBytes, d.FMTime)
}

// Fields holds document field values keyed by field name.
type Fields map[string]string

func (f Fields) Field(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

// DerivedFields completes a raw field set the way every backend reports
// it: mtime prefers the document mtime over the file mtime and size prefers
// the document size over the file size.
func DerivedFields(f Fields) {
	if v := f["dmtime"]; v != "" {
		f["mtime"] = v
	} else if v := f["fmtime"]; v != "" {
		f["mtime"] = v
	}
	if v := f["dbytes"]; v != "" {
		f["size"] = v
	} else if v := f["fbytes"]; v != "" {
		f["size"] = v
	}
}

// Constructor builds a backend.
type Constructor func() Engine

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a backend available under name. It panics on duplicates.
func Register(name string, c Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		panic("engine: duplicate backend " + name)
	}
	registry[name] = c
}

// New returns the backend registered under name.
func New(name string) (Engine, error) {
	registryMu.RLock()
	c, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return c(), nil
}

// Backends lists registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EmptySession is a session with no rows. The router substitutes it for a
// session whose open or execution failed.
type EmptySession struct{}

func (EmptySession) SetAbstractParams(int, int) {}

func (EmptySession) SortBy(string, bool) {}

func (EmptySession) Execute(context.Context, string, bool, []string) error {
	return nil
}

func (EmptySession) RowCount() int {
	return 0
}

func (EmptySession) Seek(int) error {
	return nil
}

func (EmptySession) Next(context.Context) (Document, error) {
	return nil, io.EOF
}

func (EmptySession) MakeAbstract(Document, Highlighter) string {
	return ""
}

func (EmptySession) Close() error {
	return nil
}
