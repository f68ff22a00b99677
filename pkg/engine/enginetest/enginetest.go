// Package enginetest provides an in-memory engine.Engine for tests. It
// records the locations every session was opened on and the cursor
// operations performed, and can inject execution and row failures.
package enginetest

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rubiojr/fedsearch/pkg/engine"
)

// ErrInjected is returned by injected failures.
var ErrInjected = errors.New("injected failure")

// Engine holds documents per location.
type Engine struct {
	mu   sync.Mutex
	docs map[string][]engine.Fields

	// ExecuteErr, when set, is returned by every Execute.
	ExecuteErr error
	// OpenErr, when set, is returned by every Open.
	OpenErr error
	// FailAfter makes Next fail once that many rows were pulled from a
	// session. Zero disables it.
	FailAfter int

	opened [][]string
	seeks  []int
	pulls  int
}

// New returns an empty fake engine.
func New() *Engine {
	return &Engine{docs: make(map[string][]engine.Fields)}
}

// Docs returns a copy of the documents stored at location.
func (e *Engine) Docs(location string) []engine.Fields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Fields(nil), e.docs[location]...)
}

// Add appends documents to location.
func (e *Engine) Add(location string, docs ...engine.Fields) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docs[location] = append(e.docs[location], docs...)
}

// Opened returns the location lists of every Open call, in order.
func (e *Engine) Opened() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]string, len(e.opened))
	copy(out, e.opened)
	return out
}

// Seeks returns the offsets passed to Seek.
func (e *Engine) Seeks() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]int(nil), e.seeks...)
}

// Pulls returns the number of Next calls made.
func (e *Engine) Pulls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pulls
}

func (e *Engine) Name() string {
	return "fake"
}

func (e *Engine) Location(confRoot string) string {
	return filepath.Join(confRoot, "fake")
}

func (e *Engine) Open(primary string, extra []string) (engine.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.OpenErr != nil {
		return nil, e.OpenErr
	}
	locs := append([]string{primary}, extra...)
	e.opened = append(e.opened, locs)
	return &session{eng: e, locations: locs, sortField: engine.SortRelevance}, nil
}

func (e *Engine) Create(location string, _ []string) (engine.Writer, error) {
	return &writer{eng: e, location: location}, nil
}

type writer struct {
	eng      *Engine
	location string
}

// Index replaces any document with the same ID.
func (w *writer) Index(ctx context.Context, d *engine.Doc) error {
	if err := w.Delete(ctx, d.ID()); err != nil {
		return err
	}
	f := engine.Fields{
		"url":         d.URL,
		"ipath":       d.IPath,
		"filename":    d.Filename,
		"title":       d.Title,
		"author":      d.Author,
		"mtype":       d.MimeType,
		"origcharset": d.Charset,
		"keywords":    d.Keywords,
		"abstract":    d.Abstract,
		"content":     d.Content,
		"fbytes":      strconv.FormatInt(d.FBytes, 10),
		"fmtime":      strconv.FormatInt(d.FMTime, 10),
		"dir":         d.Dir,
		"sig":         d.Sig(),
	}
	if d.DBytes > 0 {
		f["dbytes"] = strconv.FormatInt(d.DBytes, 10)
	}
	if d.DMTime > 0 {
		f["dmtime"] = strconv.FormatInt(d.DMTime, 10)
	}
	w.eng.Add(w.location, f)
	return nil
}

func (w *writer) Delete(_ context.Context, id string) error {
	w.eng.mu.Lock()
	defer w.eng.mu.Unlock()
	var docs []engine.Fields
	for _, d := range w.eng.docs[w.location] {
		if docID(d) != id {
			docs = append(docs, d)
		}
	}
	w.eng.docs[w.location] = docs
	return nil
}

func docID(f engine.Fields) string {
	d := engine.Doc{URL: f["url"], IPath: f["ipath"]}
	return d.ID()
}

func (w *writer) Close() error {
	return nil
}

type session struct {
	eng       *Engine
	locations []string
	sortField string
	ascending bool
	maxChars  int
	context   int

	executed bool
	terms    []string
	rows     []engine.Fields
	cursor   int
	pulled   int
}

func (s *session) SetAbstractParams(maxChars, contextChars int) {
	s.maxChars, s.context = maxChars, contextChars
}

func (s *session) SortBy(field string, ascending bool) {
	s.sortField, s.ascending = field, ascending
}

func (s *session) Execute(_ context.Context, expr string, _ bool, _ []string) error {
	if s.eng.ExecuteErr != nil {
		return s.eng.ExecuteErr
	}
	parsed, err := engine.ParseExpr(expr)
	if err != nil {
		return err
	}
	s.terms = parsed.Terms()

	s.eng.mu.Lock()
	var all []engine.Fields
	for _, loc := range s.locations {
		all = append(all, s.eng.docs[loc]...)
	}
	s.eng.mu.Unlock()

	s.rows = s.rows[:0]
	for _, doc := range all {
		if s.matches(doc) {
			s.rows = append(s.rows, doc)
		}
	}
	if s.sortField != engine.SortRelevance {
		field := s.sortField
		sort.SliceStable(s.rows, func(i, j int) bool {
			less := compareField(s.rows[i][field], s.rows[j][field])
			if s.ascending {
				return less < 0
			}
			return less > 0
		})
	}
	s.executed = true
	s.cursor = 0
	return nil
}

func (s *session) matches(doc engine.Fields) bool {
	if len(s.terms) == 0 {
		return true
	}
	text := strings.ToLower(doc["title"] + " " + doc["content"] + " " + doc["filename"])
	for _, t := range s.terms {
		if strings.Contains(text, strings.TrimSuffix(t, "*")) {
			return true
		}
	}
	return false
}

func compareField(a, b string) int {
	ai, aerr := strconv.ParseInt(a, 10, 64)
	bi, berr := strconv.ParseInt(b, 10, 64)
	if aerr == nil && berr == nil {
		switch {
		case ai < bi:
			return -1
		case ai > bi:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func (s *session) RowCount() int {
	return len(s.rows)
}

func (s *session) Seek(offset int) error {
	if !s.executed {
		return engine.ErrSessionNotExecuted
	}
	s.eng.mu.Lock()
	s.eng.seeks = append(s.eng.seeks, offset)
	s.eng.mu.Unlock()
	s.cursor = offset
	return nil
}

func (s *session) Next(_ context.Context) (engine.Document, error) {
	if !s.executed {
		return nil, engine.ErrSessionNotExecuted
	}
	s.eng.mu.Lock()
	s.eng.pulls++
	s.eng.mu.Unlock()

	if s.eng.FailAfter > 0 && s.pulled >= s.eng.FailAfter {
		return nil, ErrInjected
	}
	if s.cursor >= len(s.rows) {
		return nil, io.EOF
	}
	doc := make(engine.Fields, len(s.rows[s.cursor]))
	for k, v := range s.rows[s.cursor] {
		doc[k] = v
	}
	engine.DerivedFields(doc)
	s.cursor++
	s.pulled++
	return doc, nil
}

func (s *session) MakeAbstract(doc engine.Document, hl engine.Highlighter) string {
	content, _ := doc.Field("content")
	if content == "" {
		content, _ = doc.Field("abstract")
	}
	return engine.BuildAbstract(content, engine.FindSpans(content, s.terms), s.maxChars, s.context, hl)
}

func (s *session) Close() error {
	return nil
}
