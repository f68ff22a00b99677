// Package bleveidx is the bleve index backend. Each index location is a
// bleve index directory; sessions over several locations search them
// through an index alias.
package bleveidx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/log"
)

// Name is the registry name of this backend.
const Name = "bleve"

const (
	fetchBatch   = 50
	writerBatch  = 100
	locationName = "bleve"
)

func init() {
	engine.Register(Name, func() engine.Engine { return &Engine{} })
}

// Engine implements engine.Engine over bleve indexes.
type Engine struct{}

func (e *Engine) Name() string {
	return Name
}

func (e *Engine) Location(confRoot string) string {
	return filepath.Join(confRoot, locationName)
}

// Open opens every location read-only. Locations that cannot be opened are
// logged and skipped; Open fails only when none could be opened.
func (e *Engine) Open(primary string, extra []string) (engine.Session, error) {
	logger := log.ForService("bleve")
	locations := append([]string{primary}, extra...)

	var indexes []bleve.Index
	var lastErr error
	for _, loc := range locations {
		idx, err := bleve.OpenUsing(loc, map[string]interface{}{"read_only": true})
		if err != nil {
			logger.Warnf("skipping index %s: %v", loc, err)
			lastErr = err
			continue
		}
		indexes = append(indexes, idx)
	}
	if len(indexes) == 0 {
		return nil, fmt.Errorf("opening bleve indexes: %w", lastErr)
	}

	var searcher bleve.Index = indexes[0]
	if len(indexes) > 1 {
		searcher = bleve.NewIndexAlias(indexes...)
	}
	return &Session{
		indexes:   indexes,
		searcher:  searcher,
		sortField: engine.SortRelevance,
	}, nil
}

// Create opens the index at location for writing, creating it with
// analyzers for langs when it does not exist yet.
func (e *Engine) Create(location string, langs []string) (engine.Writer, error) {
	codes := languageCodes(langs)

	idx, err := bleve.Open(location)
	if err != nil {
		if _, statErr := os.Stat(location); statErr == nil {
			return nil, fmt.Errorf("opening bleve index %s: %w", location, err)
		}
		if err := os.MkdirAll(filepath.Dir(location), 0755); err != nil {
			return nil, fmt.Errorf("creating index parent dir: %w", err)
		}
		idx, err = bleve.New(location, buildMapping(codes))
		if err != nil {
			return nil, fmt.Errorf("creating bleve index %s: %w", location, err)
		}
	}
	return &Writer{index: idx, codes: codes, batch: idx.NewBatch()}, nil
}

// Writer batches documents into a bleve index.
type Writer struct {
	index bleve.Index
	codes []string
	batch *bleve.Batch
}

func (w *Writer) Index(ctx context.Context, d *engine.Doc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.batch.Index(d.ID(), w.document(d)); err != nil {
		return fmt.Errorf("indexing %s: %w", d.ID(), err)
	}
	if w.batch.Size() >= writerBatch {
		return w.flush()
	}
	return nil
}

func (w *Writer) document(d *engine.Doc) map[string]interface{} {
	mtime := d.FMTime
	if d.DMTime != 0 {
		mtime = d.DMTime
	}
	data := map[string]interface{}{
		"url":         d.URL,
		"ipath":       d.IPath,
		"filename":    d.Filename,
		"title":       d.Title,
		"author":      d.Author,
		"mtype":       d.MimeType,
		"origcharset": d.Charset,
		"keywords":    d.Keywords,
		"abstract":    d.Abstract,
		"sig":         d.Sig(),
		fieldDir:      d.Dir,
		fieldContent:  d.Content,
		"fbytes":      float64(d.FBytes),
		"fmtime":      float64(d.FMTime),
		"mtime":       float64(mtime),
		fieldDate:     time.Unix(mtime, 0).UTC(),
	}
	data[fieldFilenameText] = d.Filename
	if d.DBytes != 0 {
		data["dbytes"] = float64(d.DBytes)
	}
	if d.DMTime != 0 {
		data["dmtime"] = float64(d.DMTime)
	}
	for _, code := range w.codes {
		data[stemFieldPrefix+code] = d.Content
	}
	return data
}

func (w *Writer) flush() error {
	if w.batch.Size() == 0 {
		return nil
	}
	if err := w.index.Batch(w.batch); err != nil {
		return fmt.Errorf("committing batch: %w", err)
	}
	w.batch.Reset()
	return nil
}

func (w *Writer) Delete(_ context.Context, id string) error {
	w.batch.Delete(id)
	if w.batch.Size() >= writerBatch {
		return w.flush()
	}
	return nil
}

func (w *Writer) Close() error {
	flushErr := w.flush()
	closeErr := w.index.Close()
	return errors.Join(flushErr, closeErr)
}

// Session is a bleve query session.
type Session struct {
	indexes  []bleve.Index
	searcher bleve.Index

	maxChars  int
	context   int
	sortField string
	ascending bool

	query    query.Query
	terms    []string
	total    int
	maxScore float64
	executed bool

	cursor int
	buf    []*hitDoc
}

type hitDoc struct {
	engine.Fields
	spans []engine.Span
}

func (s *Session) SetAbstractParams(maxChars, contextChars int) {
	s.maxChars, s.context = maxChars, contextChars
}

func (s *Session) SortBy(field string, ascending bool) {
	s.sortField, s.ascending = field, ascending
}

func (s *Session) Execute(ctx context.Context, expr string, stem bool, langs []string) error {
	parsed, err := engine.ParseExpr(expr)
	if err != nil {
		return err
	}
	q := buildQuery(parsed, stem, languageCodes(langs))

	req := bleve.NewSearchRequestOptions(q, 0, 0, false)
	res, err := s.searcher.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("counting matches: %w", err)
	}

	s.query = q
	s.terms = parsed.Terms()
	s.total = int(res.Total)
	s.maxScore = res.MaxScore
	s.cursor = 0
	s.buf = nil
	s.executed = true
	return nil
}

func buildQuery(e *engine.Expr, stem bool, codes []string) query.Query {
	var must []query.Query

	if e.Text != "" {
		var text query.Query = bleve.NewQueryStringQuery(e.Text)
		if stem && len(codes) > 0 {
			words := strings.Join(e.Terms(), " ")
			words = strings.ReplaceAll(words, "*", "")
			dq := bleve.NewDisjunctionQuery(text)
			for _, code := range codes {
				mq := bleve.NewMatchQuery(words)
				mq.SetField(stemFieldPrefix + code)
				dq.AddQuery(mq)
			}
			text = dq
		}
		must = append(must, text)
	}

	if e.HasDate() {
		inclusive := true
		dr := bleve.NewDateRangeInclusiveQuery(e.After, e.Before, &inclusive, &inclusive)
		dr.SetField(fieldDate)
		must = append(must, dr)
	}

	if len(e.Dirs) > 0 {
		var dirs []query.Query
		for _, dir := range e.Dirs {
			rq := bleve.NewRegexpQuery(dirPattern(dir))
			rq.SetField(fieldDir)
			dirs = append(dirs, rq)
		}
		if len(dirs) == 1 {
			must = append(must, dirs[0])
		} else {
			must = append(must, bleve.NewDisjunctionQuery(dirs...))
		}
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	}
	return bleve.NewConjunctionQuery(must...)
}

// dirPattern matches a directory field equal to rel or below it, with rel
// aligned on path segments.
func dirPattern(rel string) string {
	return "(.*/)?" + regexp.QuoteMeta(strings.Trim(rel, "/")) + "(/.*)?"
}

func (s *Session) sortOrder() []string {
	field := s.sortField
	if field == engine.SortRelevance || field == "" {
		field = "_score"
	}
	if s.ascending {
		return []string{field, "_id"}
	}
	return []string{"-" + field, "_id"}
}

func (s *Session) RowCount() int {
	return s.total
}

func (s *Session) Seek(offset int) error {
	if !s.executed {
		return engine.ErrSessionNotExecuted
	}
	if offset < 0 {
		offset = 0
	}
	s.cursor = offset
	s.buf = nil
	return nil
}

func (s *Session) Next(ctx context.Context) (engine.Document, error) {
	if !s.executed {
		return nil, engine.ErrSessionNotExecuted
	}
	if s.cursor >= s.total {
		return nil, io.EOF
	}
	if len(s.buf) == 0 {
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
		if len(s.buf) == 0 {
			return nil, io.EOF
		}
	}
	doc := s.buf[0]
	s.buf = s.buf[1:]
	s.cursor++
	return doc, nil
}

func (s *Session) fetch(ctx context.Context) error {
	req := bleve.NewSearchRequestOptions(s.query, fetchBatch, s.cursor, false)
	req.Fields = []string{"*"}
	req.IncludeLocations = true
	req.SortBy(s.sortOrder())

	res, err := s.searcher.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("fetching rows at %d: %w", s.cursor, err)
	}
	maxScore := s.maxScore
	if maxScore == 0 {
		maxScore = res.MaxScore
	}
	for _, hit := range res.Hits {
		doc := &hitDoc{Fields: make(engine.Fields, len(hit.Fields)+1)}
		for name, v := range hit.Fields {
			doc.Fields[name] = fieldString(v)
		}
		if maxScore > 0 {
			doc.Fields["relevancyrating"] = fmt.Sprintf("%.0f%%", hit.Score/maxScore*100)
		} else {
			doc.Fields["relevancyrating"] = "0%"
		}
		engine.DerivedFields(doc.Fields)

		for field, terms := range hit.Locations {
			if field != fieldContent && !strings.HasPrefix(field, stemFieldPrefix) {
				continue
			}
			for _, locs := range terms {
				for _, l := range locs {
					doc.spans = append(doc.spans, engine.Span{Start: int(l.Start), End: int(l.End)})
				}
			}
		}
		s.buf = append(s.buf, doc)
	}
	return nil
}

func fieldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fieldString(p))
		}
		return strings.Join(parts, " ")
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

func (s *Session) MakeAbstract(doc engine.Document, hl engine.Highlighter) string {
	content, _ := doc.Field(fieldContent)
	var spans []engine.Span
	if h, ok := doc.(*hitDoc); ok {
		spans = dedupSpans(h.spans)
	}
	if len(spans) == 0 {
		spans = engine.FindSpans(content, s.terms)
	}
	if len(spans) == 0 {
		if abs, _ := doc.Field("abstract"); abs != "" {
			content = abs
		}
	}
	return engine.BuildAbstract(content, spans, s.maxChars, s.context, hl)
}

// dedupSpans drops spans reported by several fields for the same bytes.
func dedupSpans(spans []engine.Span) []engine.Span {
	seen := make(map[[2]int]bool, len(spans))
	out := spans[:0]
	for _, sp := range spans {
		key := [2]int{sp.Start, sp.End}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, sp)
	}
	return out
}

func (s *Session) Close() error {
	var errs []error
	for _, idx := range s.indexes {
		if err := idx.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
