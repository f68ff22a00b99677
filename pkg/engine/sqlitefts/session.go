package sqlitefts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/rubiojr/fedsearch/pkg/engine"
)

// sortColumns maps sortable fields to docs columns.
var sortColumns = map[string]string{
	"mtime":    "d.mtime",
	"fbytes":   "d.fbytes",
	"url":      "d.url",
	"filename": "d.filename",
	"author":   "d.author",
}

var numericSort = map[string]bool{"mtime": true, "fbytes": true}

// Session is a query session over one or more SQLite indexes. Execute
// queries every database in parallel and merges the matches by sort key.
type Session struct {
	dbs []*sql.DB

	maxChars  int
	context   int
	sortField string
	ascending bool

	terms    []string
	stem     bool
	hits     []hit
	best     float64
	cursor   int
	executed bool
}

type hit struct {
	db    int
	rowid int64
	num   int64
	str   string
	score float64
}

type dbResult struct {
	db   int
	hits []hit
	err  error
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
	stem = stem && hasEnglish(langs)
	sqlQuery, args := buildQuery(parsed, stem, s.sortField)

	resultChan := make(chan dbResult, len(s.dbs))
	for i, db := range s.dbs {
		go func(i int, db *sql.DB) {
			hits, err := queryDB(ctx, db, i, sqlQuery, args)
			resultChan <- dbResult{db: i, hits: hits, err: err}
		}(i, db)
	}

	var all []hit
	var errs []error
	for range s.dbs {
		r := <-resultChan
		if r.err != nil {
			errs = append(errs, fmt.Errorf("index %d: %w", r.db, r.err))
			continue
		}
		all = append(all, r.hits...)
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	s.sortHits(all)
	s.hits = all
	s.best = 0
	for _, h := range all {
		if h.score < s.best {
			s.best = h.score
		}
	}
	s.terms = parsed.Terms()
	s.stem = stem
	s.cursor = 0
	s.executed = true
	return nil
}

func hasEnglish(langs []string) bool {
	for _, l := range langs {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case "english", "en":
			return true
		}
	}
	return false
}

func buildQuery(e *engine.Expr, stem bool, sortField string) (string, []any) {
	col, ok := sortColumns[sortField]
	if !ok {
		col = "0"
	}
	var (
		where []string
		args  []any
		q     string
	)
	var match string
	if terms := e.Terms(); len(terms) > 0 {
		match = ftsMatch(terms, e.Excluded())
	}
	table := "docs_fts"
	if stem {
		table = "docs_stem"
	}
	if match != "" {
		q = fmt.Sprintf("SELECT d.rowid, %s, bm25(%s) FROM docs d JOIN %s f ON d.rowid = f.rowid", col, table, table)
		where = append(where, table+" MATCH ?")
		args = append(args, match)
	} else {
		q = fmt.Sprintf("SELECT d.rowid, %s, 0 FROM docs d", col)
		if ex := ftsAny(e.Excluded()); ex != "" {
			where = append(where, "d.rowid NOT IN (SELECT rowid FROM "+table+" WHERE "+table+" MATCH ?)")
			args = append(args, ex)
		}
	}
	if !e.After.IsZero() {
		where = append(where, "d.mtime >= ?")
		args = append(args, e.After.Unix())
	}
	if !e.Before.IsZero() {
		where = append(where, "d.mtime <= ?")
		args = append(args, e.Before.Unix())
	}
	if len(e.Dirs) > 0 {
		var dirs []string
		for _, dir := range e.Dirs {
			dirs = append(dirs, "instr('/' || d.dir || '/', ?) > 0")
			args = append(args, "/"+strings.Trim(dir, "/")+"/")
		}
		where = append(where, "("+strings.Join(dirs, " OR ")+")")
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	return q, args
}

// ftsMatch builds an FTS5 expression requiring every include term and
// none of the exclude terms. Terms are quoted so user input never reaches
// the FTS5 parser as syntax.
func ftsMatch(include, exclude []string) string {
	if len(include) == 0 {
		return ""
	}
	parts := make([]string, 0, len(include))
	for _, t := range include {
		parts = append(parts, ftsTerm(t))
	}
	q := strings.Join(parts, " ")
	for _, t := range exclude {
		q += " NOT " + ftsTerm(t)
	}
	return q
}

// ftsAny matches documents containing any of terms.
func ftsAny(terms []string) string {
	parts := make([]string, 0, len(terms))
	for _, t := range terms {
		parts = append(parts, ftsTerm(t))
	}
	return strings.Join(parts, " OR ")
}

func ftsTerm(t string) string {
	prefix := strings.HasSuffix(t, "*")
	t = strings.ReplaceAll(strings.TrimSuffix(t, "*"), `"`, `""`)
	if prefix {
		return `"` + t + `"*`
	}
	return `"` + t + `"`
}

func queryDB(ctx context.Context, db *sql.DB, idx int, q string, args []any) ([]hit, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("querying docs: %w", err)
	}
	defer rows.Close()

	var hits []hit
	for rows.Next() {
		var (
			h   = hit{db: idx}
			key sql.NullString
		)
		if err := rows.Scan(&h.rowid, &key, &h.score); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		h.str = key.String
		h.num, _ = strconv.ParseInt(key.String, 10, 64)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Session) sortHits(hits []hit) {
	field := s.sortField
	_, byColumn := sortColumns[field]
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		var c int
		switch {
		case !byColumn:
			// bm25 is lower for better matches.
			c = -compareFloat(a.score, b.score)
		case numericSort[field]:
			c = compareInt(a.num, b.num)
		default:
			c = strings.Compare(a.str, b.str)
		}
		if c == 0 {
			if a.db != b.db {
				return a.db < b.db
			}
			return a.rowid < b.rowid
		}
		if s.ascending {
			return c < 0
		}
		return c > 0
	})
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (s *Session) RowCount() int {
	return len(s.hits)
}

func (s *Session) Seek(offset int) error {
	if !s.executed {
		return engine.ErrSessionNotExecuted
	}
	if offset < 0 {
		offset = 0
	}
	s.cursor = offset
	return nil
}

var docColumns = []string{
	"url", "ipath", "filename", "title", "author", "mtype", "origcharset", "keywords",
	"abstract", "content", "fbytes", "dbytes", "fmtime", "dmtime", "sig",
}

func (s *Session) Next(ctx context.Context) (engine.Document, error) {
	if !s.executed {
		return nil, engine.ErrSessionNotExecuted
	}
	if s.cursor >= len(s.hits) {
		return nil, io.EOF
	}
	h := s.hits[s.cursor]
	s.cursor++

	values := make([]sql.NullString, len(docColumns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	q := "SELECT " + strings.Join(docColumns, ", ") + " FROM docs WHERE rowid = ?"
	if err := s.dbs[h.db].QueryRowContext(ctx, q, h.rowid).Scan(dest...); err != nil {
		return nil, fmt.Errorf("fetching row %d: %w", h.rowid, err)
	}

	doc := make(engine.Fields, len(docColumns)+3)
	for i, col := range docColumns {
		if values[i].Valid {
			doc[col] = values[i].String
		}
	}
	doc["relevancyrating"] = s.rating(h.score)
	engine.DerivedFields(doc)
	return doc, nil
}

func (s *Session) rating(score float64) string {
	if s.best >= 0 {
		return "0%"
	}
	return fmt.Sprintf("%.0f%%", score/s.best*100)
}

func (s *Session) MakeAbstract(doc engine.Document, hl engine.Highlighter) string {
	content, _ := doc.Field("content")
	terms := s.terms
	if s.stem {
		terms = make([]string, 0, len(s.terms))
		for _, t := range s.terms {
			terms = append(terms, stemPrefix(t))
		}
	}
	spans := engine.FindSpans(content, terms)
	if len(spans) == 0 {
		if abs, _ := doc.Field("abstract"); abs != "" {
			content = abs
		}
	}
	return engine.BuildAbstract(content, spans, s.maxChars, s.context, hl)
}

// stemPrefix turns a term into a prefix pattern by dropping common English
// inflections, so "running" highlights "runs" and "run".
func stemPrefix(t string) string {
	t = strings.TrimSuffix(t, "*")
	for _, suf := range []string{"ing", "ed", "es", "s"} {
		if len(t) > len(suf)+2 && strings.HasSuffix(t, suf) {
			t = strings.TrimSuffix(t, suf)
			break
		}
	}
	if n := len(t); n > 3 && t[n-1] == t[n-2] && !strings.ContainsRune("aeiou", rune(t[n-1])) {
		t = t[:n-1]
	}
	return t + "*"
}

func (s *Session) Close() error {
	var errs []error
	for _, db := range s.dbs {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
