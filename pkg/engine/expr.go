package engine

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Expr is a native query expression split into its clauses.
//
// The native syntax is free text followed by optional clauses:
//
//	report draft date:2024-01-01/2024-06 dir:"projects/alpha"
//
// Either side of a date range may be empty. Dir values are directory paths
// relative to an indexed top directory, matched on whole path segments.
type Expr struct {
	Text   string
	After  time.Time
	Before time.Time
	Dirs   []string
}

// HasDate reports whether the expression restricts modification time.
func (e *Expr) HasDate() bool {
	return !e.After.IsZero() || !e.Before.IsZero()
}

// ParseExpr splits expr into free text, a date range and dir restrictions.
// Malformed date bounds are reported as errors.
func ParseExpr(expr string) (*Expr, error) {
	e := &Expr{}
	var text []string
	for _, tok := range tokenize(expr) {
		lower := strings.ToLower(tok)
		switch {
		case strings.HasPrefix(lower, "date:"):
			if err := e.parseDateClause(tok[len("date:"):]); err != nil {
				return nil, err
			}
		case strings.HasPrefix(lower, "dir:"):
			dir := strings.Trim(unquote(tok[len("dir:"):]), "/")
			if dir != "" {
				e.Dirs = append(e.Dirs, dir)
			}
		default:
			text = append(text, tok)
		}
	}
	e.Text = strings.Join(text, " ")
	return e, nil
}

func (e *Expr) parseDateClause(v string) error {
	v = unquote(v)
	after, before, found := strings.Cut(v, "/")
	if !found {
		// A single date means that whole day, month or year.
		before = after
	}
	var err error
	if after != "" {
		if e.After, _, err = ParseDate(after); err != nil {
			return err
		}
	}
	if before != "" {
		if _, e.Before, err = ParseDate(before); err != nil {
			return err
		}
	}
	return nil
}

// ParseDate parses YYYY-MM-DD, YYYY-MM or YYYY and returns the first and
// last instant (UTC) of the period it names.
func ParseDate(s string) (start, end time.Time, err error) {
	s = strings.TrimSpace(s)
	layouts := []struct {
		layout string
		years  int
		months int
		days   int
	}{
		{"2006-01-02", 0, 0, 1},
		{"2006-01", 0, 1, 0},
		{"2006", 1, 0, 0},
	}
	for _, l := range layouts {
		if len(s) != len(l.layout) {
			continue
		}
		t, perr := time.ParseInLocation(l.layout, s, time.UTC)
		if perr != nil {
			continue
		}
		return t, t.AddDate(l.years, l.months, l.days).Add(-time.Nanosecond), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q", s)
}

// Terms returns the lowercase words the free text asks for, without
// operators, field prefixes or quotes. Backends use them to locate matches
// for abstracts.
func (e *Expr) Terms() []string {
	terms, _ := e.words()
	return terms
}

// Excluded returns the words negated with '-' or NOT.
func (e *Expr) Excluded() []string {
	_, excluded := e.words()
	return excluded
}

func (e *Expr) words() (terms, excluded []string) {
	seen := make(map[string]bool)
	negate := false
	for _, tok := range tokenize(e.Text) {
		switch tok {
		case "NOT":
			negate = true
			continue
		case "AND", "OR", "&&", "||":
			continue
		}
		neg := negate || strings.HasPrefix(tok, "-")
		negate = false
		tok = strings.TrimLeft(tok, "+-")
		if i := strings.IndexByte(tok, ':'); i >= 0 && !strings.HasPrefix(tok, `"`) {
			tok = tok[i+1:]
		}
		for _, w := range strings.FieldsFunc(unquote(tok), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '*'
		}) {
			w = strings.ToLower(w)
			if w == "" || w == "*" || seen[w] {
				continue
			}
			seen[w] = true
			if neg {
				excluded = append(excluded, w)
			} else {
				terms = append(terms, w)
			}
		}
	}
	return terms, excluded
}

// tokenize splits s on whitespace, keeping double-quoted runs together.
func tokenize(s string) []string {
	var (
		toks    []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case unicode.IsSpace(r) && !inQuote:
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return toks
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return strings.Trim(s, `"`)
}
