package engine

import (
	"html"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Span is a byte range of a query match inside a document text. Term
// indexes the matched query term and is passed to Highlighter.StartMatch.
type Span struct {
	Start int
	End   int
	Term  int
}

const abstractSep = " ... "

// BuildAbstract returns an excerpt of content made of windows of
// contextChars bytes around each match span, joined by " ... ", until
// maxChars is reached. Without spans the head of the document is used.
// When hl is non-nil the text is HTML-escaped and matches are wrapped with
// the highlighter markers. maxChars <= 0 means no limit.
func BuildAbstract(content string, spans []Span, maxChars, contextChars int, hl Highlighter) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if contextChars < 0 {
		contextChars = 0
	}

	spans = validSpans(content, spans)
	if len(spans) == 0 {
		head := content
		if maxChars > 0 && len(head) > maxChars {
			head = strings.TrimRightFunc(head[:runeFloor(head, maxChars)], unicode.IsSpace) + abstractSep
		}
		return escape(head, hl)
	}

	type window struct {
		start, end int
		spans      []Span
	}
	var windows []window
	used := 0
	for _, sp := range spans {
		start := runeFloor(content, sp.Start-contextChars)
		end := runeCeil(content, sp.End+contextChars)
		if n := len(windows); n > 0 && start <= windows[n-1].end {
			w := &windows[n-1]
			if end > w.end {
				used += end - w.end
				w.end = end
			}
			w.spans = append(w.spans, sp)
		} else {
			if maxChars > 0 && used > 0 && used+(end-start) > maxChars {
				break
			}
			windows = append(windows, window{start: start, end: end, spans: []Span{sp}})
			used += end - start
		}
		if maxChars > 0 && used >= maxChars {
			break
		}
	}

	var b strings.Builder
	for i, w := range windows {
		if i > 0 || w.start > 0 {
			b.WriteString(abstractSep)
		}
		pos := w.start
		for _, sp := range w.spans {
			if sp.Start < pos {
				continue
			}
			b.WriteString(escape(content[pos:sp.Start], hl))
			if hl != nil {
				b.WriteString(hl.StartMatch(sp.Term))
				b.WriteString(html.EscapeString(content[sp.Start:sp.End]))
				b.WriteString(hl.EndMatch())
			} else {
				b.WriteString(content[sp.Start:sp.End])
			}
			pos = sp.End
		}
		b.WriteString(escape(content[pos:w.end], hl))
	}
	if last := windows[len(windows)-1]; last.end < len(content) {
		b.WriteString(abstractSep)
	}
	return b.String()
}

// FindSpans locates whole-word, case-insensitive occurrences of terms in
// content. A term ending in '*' matches as a prefix.
func FindSpans(content string, terms []string) []Span {
	if len(terms) == 0 {
		return nil
	}
	var spans []Span
	start := -1
	check := func(end int) {
		word := content[start:end]
		for i, t := range terms {
			if prefix, ok := strings.CutSuffix(t, "*"); ok {
				if len(word) >= len(prefix) && strings.EqualFold(word[:len(prefix)], prefix) {
					spans = append(spans, Span{Start: start, End: end, Term: i})
					return
				}
				continue
			}
			if strings.EqualFold(word, t) {
				spans = append(spans, Span{Start: start, End: end, Term: i})
				return
			}
		}
	}
	for i, r := range content {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			check(i)
			start = -1
		}
	}
	if start >= 0 {
		check(len(content))
	}
	return spans
}

func validSpans(content string, spans []Span) []Span {
	out := make([]Span, 0, len(spans))
	for _, sp := range spans {
		if sp.Start < 0 || sp.End > len(content) || sp.Start >= sp.End {
			continue
		}
		out = append(out, sp)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

func escape(s string, hl Highlighter) string {
	if hl == nil {
		return s
	}
	return html.EscapeString(s)
}

// runeFloor moves i back to the start of the rune it falls in.
func runeFloor(s string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune boundary.
func runeCeil(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	if i <= 0 {
		return 0
	}
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}
