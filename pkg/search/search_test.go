package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/engine/enginetest"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

const (
	primary = "/conf/fake"
	extra1  = "/x1/fake"
	extra2  = "/x2/fake"
)

var entries = []catalog.Entry{
	{Dir: "/home/ann/docs", Location: primary},
	{Dir: "/srv/projects", Location: extra1},
	{Dir: "/mnt/projects", Location: extra2},
	{Dir: "/mnt/archive", Location: extra2},
}

func testOptions() settings.Options {
	return settings.Options{
		Context:  30,
		Stem:     1,
		TimeFmt:  "%Y-%m-%d",
		MaxChars: 500,
		PerPage:  25,
	}
}

func testSnapshot(opts settings.Options) *settings.Snapshot {
	return &settings.Snapshot{
		Options:      opts,
		Primary:      primary,
		ExtraIndexes: []string{extra1, extra2},
		Dirs:         entries,
	}
}

// reports adds n matching documents to location, titled "report NN".
func reports(eng *enginetest.Engine, location string, n int) {
	for i := 0; i < n; i++ {
		eng.Add(location, engine.Fields{
			"url":      fmt.Sprintf("file://%s/report%02d.txt", location, i),
			"filename": fmt.Sprintf("report%02d.txt", i),
			"title":    fmt.Sprintf("report %02d", i),
			"author":   "ann",
			"content":  "the quarterly report is ready",
			"fmtime":   "86400",
			"fbytes":   "10",
		})
	}
}

func run(t *testing.T, eng engine.Engine, snap *settings.Snapshot, req query.Request) *Page {
	t.Helper()
	sess := Execute(context.Background(), eng, snap, req, query.Compile(req), 0)
	defer sess.Close()
	return Paginate(context.Background(), sess, req, snap.Options)
}

func TestSelectLocations(t *testing.T) {
	all := []string{primary, extra1, extra2}
	tests := []struct {
		scope string
		want  []string
	}{
		{catalog.Unrestricted, all},
		{"", all},
		{"docs", []string{primary}},
		{"doc", []string{primary}},
		{"docs/2024/q1", []string{primary}},
		{"projects/alpha", []string{extra1, extra2}},
		{"pro", []string{extra1, extra2}},
		{"archive", []string{extra2}},
		{"unknown", all},
		{"docsx", all},
	}
	for _, tt := range tests {
		t.Run(tt.scope, func(t *testing.T) {
			if got := SelectLocations(tt.scope, entries, all); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SelectLocations(%q) = %v, want %v", tt.scope, got, tt.want)
			}
		})
	}
}

func TestExecuteSpansSelectedLocations(t *testing.T) {
	eng := enginetest.New()
	reports(eng, primary, 1)
	reports(eng, extra1, 2)
	reports(eng, extra2, 3)

	req := query.NewRequest()
	req.Query = "report"
	req.Dir = "projects/alpha"
	page := run(t, eng, testSnapshot(testOptions()), req.WithPage(1))

	opened := eng.Opened()
	if len(opened) != 1 || !reflect.DeepEqual(opened[0], []string{extra1, extra2}) {
		t.Fatalf("opened = %v, want one session over both project indexes", opened)
	}
	if page.Total != 5 {
		t.Errorf("total = %d, want 5", page.Total)
	}

	req.Dir = catalog.Unrestricted
	run(t, eng, testSnapshot(testOptions()), req)
	if got := eng.Opened()[1]; !reflect.DeepEqual(got, []string{primary, extra1, extra2}) {
		t.Errorf("unrestricted opened %v", got)
	}
}

func TestExecuteFailSoft(t *testing.T) {
	snap := testSnapshot(testOptions())
	req := query.NewRequest()

	eng := enginetest.New()
	reports(eng, primary, 3)
	eng.ExecuteErr = errors.New("syntax error")
	sess := Execute(context.Background(), eng, snap, req, "report", 0)
	if sess.RowCount() != 0 {
		t.Errorf("failed execution should yield an empty session, got %d rows", sess.RowCount())
	}

	eng = enginetest.New()
	eng.OpenErr = errors.New("locked")
	sess = Execute(context.Background(), eng, snap, req, "report", 0)
	if _, ok := sess.(engine.EmptySession); !ok {
		t.Errorf("failed open should yield EmptySession, got %T", sess)
	}
	if page := Paginate(context.Background(), sess, req.WithPage(1), snap.Options); page.Total != 0 || len(page.Records) != 0 {
		t.Errorf("page = %+v", page)
	}
}

func TestScenarioFirstPage(t *testing.T) {
	eng := enginetest.New()
	reports(eng, primary, 60)

	req := query.NewRequest()
	req.Query = "report"
	page := run(t, eng, testSnapshot(testOptions()), req.WithPage(1))

	if page.Total != 60 || page.Ceiling != 60 {
		t.Errorf("total = %d, ceiling = %d", page.Total, page.Ceiling)
	}
	if len(page.Records) != 25 {
		t.Fatalf("got %d records", len(page.Records))
	}
	if page.Records[0].Title != "report 00" || page.Records[24].Title != "report 24" {
		t.Errorf("page spans %q..%q", page.Records[0].Title, page.Records[24].Title)
	}
	if page.Pages() != 3 {
		t.Errorf("pages = %d", page.Pages())
	}
}

func TestScenarioEmptyQuery(t *testing.T) {
	eng := enginetest.New()
	reports(eng, primary, 4)

	req := query.NewRequest()
	if expr := query.Compile(req); expr != "" {
		t.Fatalf("compiled %q", expr)
	}
	page := run(t, eng, testSnapshot(testOptions()), req.WithPage(1))
	if page.Total != 4 || len(page.Records) != 4 {
		t.Errorf("total = %d, records = %d", page.Total, len(page.Records))
	}
}

func TestPaginateLimits(t *testing.T) {
	tests := []struct {
		name        string
		maxResults  int
		perPage     int
		page        int
		wantCeiling int
		wantRecords int
		wantFirst   string
	}{
		{"unlimited ceiling", 0, 25, 1, 60, 25, "report 00"},
		{"last partial page", 0, 25, 3, 60, 10, "report 50"},
		{"page zero is one page", 0, 25, 0, 60, 60, "report 00"},
		{"per page zero is one page", 0, 0, 2, 60, 60, "report 00"},
		{"ceiling clamps export", 10, 25, 0, 10, 10, "report 00"},
		{"ceiling clamps page", 30, 25, 2, 30, 5, "report 25"},
		{"ceiling above total", 100, 25, 3, 60, 10, "report 50"},
		{"negative per page is one page", 0, -5, 1, 60, 60, "report 00"},
		{"negative ceiling is unlimited", -3, 25, 1, 60, 25, "report 00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := enginetest.New()
			reports(eng, primary, 60)
			opts := testOptions()
			opts.MaxResults = tt.maxResults
			opts.PerPage = tt.perPage

			req := query.NewRequest()
			req.Query = "report"
			page := run(t, eng, testSnapshot(opts), req.WithPage(tt.page))

			if page.Total != 60 {
				t.Errorf("total = %d", page.Total)
			}
			if page.Ceiling != tt.wantCeiling {
				t.Errorf("ceiling = %d, want %d", page.Ceiling, tt.wantCeiling)
			}
			if len(page.Records) != tt.wantRecords {
				t.Fatalf("records = %d, want %d", len(page.Records), tt.wantRecords)
			}
			if page.Records[0].Title != tt.wantFirst {
				t.Errorf("first = %q, want %q", page.Records[0].Title, tt.wantFirst)
			}
		})
	}
}

func TestPaginatePastEnd(t *testing.T) {
	for _, tt := range []struct{ maxResults, page int }{{0, 4}, {0, 99}, {10, 2}} {
		eng := enginetest.New()
		reports(eng, primary, 60)
		opts := testOptions()
		opts.MaxResults = tt.maxResults

		req := query.NewRequest()
		req.Query = "report"
		page := run(t, eng, testSnapshot(opts), req.WithPage(tt.page))

		if len(page.Records) != 0 {
			t.Errorf("page %d: got %d records", tt.page, len(page.Records))
		}
		if len(eng.Seeks()) != 0 || eng.Pulls() != 0 {
			t.Errorf("page %d: seeks = %v, pulls = %d", tt.page, eng.Seeks(), eng.Pulls())
		}
	}
}

func TestPaginatePartialOnRowError(t *testing.T) {
	eng := enginetest.New()
	reports(eng, primary, 60)
	eng.FailAfter = 5

	req := query.NewRequest()
	req.Query = "report"
	page := run(t, eng, testSnapshot(testOptions()), req.WithPage(1))
	if len(page.Records) != 5 {
		t.Errorf("records = %d, want partial page of 5", len(page.Records))
	}
	if page.Total != 60 {
		t.Errorf("total = %d, want count taken before the failure", page.Total)
	}
}

func TestSnippets(t *testing.T) {
	eng := enginetest.New()
	reports(eng, primary, 1)
	snap := testSnapshot(testOptions())

	req := query.NewRequest()
	req.Query = "report"
	page := run(t, eng, snap, req.WithPage(1))
	snippet := page.Records[0].Snippet
	if snippet == nil || !strings.Contains(*snippet, `<span class="search-result-highlight">report</span>`) {
		t.Errorf("highlighted snippet = %v", snippet)
	}

	req.Highlight = 0
	page = run(t, eng, snap, req.WithPage(1))
	if s := page.Records[0].Snippet; s == nil || strings.Contains(*s, "<span") || !strings.Contains(*s, "report") {
		t.Errorf("plain snippet = %v", s)
	}

	req.Snippets = 0
	page = run(t, eng, snap, req.WithPage(1))
	if page.Records[0].Snippet != nil {
		t.Errorf("snippet should be absent, got %q", *page.Records[0].Snippet)
	}
}

func TestMissingFields(t *testing.T) {
	eng := enginetest.New()
	eng.Add(primary, engine.Fields{"url": "file:///a/notes.txt", "content": "report"})

	req := query.NewRequest()
	req.Query = "report"
	page := run(t, eng, testSnapshot(testOptions()), req.WithPage(1))
	rec := page.Records[0]
	if rec.Author != "" || rec.Title != "" || rec.MTime != "" {
		t.Errorf("absent fields should be empty: %+v", rec)
	}
	if rec.Label != "?" {
		t.Errorf("label = %q", rec.Label)
	}
	if rec.Time != "1970-01-01" {
		t.Errorf("time = %q", rec.Time)
	}
}

func TestRecordDerivedFields(t *testing.T) {
	tests := []struct {
		fields    engine.Fields
		wantLabel string
		wantTime  string
	}{
		{engine.Fields{"title": "T", "filename": "f.txt", "mtime": "86400"}, "T", "1970-01-02"},
		{engine.Fields{"filename": "f.txt", "mtime": "bogus"}, "f.txt", "1970-01-01"},
		{engine.Fields{}, "?", "1970-01-01"},
	}
	for _, tt := range tests {
		rec := NewRecord(tt.fields, "%Y-%m-%d")
		if rec.Label != tt.wantLabel || rec.Time != tt.wantTime {
			t.Errorf("NewRecord(%v) label=%q time=%q", tt.fields, rec.Label, rec.Time)
		}
		for _, f := range engine.KnownFields {
			_ = rec.Field(f)
		}
	}
}

func TestIdentityStable(t *testing.T) {
	eng := enginetest.New()
	reports(eng, primary, 30)
	opts := testOptions()
	opts.PerPage = 10

	req := query.NewRequest()
	req.Query = "report"
	first := run(t, eng, testSnapshot(opts), req.WithPage(0))

	req.Sort = "filename"
	req.Ascending = 1
	second := run(t, eng, testSnapshot(opts), req.WithPage(2))

	byURL := make(map[string]string)
	for _, r := range first.Records {
		byURL[r.URL] = r.Sha
	}
	for _, r := range second.Records {
		if byURL[r.URL] != r.Sha {
			t.Errorf("identity of %s changed: %s vs %s", r.URL, byURL[r.URL], r.Sha)
		}
	}
	if Identity("file:///a.zip", "doc.txt") == Identity("file:///a.zip", "") {
		t.Error("sub-documents must not share the container identity")
	}
	if got := Identity("", ""); got != "da39a3ee5e6b4b0d3255bfef95601890afd80709" {
		t.Errorf("Identity(empty) = %s", got)
	}
}

func TestRecordField(t *testing.T) {
	s := "snip"
	rec := Record{Author: "ann", Size: "10", Time: "t", Label: "l", Snippet: &s}
	for name, want := range map[string]string{
		"author":  "ann",
		"size":    "10",
		"time":    "t",
		"label":   "l",
		"snippet": "snip",
		"bogus":   "",
	} {
		if got := rec.Field(name); got != want {
			t.Errorf("Field(%q) = %q, want %q", name, got, want)
		}
	}
	rec.Snippet = nil
	if rec.Field("snippet") != "" {
		t.Error("absent snippet should be empty")
	}
}
