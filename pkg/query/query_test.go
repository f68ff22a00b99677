package query

import (
	"fmt"
	"net/url"
	"regexp"
	"testing"
	"testing/quick"

	"github.com/rubiojr/fedsearch/pkg/catalog"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"empty unrestricted", Request{Dir: catalog.Unrestricted}, ""},
		{"text only", Request{Query: "report", Dir: catalog.Unrestricted}, "report"},
		{"after only", Request{Query: "x", After: "2024-01-01", Dir: catalog.Unrestricted}, "x date:2024-01-01/"},
		{"before only", Request{Before: "2024", Dir: catalog.Unrestricted}, " date:/2024"},
		{"dir", Request{Query: "x", Dir: "docs/projects"}, `x dir:"docs/projects" `},
		{
			"everything",
			Request{Query: "plan", After: "2023", Before: "2024", Dir: "docs"},
			`plan date:2023/2024 dir:"docs" `,
		},
		{"dir without text", Request{Dir: "docs"}, ` dir:"docs" `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Compile(tt.req); got != tt.want {
				t.Errorf("Compile() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseRequestDefaults(t *testing.T) {
	r := ParseRequest(url.Values{})
	if r != NewRequest() {
		t.Errorf("ParseRequest(empty) = %+v", r)
	}
	if r.Dir != catalog.Unrestricted || r.Sort != "relevancyrating" || r.Highlight != 1 || r.Snippets != 1 || r.Page != 0 {
		t.Errorf("unexpected defaults: %+v", r)
	}
}

func TestParseRequest(t *testing.T) {
	v := url.Values{
		"query":     {" report "},
		"dir":       {"docs/a"},
		"sort":      {"mtime"},
		"ascending": {"1"},
		"page":      {"3"},
		"highlight": {"0"},
		"snippets":  {"zero"},
		"after":     {"2024-01-01"},
	}
	r := ParseRequest(v)
	want := Request{
		Query: "report", After: "2024-01-01", Dir: "docs/a", Sort: "mtime",
		Ascending: 1, Page: 3, Highlight: 0, Snippets: 1,
	}
	if r != want {
		t.Errorf("ParseRequest = %+v, want %+v", r, want)
	}

	if again := ParseRequest(r.Values()); again != r {
		t.Errorf("Values round trip = %+v, want %+v", again, r)
	}
}

func TestUnknownSortFallsBack(t *testing.T) {
	for _, s := range []string{"", "size", "RELEVANCYRATING", "mtime; drop"} {
		if r := ParseRequest(url.Values{"sort": {s}}); r.Sort != DefaultSort {
			t.Errorf("sort %q resolved to %q", s, r.Sort)
		}
	}
	for _, s := range Sorts {
		if r := ParseRequest(url.Values{"sort": {s.Field}}); r.Sort != s.Field {
			t.Errorf("sort %q rejected", s.Field)
		}
	}
}

func TestNegativePage(t *testing.T) {
	if r := ParseRequest(url.Values{"page": {"-4"}}); r.Page != 0 {
		t.Errorf("page = %d", r.Page)
	}
}

func TestNormaliseFilename(t *testing.T) {
	if got := NormaliseFilename(`report dir:"docs/a" `); got != "report_dir__docs_a__" {
		t.Errorf("got %q", got)
	}
	if got := NormaliseFilename("héllo"); got != "h_llo" {
		t.Errorf("got %q", got)
	}

	allowed := regexp.MustCompile(`^[A-Za-z0-9_-]*$`)
	prop := func(s string) bool {
		return allowed.MatchString(NormaliseFilename(s))
	}
	if err := quick.Check(prop, nil); err != nil {
		t.Error(err)
	}
}

func ExampleCompile() {
	r := NewRequest()
	r.Query = "budget"
	r.After = "2024-01"
	r.Dir = "docs/finance"
	fmt.Printf("%q\n", Compile(r))
	// Output: "budget date:2024-01/ dir:\"docs/finance\" "
}
