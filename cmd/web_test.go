package cmd

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rubiojr/fedsearch/pkg/config"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/engine/enginetest"
	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

func setupTestResolver(t *testing.T) (*settings.Resolver, string) {
	t.Helper()
	docs := filepath.Join(t.TempDir(), "docs")
	if err := os.MkdirAll(filepath.Join(docs, "projects"), 0755); err != nil {
		t.Fatal(err)
	}

	eng := enginetest.New()
	eng.Add("/conf/fake",
		engine.Fields{"url": "file://" + docs + "/a.txt", "filename": "a.txt", "mtype": "text/plain", "content": "quarterly report draft", "fbytes": "2048", "fmtime": "1700000000"},
		engine.Fields{"url": "file://" + docs + "/projects/b.txt", "filename": "b.txt", "title": "Project report", "mtype": "text/plain", "content": "report on the project"},
		engine.Fields{"url": "file://" + docs + "/c.txt", "filename": "c.txt", "mtype": "text/plain", "content": "final report"},
	)

	return &settings.Resolver{
		Config: &config.Config{ConfDir: "/conf"},
		Engine: eng,
		Reader: idxconf.MapReader{"/conf": {TopDirs: []string{docs}}},
		Getenv: func(string) string { return "" },
	}, docs
}

func setupTestWebServer(t *testing.T) (http.Handler, string) {
	t.Helper()
	resolver, docs := setupTestResolver(t)
	return NewWebServer(resolver.Config, resolver).Handler(), docs
}

func serve(h http.Handler, method, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestWebHome(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{`class="search-form"`, `value="&lt;all&gt;"`, `value="docs/projects"`, `value="relevancyrating" selected`} {
		if !strings.Contains(body, want) {
			t.Errorf("home page is missing %s", want)
		}
	}
}

func TestWebHomeRedirectsQuery(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/?query=report")
	if w.Code != http.StatusFound {
		t.Fatalf("Expected status 302, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "results?query=report" {
		t.Errorf("Location = %q", loc)
	}
}

func TestWebResults(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/results?query=report")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"3 results for <strong>report</strong>",
		"a.txt",
		"Project report",
		"2.0 KB",
		`<span class="search-result-highlight">report</span>`,
		`href="download/0?`,
		`href="json?`,
		`href="csv?`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("results page is missing %s", want)
		}
	}
	if strings.Contains(body, `class="pager"`) {
		t.Error("single page should have no pager")
	}
}

func TestWebResultsPaged(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/results?query=report&page=2", &http.Cookie{Name: "perpage", Value: "1"})
	body := w.Body.String()
	if !strings.Contains(body, `<ol class="results" start="2">`) {
		t.Error("second page should start at 2")
	}
	if !strings.Contains(body, `<span class="current">2</span>`) {
		t.Error("pager should mark page 2 as current")
	}
	if strings.Contains(body, "a.txt") {
		t.Error("first result leaked into page 2")
	}
}

func TestWebResultsTitleLink(t *testing.T) {
	h, docs := setupTestWebServer(t)

	w := serve(h, "GET", "/results?query=quarterly",
		&http.Cookie{Name: "title_link", Value: "open"},
		&http.Cookie{Name: settings.MountKey(docs), Value: "http://nas/docs"},
	)
	if !strings.Contains(w.Body.String(), `<a href="http://nas/docs/a.txt">a.txt</a>`) {
		t.Errorf("title should link to the mounted url:\n%s", w.Body.String())
	}
}

func TestWebResultsExtractionDisabled(t *testing.T) {
	resolver, _ := setupTestResolver(t)
	off := false
	resolver.Config.Extraction = &off
	h := NewWebServer(resolver.Config, resolver).Handler()

	w := serve(h, "GET", "/results?query=report")
	if strings.Contains(w.Body.String(), "result-actions") {
		t.Error("preview links shown with extraction disabled")
	}
}

func TestWebSettings(t *testing.T) {
	h, docs := setupTestWebServer(t)

	w := serve(h, "GET", "/settings", &http.Cookie{Name: "perpage", Value: "10"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`name="perpage" value="10"`,
		`name="title_link" value="download"`,
		"Title Link",
		`value="file://` + docs + `"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("settings page is missing %s", want)
		}
	}
}

func TestWebSet(t *testing.T) {
	h, docs := setupTestWebServer(t)

	w := serve(h, "GET", "/set?perpage=10&bogus=1&"+url.QueryEscape(settings.MountKey(docs))+"=http://nas/docs")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "./" {
		t.Fatalf("set = %d %q", w.Code, w.Header().Get("Location"))
	}
	cookies := map[string]string{}
	for _, c := range w.Result().Cookies() {
		cookies[c.Name] = c.Value
	}
	if cookies["perpage"] != "10" {
		t.Errorf("perpage cookie = %q", cookies["perpage"])
	}
	if _, ok := cookies["bogus"]; ok {
		t.Error("unknown option stored")
	}
	if cookies[settings.MountKey(docs)] == "" {
		t.Error("mount cookie not stored")
	}
}

func TestWebOpenSearch(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/osd.xml")
	if ct := w.Header().Get("Content-Type"); ct != "application/opensearchdescription+xml" {
		t.Errorf("Content-Type = %s", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "<ShortName>fedsearch</ShortName>") {
		t.Errorf("missing short name:\n%s", body)
	}
	if !strings.Contains(body, "http://example.com/results?page=1&amp;query={searchTerms}") {
		t.Errorf("missing search url:\n%s", body)
	}
}

func TestWebStatic(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/static/style.css")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "text/css" {
		t.Errorf("style.css = %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	if w := serve(h, "GET", "/static/missing.js"); w.Code != http.StatusNotFound {
		t.Errorf("missing asset = %d", w.Code)
	}
}

func TestWebRequestID(t *testing.T) {
	h, _ := setupTestWebServer(t)

	w := serve(h, "GET", "/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("no request id")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("request id = %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestWebRouting(t *testing.T) {
	h, _ := setupTestWebServer(t)

	if w := serve(h, "GET", "/nope"); w.Code != http.StatusNotFound {
		t.Errorf("unknown path = %d", w.Code)
	}
	for _, endpoint := range []string{"/results", "/settings", "/set", "/json"} {
		if w := serve(h, "POST", endpoint); w.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST %s = %d", endpoint, w.Code)
		}
	}
}
