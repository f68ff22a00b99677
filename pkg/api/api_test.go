package api

import (
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/config"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/engine/enginetest"
	"github.com/rubiojr/fedsearch/pkg/extract"
	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/render"
	"github.com/rubiojr/fedsearch/pkg/search"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

func setupTestAPIServer(t *testing.T, extractor *extract.Extractor) (*http.ServeMux, string) {
	t.Helper()
	docs := filepath.Join(t.TempDir(), "docs")
	if err := os.MkdirAll(filepath.Join(docs, "projects"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "notes.txt"), []byte("weekly report notes"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(docs, "page.html"), []byte("<p>report page</p>"), 0644); err != nil {
		t.Fatal(err)
	}
	zf, err := os.Create(filepath.Join(docs, "bundle.zip"))
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(zf)
	mw, _ := zw.Create("inner/member.txt")
	mw.Write([]byte("zipped report"))
	zw.Close()
	zf.Close()

	eng := enginetest.New()
	eng.Add("/conf/fake",
		engine.Fields{"url": "file://" + docs + "/notes.txt", "filename": "notes.txt", "mtype": "text/plain", "content": "weekly report notes", "fbytes": "19"},
		engine.Fields{"url": "file://" + docs + "/page.html", "filename": "page.html", "title": "Page", "mtype": "text/html", "content": "report page"},
		engine.Fields{"url": "file://" + docs + "/bundle.zip", "ipath": "inner/member.txt", "filename": "member.txt", "mtype": "text/plain", "content": "zipped report"},
	)

	resolver := &settings.Resolver{
		Config: &config.Config{ConfDir: "/conf"},
		Engine: eng,
		Reader: idxconf.MapReader{"/conf": {TopDirs: []string{docs}}},
		Getenv: func(string) string { return "" },
	}
	server := NewServer(search.NewService(eng, 0), resolver, extractor)
	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	return mux, docs
}

func get(mux *http.ServeMux, target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func TestAPIJSONExport(t *testing.T) {
	mux, _ := setupTestAPIServer(t, nil)

	w := get(mux, "/json?query=report&page=2", &http.Cookie{Name: "perpage", Value: "1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=fedsearch-report.json" {
		t.Errorf("Content-Disposition = %s", cd)
	}

	var doc render.Document
	if err := json.Unmarshal(w.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.NRes != 3 || len(doc.Results) != 3 {
		t.Errorf("export should be unpaged: nres=%d results=%d", doc.NRes, len(doc.Results))
	}
	if doc.Query.Page != 0 {
		t.Errorf("echoed page = %d", doc.Query.Page)
	}
}

func TestAPICSVExport(t *testing.T) {
	mux, _ := setupTestAPIServer(t, nil)

	w := get(mux, "/csv?query=report", &http.Cookie{Name: "csvfields", Value: "filename+bogus+size"})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=fedsearch-report.csv" {
		t.Errorf("Content-Disposition = %s", cd)
	}
	rows, err := csv.NewReader(w.Body).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 || strings.Join(rows[0], ",") != "filename,size" {
		t.Errorf("rows = %v", rows)
	}
	if rows[1][1] != "19" {
		t.Errorf("size = %q", rows[1][1])
	}
}

func TestAPISearch(t *testing.T) {
	mux, _ := setupTestAPIServer(t, nil)

	w := get(mux, "/api/search?query=report&dir=docs/projects")
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var resp SearchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.NRes != 3 || resp.Page != 1 || len(resp.Results) != 3 {
		t.Errorf("response = %+v", resp)
	}
	if resp.Expression != `report dir:"docs/projects" ` {
		t.Errorf("expression = %q", resp.Expression)
	}
	if resp.Results[0].Snippet == nil || !strings.Contains(*resp.Results[0].Snippet, "search-result-highlight") {
		t.Errorf("snippet = %v", resp.Results[0].Snippet)
	}
}

func TestAPIDirs(t *testing.T) {
	mux, docs := setupTestAPIServer(t, nil)

	w := get(mux, "/api/dirs")
	var resp DirsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Entries[0] != (catalog.Entry{Dir: docs, Location: "/conf/fake"}) {
		t.Errorf("entries = %+v", resp.Entries)
	}
	want := []string{catalog.Unrestricted, "docs", "docs/projects"}
	if strings.Join(resp.Tree, "|") != strings.Join(want, "|") {
		t.Errorf("tree = %v", resp.Tree)
	}
}

func TestAPIHealth(t *testing.T) {
	mux, _ := setupTestAPIServer(t, nil)

	w := get(mux, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Backend != "fake" {
		t.Errorf("health = %+v", resp)
	}
}

func TestAPIPreview(t *testing.T) {
	mux, _ := setupTestAPIServer(t, &extract.Extractor{})

	w := get(mux, "/preview/0?query=report")
	if w.Code != http.StatusOK || w.Body.String() != "weekly report notes" {
		t.Errorf("preview = %d %q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %s", ct)
	}

	w = get(mux, "/preview/1?query=report")
	if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("html Content-Type = %s", ct)
	}

	w = get(mux, "/preview/2?query=report")
	if w.Body.String() != "zipped report" {
		t.Errorf("member preview = %q", w.Body.String())
	}
}

func TestAPIBadResultIndex(t *testing.T) {
	mux, _ := setupTestAPIServer(t, &extract.Extractor{})

	for _, target := range []string{"/preview/3?query=report", "/download/7?query=report", "/preview/0?query=nomatch"} {
		w := get(mux, target)
		if w.Code != http.StatusBadRequest || !strings.HasPrefix(w.Body.String(), "Bad result index ") {
			t.Errorf("%s: %d %q", target, w.Code, w.Body.String())
		}
	}
	if w := get(mux, "/preview/3?query=report"); w.Body.String() != "Bad result index 3" {
		t.Errorf("message = %q", w.Body.String())
	}
	if w := get(mux, "/preview/x"); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric index: %d", w.Code)
	}
}

func TestAPIDownload(t *testing.T) {
	mux, _ := setupTestAPIServer(t, &extract.Extractor{TempDir: t.TempDir()})

	w := get(mux, "/download/0?query=report")
	if w.Code != http.StatusOK || w.Body.String() != "weekly report notes" {
		t.Errorf("download = %d %q", w.Code, w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=notes.txt" {
		t.Errorf("Content-Disposition = %s", cd)
	}

	w = get(mux, "/download/2?query=report")
	if w.Body.String() != "zipped report" {
		t.Errorf("member download = %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); cd != "attachment; filename=member.txt" {
		t.Errorf("member Content-Disposition = %s", cd)
	}
}

func TestAPIExtractionDisabled(t *testing.T) {
	mux, _ := setupTestAPIServer(t, &extract.Extractor{Disabled: true})

	for _, target := range []string{"/preview/0?query=report", "/download/0?query=report"} {
		w := get(mux, target)
		if w.Body.String() != ExtractionDisabledMessage {
			t.Errorf("%s = %q", target, w.Body.String())
		}
	}
}

func TestAPIMethodNotAllowed(t *testing.T) {
	mux, _ := setupTestAPIServer(t, nil)

	for _, endpoint := range []string{"/json", "/csv", "/api/search", "/api/dirs", "/health"} {
		for _, method := range []string{"POST", "PUT", "DELETE"} {
			t.Run(method+"_"+endpoint, func(t *testing.T) {
				req := httptest.NewRequest(method, endpoint, nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				if w.Code != http.StatusMethodNotAllowed {
					t.Errorf("Expected status 405 for %s %s, got %d", method, endpoint, w.Code)
				}
			})
		}
	}
}

func TestCorsMiddleware(t *testing.T) {
	h := CorsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("OPTIONS", "/json", nil))
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/json", nil))
	if w.Code != http.StatusTeapot {
		t.Errorf("GET passed through as %d", w.Code)
	}
}
