package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func writeGzip(t *testing.T, p, content string) {
	t.Helper()
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeZstd(t *testing.T, p, content string) {
	t.Helper()
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := zw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func writeZip(t *testing.T, p string, members map[string]string) {
	t.Helper()
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := zip.NewWriter(f)
	for name, content := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestText(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), "plain notes")
	writeFile(t, filepath.Join(dir, "page.html"), "<p>hello</p>")
	writeGzip(t, filepath.Join(dir, "log.txt.gz"), "gzipped log")
	writeZstd(t, filepath.Join(dir, "log.txt.zst"), "zstd log")
	writeZip(t, filepath.Join(dir, "bundle.zip"), map[string]string{"inner/a.txt": "member text"})

	tests := []struct {
		name      string
		doc       Doc
		wantText  string
		wantMType string
	}{
		{"plain", Doc{URL: "file://" + dir + "/notes.txt"}, "plain notes", "text/plain"},
		{"html", Doc{URL: "file://" + dir + "/page.html"}, "<p>hello</p>", "text/html"},
		{"gzip", Doc{URL: "file://" + dir + "/log.txt.gz"}, "gzipped log", "text/plain"},
		{"zstd", Doc{URL: "file://" + dir + "/log.txt.zst"}, "zstd log", "text/plain"},
		{"zip member", Doc{URL: "file://" + dir + "/bundle.zip", IPath: "inner/a.txt"}, "member text", "text/plain"},
	}
	e := &Extractor{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, mtype, err := e.Text(context.Background(), tt.doc)
			if err != nil {
				t.Fatal(err)
			}
			if text != tt.wantText || mtype != tt.wantMType {
				t.Errorf("Text = %q (%s), want %q (%s)", text, mtype, tt.wantText, tt.wantMType)
			}
		})
	}
}

func TestTextErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "blob.bin"), "\x00\x01\xff\xfe")
	writeZip(t, filepath.Join(dir, "bundle.zip"), map[string]string{"a.txt": "x"})
	e := &Extractor{}

	if _, _, err := e.Text(context.Background(), Doc{URL: "file://" + dir + "/blob.bin"}); !errors.Is(err, ErrNotText) {
		t.Errorf("binary err = %v", err)
	}
	if _, _, err := e.Text(context.Background(), Doc{URL: "file://" + dir + "/bundle.zip", IPath: "b.txt"}); !errors.Is(err, ErrNoMember) {
		t.Errorf("missing member err = %v", err)
	}
	if _, _, err := e.Text(context.Background(), Doc{URL: "file://" + dir + "/gone.txt"}); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
	if _, _, err := e.Text(context.Background(), Doc{URL: "https://example.com/x"}); err == nil {
		t.Error("remote URL should fail")
	}
}

func TestDisabled(t *testing.T) {
	e := &Extractor{Disabled: true}
	if _, _, err := e.Text(context.Background(), Doc{URL: "file:///etc/hosts"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Text err = %v", err)
	}
	if _, _, err := e.ToFile(context.Background(), Doc{URL: "file:///etc/hosts"}); !errors.Is(err, ErrUnavailable) {
		t.Errorf("ToFile err = %v", err)
	}
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	tmp := t.TempDir()
	plain := filepath.Join(dir, "notes.txt")
	writeFile(t, plain, "plain notes")
	writeZip(t, filepath.Join(dir, "bundle.zip"), map[string]string{"docs/report.txt": "member text"})
	e := &Extractor{TempDir: tmp}

	p, cleanup, err := e.ToFile(context.Background(), Doc{URL: "file://" + plain})
	if err != nil {
		t.Fatal(err)
	}
	cleanup()
	if p != plain {
		t.Errorf("top-level document should be served in place, got %s", p)
	}
	if _, err := os.Stat(plain); err != nil {
		t.Error("cleanup removed the original file")
	}

	p, cleanup, err = e.ToFile(context.Background(), Doc{URL: "file://" + dir + "/bundle.zip", IPath: "docs/report.txt"})
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Dir(p) != tmp || !strings.HasSuffix(p, "-report.txt") {
		t.Errorf("extracted to %s", p)
	}
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "member text" {
		t.Errorf("extracted content = %q, %v", data, err)
	}
	cleanup()
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Errorf("cleanup left %s behind", p)
	}
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		name string
		head string
		want string
	}{
		{"a.txt", "", "text/plain"},
		{"a.TXT.gz", "", "text/plain"},
		{"a.html", "", "text/html"},
		{"README", "just some words", "text/plain"},
		{"blob", "\x00\x01\x02", "application/octet-stream"},
		{"image", "\x89PNG\r\n\x1a\n", "image/png"},
	}
	for _, tt := range tests {
		if got := MimeType(tt.name, []byte(tt.head)); got != tt.want {
			t.Errorf("MimeType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
	if !IsText("text/x-go") || !IsText("application/json") || IsText("image/png") {
		t.Error("IsText misclassified")
	}
	if !IsArchive("x.ZIP") || IsArchive("x.gz") || !IsCompressed("x.zst") {
		t.Error("archive/compression detection misclassified")
	}
}
