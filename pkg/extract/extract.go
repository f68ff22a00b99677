// Package extract gets at the content of indexed documents for preview and
// download. Plain files are read in place, zip members are addressed by
// their internal path and gzip or zstd files are decompressed on the fly.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"

	"github.com/rubiojr/fedsearch/pkg/log"
)

var (
	// ErrUnavailable is returned by a disabled extractor.
	ErrUnavailable = errors.New("document extraction is not available")

	// ErrNotText is returned by Text for binary content.
	ErrNotText = errors.New("document has no text content")

	// ErrNoMember is returned when a zip has no member at the internal path.
	ErrNoMember = errors.New("no such archive member")
)

// MaxPreview bounds the bytes read for a preview.
const MaxPreview = 8 << 20

// Doc identifies a document by location URL and internal path.
type Doc struct {
	URL      string
	IPath    string
	MimeType string
}

// Extractor reads documents from the local filesystem.
type Extractor struct {
	// Disabled makes every operation fail with ErrUnavailable.
	Disabled bool
	// TempDir holds extracted sub-documents. Empty means os.TempDir.
	TempDir string
}

// Text returns the text of doc and the mimetype it should be served as.
func (e *Extractor) Text(ctx context.Context, doc Doc) (string, string, error) {
	if e.Disabled {
		return "", "", ErrUnavailable
	}
	rc, name, err := e.open(doc)
	if err != nil {
		return "", "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxPreview))
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", name, err)
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	mtype := MimeType(name, data)
	if doc.IPath == "" && doc.MimeType != "" && !IsCompressed(name) {
		mtype = doc.MimeType
	}
	if !utf8.Valid(data) || !IsText(mtype) {
		return "", mtype, fmt.Errorf("%w: %s", ErrNotText, mtype)
	}
	if mtype != "text/html" {
		mtype = "text/plain"
	}
	return string(data), mtype, nil
}

// ToFile returns a filesystem path holding doc. Top-level documents are
// returned in place; sub-documents are extracted to a temporary file that
// cleanup removes.
func (e *Extractor) ToFile(ctx context.Context, doc Doc) (string, func(), error) {
	if e.Disabled {
		return "", nil, ErrUnavailable
	}
	if doc.IPath == "" {
		p, err := FilePath(doc.URL)
		if err != nil {
			return "", nil, err
		}
		if _, err := os.Stat(p); err != nil {
			return "", nil, err
		}
		return p, func() {}, nil
	}

	rc, name, err := e.open(doc)
	if err != nil {
		return "", nil, err
	}
	defer rc.Close()

	dir := e.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	tmp := filepath.Join(dir, uuid.NewString()+"-"+path.Base(name))
	f, err := os.Create(tmp)
	if err != nil {
		return "", nil, fmt.Errorf("creating temporary file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			log.ForService("extract").Warnf("removing %s: %v", tmp, err)
		}
	}
	if _, err := io.Copy(f, ctxReader{ctx, rc}); err != nil {
		f.Close()
		cleanup()
		return "", nil, fmt.Errorf("extracting %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, err
	}
	return tmp, cleanup, nil
}

// open returns a reader over the content of doc and the name its type is
// judged by.
func (e *Extractor) open(doc Doc) (io.ReadCloser, string, error) {
	p, err := FilePath(doc.URL)
	if err != nil {
		return nil, "", err
	}
	if doc.IPath != "" {
		rc, err := OpenMember(p, doc.IPath)
		return rc, doc.IPath, err
	}
	rc, err := Open(p)
	return rc, p, err
}

// FilePath converts a file:// URL to a local path.
func FilePath(docURL string) (string, error) {
	if !strings.HasPrefix(docURL, "file://") {
		return "", fmt.Errorf("not a local document: %s", docURL)
	}
	p := strings.TrimPrefix(docURL, "file://")
	if unescaped, err := url.PathUnescape(p); err == nil && !fileExists(p) {
		p = unescaped
	}
	return p, nil
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// Open opens a file, decompressing .gz and .zst files transparently.
func Open(p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".gz":
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening gzip %s: %w", p, err)
		}
		return multiCloser{zr, zr, f}, nil
	case ".zst":
		zr, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("opening zstd %s: %w", p, err)
		}
		return multiCloser{zr, zstdCloser{zr}, f}, nil
	}
	return f, nil
}

// OpenMember opens the zip member at ipath.
func OpenMember(archive, ipath string) (io.ReadCloser, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return nil, fmt.Errorf("opening zip %s: %w", archive, err)
	}
	for _, f := range zr.File {
		if f.Name != ipath {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			zr.Close()
			return nil, fmt.Errorf("opening %s in %s: %w", ipath, archive, err)
		}
		return multiCloser{rc, rc, zr}, nil
	}
	zr.Close()
	return nil, fmt.Errorf("%w: %s in %s", ErrNoMember, ipath, archive)
}

// IsCompressed reports whether name is a gzip or zstd file.
func IsCompressed(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gz", ".zst":
		return true
	}
	return false
}

// IsArchive reports whether name is a zip file.
func IsArchive(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// MimeType guesses the type of a file from its name, ignoring a
// compression suffix, then from its first bytes.
func MimeType(name string, head []byte) string {
	if IsCompressed(name) {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		t, _, _ = strings.Cut(t, ";")
		return t
	}
	if len(head) > 512 {
		head = head[:512]
	}
	t, _, _ := strings.Cut(http.DetectContentType(head), ";")
	if t == "application/octet-stream" && len(head) > 0 && utf8.Valid(head) && !bytes.ContainsRune(head, 0) {
		return "text/plain"
	}
	return t
}

// IsText reports whether documents of mtype are readable as text.
func IsText(mtype string) bool {
	if strings.HasPrefix(mtype, "text/") {
		return true
	}
	switch mtype {
	case "application/json", "application/xml", "application/javascript",
		"application/x-sh", "application/toml", "application/yaml":
		return true
	}
	return false
}

type multiCloser struct {
	io.Reader
	first  io.Closer
	second io.Closer
}

func (m multiCloser) Close() error {
	return errors.Join(m.first.Close(), m.second.Close())
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
