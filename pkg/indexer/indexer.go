// Package indexer builds an index from the top directories listed in an
// index configuration root.
//
// Every regular file becomes one document. Zip archives also yield one
// sub-document per member, addressed by the member name as internal path.
// Gzip and zstd files are indexed by their decompressed content. Names
// matching a skipped_names glob are ignored, directories included.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/gobwas/glob"
	"github.com/klauspost/compress/zip"

	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/extract"
	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/log"
)

// DefaultMaxFileSize bounds the bytes of text read from one document.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

// ErrInvalidPattern is returned for a skipped_names entry that is not a
// valid glob.
var ErrInvalidPattern = errors.New("invalid skipped_names pattern")

// Stats summarizes an indexing run.
type Stats struct {
	Files   int
	Docs    int
	Skipped int
	Errors  int
}

func (s Stats) String() string {
	return fmt.Sprintf("%d files, %d documents, %d skipped, %d errors", s.Files, s.Docs, s.Skipped, s.Errors)
}

// Indexer writes documents through an engine backend.
type Indexer struct {
	Engine engine.Engine
	Reader idxconf.Reader
	// MaxFileSize defaults to DefaultMaxFileSize.
	MaxFileSize int64
}

// New returns an indexer for eng reading index configurations with r.
func New(eng engine.Engine, r idxconf.Reader) *Indexer {
	return &Indexer{Engine: eng, Reader: r, MaxFileSize: DefaultMaxFileSize}
}

// Index walks every top directory of the index under confRoot and writes
// its documents. Unreadable files are counted and logged, not fatal.
func (ix *Indexer) Index(ctx context.Context, confRoot string) (Stats, error) {
	var stats Stats
	logger := log.ForService("indexer")

	cfg, err := ix.Reader.Load(confRoot)
	if err != nil {
		return stats, err
	}
	skip, err := compileGlobs(cfg.SkippedNames)
	if err != nil {
		return stats, err
	}

	loc := ix.Engine.Location(confRoot)
	w, err := ix.Engine.Create(loc, cfg.StemmingLanguages)
	if err != nil {
		return stats, fmt.Errorf("opening index %s: %w", loc, err)
	}

	for _, top := range cfg.TopDirs {
		logger.Infof("indexing %s into %s", top, loc)
		if err := ix.walk(ctx, w, top, skip, &stats); err != nil {
			w.Close()
			return stats, err
		}
	}
	if err := w.Close(); err != nil {
		return stats, fmt.Errorf("closing index %s: %w", loc, err)
	}
	logger.Infof("indexed %s: %s", loc, stats)
	return stats, nil
}

func (ix *Indexer) walk(ctx context.Context, w engine.Writer, root string, skip []glob.Glob, stats *Stats) error {
	logger := log.ForService("indexer")
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				logger.Warnf("skipping top directory %s: %v", root, err)
				return fs.SkipDir
			}
			logger.Debugf("skipping %s: %v", path, err)
			stats.Errors++
			return nil
		}
		if path != root && skipped(skip, d.Name()) {
			stats.Skipped++
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		n, err := ix.indexFile(ctx, w, path)
		stats.Files++
		stats.Docs += n
		if err != nil {
			logger.Warnf("indexing %s: %v", path, err)
			stats.Errors++
		}
		return nil
	})
}

// indexFile writes the documents of path and returns how many it wrote.
func (ix *Indexer) indexFile(ctx context.Context, w engine.Writer, path string) (int, error) {
	docs, err := ix.Documents(path)
	for i, d := range docs {
		if werr := w.Index(ctx, d); werr != nil {
			return i, errors.Join(err, werr)
		}
	}
	return len(docs), err
}

// Documents returns the documents of the file at path: the file itself
// first, then any archive members. A file whose content cannot be read
// still yields its metadata document alongside the error.
func (ix *Indexer) Documents(path string) ([]*engine.Doc, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	doc := &engine.Doc{
		URL:      "file://" + path,
		Filename: filepath.Base(path),
		Dir:      filepath.Dir(path),
		FBytes:   info.Size(),
		FMTime:   info.ModTime().Unix(),
	}

	if extract.IsArchive(path) {
		doc.MimeType = "application/zip"
		members, err := ix.members(doc, path)
		return append([]*engine.Doc{doc}, members...), err
	}

	rc, err := extract.Open(path)
	if err != nil {
		doc.MimeType = extract.MimeType(path, nil)
		return []*engine.Doc{doc}, err
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, ix.maxFileSize()))
	if extract.IsCompressed(path) {
		doc.DBytes = int64(len(data))
	}
	ix.fill(doc, path, data)
	return []*engine.Doc{doc}, err
}

func (ix *Indexer) members(container *engine.Doc, path string) ([]*engine.Doc, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("opening zip: %w", err)
	}
	defer zr.Close()

	var docs []*engine.Doc
	var errs []error
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		data, err := ix.readMember(f)
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", f.Name, err))
			continue
		}
		d := &engine.Doc{
			URL:      container.URL,
			IPath:    f.Name,
			Filename: filepath.Base(f.Name),
			Dir:      container.Dir,
			FBytes:   container.FBytes,
			FMTime:   container.FMTime,
			DBytes:   int64(f.UncompressedSize64),
			DMTime:   f.Modified.Unix(),
		}
		ix.fill(d, f.Name, data)
		docs = append(docs, d)
	}
	return docs, errors.Join(errs...)
}

func (ix *Indexer) readMember(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(io.LimitReader(rc, ix.maxFileSize()))
}

// fill sets the type and, for text, the content and title of d. HTML is
// reduced to its text.
func (ix *Indexer) fill(d *engine.Doc, name string, data []byte) {
	d.MimeType = extract.MimeType(name, data)
	if !extract.IsText(d.MimeType) || !utf8.Valid(data) {
		return
	}
	d.Charset = "utf-8"
	d.Content = string(data)
	if d.MimeType == "text/html" {
		title, text, err := htmlText(data)
		if err != nil {
			log.ForService("indexer").Debugf("parsing html %s: %v", name, err)
			return
		}
		d.Title = title
		d.Content = text
	}
}

func (ix *Indexer) maxFileSize() int64 {
	if ix.MaxFileSize > 0 {
		return ix.MaxFileSize
	}
	return DefaultMaxFileSize
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	matchers := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, errors.Join(ErrInvalidPattern, err)
		}
		matchers = append(matchers, g)
	}
	return matchers, nil
}

func skipped(skip []glob.Glob, name string) bool {
	for _, g := range skip {
		if g.Match(name) {
			return true
		}
	}
	return false
}
