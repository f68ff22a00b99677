package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/log"
)

// DefaultDebounce is how long changes are collected before a batch is
// written.
const DefaultDebounce = 2 * time.Second

// Watcher re-indexes files of one index as they change.
type Watcher struct {
	ix       *Indexer
	location string
	langs    []string
	skip     []glob.Glob
	watcher  *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]struct{}

	// OnBatch, when set, is called after every written batch.
	OnBatch func(Stats)
}

// NewWatcher watches every directory below the top directories of the
// index under confRoot. Run starts processing events.
func (ix *Indexer) NewWatcher(confRoot string, debounce time.Duration) (*Watcher, error) {
	cfg, err := ix.Reader.Load(confRoot)
	if err != nil {
		return nil, err
	}
	skip, err := compileGlobs(cfg.SkippedNames)
	if err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{
		ix:       ix,
		location: ix.Engine.Location(confRoot),
		langs:    cfg.StemmingLanguages,
		skip:     skip,
		watcher:  fw,
		debounce: debounce,
		pending:  make(map[string]struct{}),
	}
	for _, top := range cfg.TopDirs {
		w.addTree(top)
	}
	return w, nil
}

// addTree watches dir and its subdirectories and returns the regular files
// found below it.
func (w *Watcher) addTree(dir string) []string {
	logger := log.ForService("indexer")
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path != dir && skipped(w.skip, d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := w.watcher.Add(path); err != nil {
				logger.Warnf("watching %s: %v", path, err)
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		logger.Warnf("walking %s: %v", dir, err)
	}
	return files
}

// Run processes filesystem events until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()
	logger := log.ForService("indexer")
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := w.flush(context.WithoutCancel(ctx)); err != nil {
				logger.Warnf("writing last batch: %v", err)
			}
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if skipped(w.skip, filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				logger.Debugf("%s: %s", event.Op, event.Name)
				w.mu.Lock()
				w.pending[event.Name] = struct{}{}
				w.mu.Unlock()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watcher error: %v", err)
		case <-ticker.C:
			if err := w.flush(ctx); err != nil {
				logger.Warnf("writing batch: %v", err)
			}
		}
	}
}

// flush writes the pending changes in one writer session.
func (w *Watcher) flush(ctx context.Context) error {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return nil
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()
	sort.Strings(paths)

	writer, err := w.ix.Engine.Create(w.location, w.langs)
	if err != nil {
		return fmt.Errorf("opening index %s: %w", w.location, err)
	}

	var stats Stats
	var errs []error
	for _, p := range paths {
		info, err := os.Stat(p)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// TODO: also drop the member documents of a removed zip archive.
			if err := remove(ctx, writer, p); err != nil {
				errs = append(errs, err)
			}
		case err != nil:
			errs = append(errs, err)
		case info.IsDir():
			for _, f := range w.addTree(p) {
				w.indexOne(ctx, writer, f, &stats)
			}
		case info.Mode().IsRegular():
			w.indexOne(ctx, writer, p, &stats)
		}
	}
	if err := writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing index %s: %w", w.location, err))
	}
	log.ForService("indexer").Infof("updated %s: %s", w.location, stats)
	if w.OnBatch != nil {
		w.OnBatch(stats)
	}
	return errors.Join(errs...)
}

func (w *Watcher) indexOne(ctx context.Context, writer engine.Writer, path string, stats *Stats) {
	n, err := w.ix.indexFile(ctx, writer, path)
	stats.Files++
	stats.Docs += n
	if err != nil {
		log.ForService("indexer").Warnf("indexing %s: %v", path, err)
		stats.Errors++
	}
}

func remove(ctx context.Context, writer engine.Writer, path string) error {
	d, ok := writer.(engine.Deleter)
	if !ok {
		return nil
	}
	doc := engine.Doc{URL: "file://" + path}
	if err := d.Delete(ctx, doc.ID()); err != nil {
		return fmt.Errorf("removing %s: %w", path, err)
	}
	return nil
}
