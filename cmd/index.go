package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/rubiojr/fedsearch/pkg/idxconf"
	"github.com/rubiojr/fedsearch/pkg/indexer"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/scheduler"
)

// IndexCommand creates the index command
func IndexCommand() *cli.Command {
	return &cli.Command{
		Name:  "index",
		Usage: "Index the top directories of one or more index configuration roots",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "confroot",
				Usage: "Index configuration root, repeatable (defaults to confdir from the config file)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and re-index files as they change",
			},
			&cli.DurationFlag{
				Name:  "every",
				Usage: "Keep running and re-index everything on this interval",
			},
			&cli.DurationFlag{
				Name:  "debounce",
				Usage: "How long changes are collected before they are written",
				Value: indexer.DefaultDebounce,
			},
			&cli.Int64Flag{
				Name:  "max-file-size",
				Usage: "Bytes of text read from each document",
				Value: indexer.DefaultMaxFileSize,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, resolver, err := loadResolver(c.String("config"))
			if err != nil {
				return err
			}
			roots := c.StringSlice("confroot")
			if len(roots) == 0 {
				roots = []string{cfg.ConfDir}
			}
			if c.Bool("watch") && c.Duration("every") > 0 {
				return errors.New("--watch and --every are mutually exclusive")
			}

			ix := indexer.New(resolver.Engine, idxconf.FileReader{})
			ix.MaxFileSize = c.Int64("max-file-size")

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			switch {
			case c.Duration("every") > 0:
				return runScheduled(ctx, ix, roots, c.Duration("every"))
			case c.Bool("watch"):
				return runWatch(ctx, ix, roots, c.Duration("debounce"))
			}
			return runIndex(ctx, ix, roots)
		},
	}
}

// runIndex indexes every root once.
func runIndex(ctx context.Context, ix *indexer.Indexer, roots []string) error {
	for _, root := range roots {
		stats, err := ix.Index(ctx, root)
		if err != nil {
			return fmt.Errorf("indexing %s: %w", root, err)
		}
		fmt.Printf("Indexed %s: %s\n", root, stats)
	}
	return nil
}

// runWatch indexes every root, then follows changes below their top
// directories until ctx is done.
func runWatch(ctx context.Context, ix *indexer.Indexer, roots []string, debounce time.Duration) error {
	if err := runIndex(ctx, ix, roots); err != nil {
		return err
	}

	watchers := make([]*indexer.Watcher, 0, len(roots))
	for _, root := range roots {
		w, err := ix.NewWatcher(root, debounce)
		if err != nil {
			return fmt.Errorf("watching %s: %w", root, err)
		}
		watchers = append(watchers, w)
	}

	logger := log.ForService("indexer")
	logger.Infof("watching %d index roots for changes, press Ctrl+C to stop", len(roots))

	var wg sync.WaitGroup
	errs := make([]error, len(watchers))
	for i, w := range watchers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Run(ctx)
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}

// runScheduled re-indexes every root on interval until ctx is done.
func runScheduled(ctx context.Context, ix *indexer.Indexer, roots []string, interval time.Duration) error {
	s := scheduler.New(ix)
	s.OnRun = func(root string, stats indexer.Stats, err error) {
		if err == nil {
			log.ForService("scheduler").Infof("indexed %s: %s", root, stats)
		}
	}
	for _, root := range roots {
		if err := s.Add(root, interval); err != nil {
			return err
		}
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return nil
}
