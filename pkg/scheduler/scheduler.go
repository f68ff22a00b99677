// Package scheduler re-indexes index configuration roots on fixed
// intervals. Every root runs on its own ticker; runs of one root never
// overlap.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rubiojr/fedsearch/pkg/indexer"
	"github.com/rubiojr/fedsearch/pkg/log"
)

var (
	// ErrRunning is returned when a running scheduler is started again.
	ErrRunning = errors.New("scheduler is already running")

	// ErrNoJobs is returned by Start without any scheduled root.
	ErrNoJobs = errors.New("no index roots scheduled")
)

// Runner indexes one configuration root. *indexer.Indexer satisfies it.
type Runner interface {
	Index(ctx context.Context, confRoot string) (indexer.Stats, error)
}

// Scheduler runs a Runner for every scheduled root.
type Scheduler struct {
	runner    Runner
	intervals map[string]time.Duration
	tickers   map[string]*time.Ticker

	ctx       context.Context
	ctxCancel context.CancelFunc
	mu        sync.Mutex
	wg        sync.WaitGroup
	running   bool

	// OnRun, when set, is called after every run.
	OnRun func(confRoot string, stats indexer.Stats, err error)
}

// New returns a scheduler driving r.
func New(r Runner) *Scheduler {
	return &Scheduler{
		runner:    r,
		intervals: make(map[string]time.Duration),
		tickers:   make(map[string]*time.Ticker),
	}
}

// Add schedules confRoot every interval. Adding to a running scheduler
// starts the root right away.
func (s *Scheduler) Add(confRoot string, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %v for %s", interval, confRoot)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.intervals[confRoot]; exists {
		return fmt.Errorf("%s is already scheduled", confRoot)
	}
	s.intervals[confRoot] = interval
	if s.running {
		s.startLocked(confRoot, interval)
	}
	return nil
}

// Remove stops scheduling confRoot. A run in progress completes.
func (s *Scheduler) Remove(confRoot string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ticker, exists := s.tickers[confRoot]; exists {
		ticker.Stop()
		delete(s.tickers, confRoot)
	}
	delete(s.intervals, confRoot)
}

// Roots lists the scheduled roots in sorted order.
func (s *Scheduler) Roots() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	roots := make([]string, 0, len(s.intervals))
	for r := range s.intervals {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

// Start indexes every root once and then on its interval until ctx is
// done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrRunning
	}
	if len(s.intervals) == 0 {
		return ErrNoJobs
	}

	s.ctx, s.ctxCancel = context.WithCancel(ctx)
	s.running = true

	logger := log.ForService("scheduler")
	logger.Infof("starting with %d index roots", len(s.intervals))
	for root, interval := range s.intervals {
		s.startLocked(root, interval)
	}
	return nil
}

func (s *Scheduler) startLocked(confRoot string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	s.tickers[confRoot] = ticker
	s.wg.Add(1)
	go s.runRoot(s.ctx, confRoot, ticker)
	log.ForService("scheduler").Infof("scheduled %s every %v", confRoot, interval)
}

func (s *Scheduler) runRoot(ctx context.Context, confRoot string, ticker *time.Ticker) {
	defer s.wg.Done()
	defer ticker.Stop()

	s.run(ctx, confRoot)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.mu.Lock()
			_, scheduled := s.intervals[confRoot]
			s.mu.Unlock()
			if !scheduled {
				return
			}
			s.run(ctx, confRoot)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, confRoot string) {
	logger := log.ForService("scheduler")
	logger.Debugf("indexing %s", confRoot)
	stats, err := s.runner.Index(ctx, confRoot)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf("indexing %s: %v", confRoot, err)
	}
	if s.OnRun != nil {
		s.OnRun(confRoot, stats, err)
	}
}

// Stop cancels every root and waits for runs in progress.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.ctxCancel()
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.mu.Lock()
	s.tickers = make(map[string]*time.Ticker)
	s.mu.Unlock()
}

// Wait blocks until every root has stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
