package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// ErrBadIndex is returned by Fetch for a position outside the result set.
var ErrBadIndex = errors.New("bad result index")

// Service runs searches for the web handlers and the CLI. It keeps no
// per-request state and is safe for concurrent use.
type Service struct {
	engine  engine.Engine
	timeout time.Duration
}

// NewService returns a service querying eng. A non-zero timeout bounds
// every query execution.
func NewService(eng engine.Engine, timeout time.Duration) *Service {
	return &Service{engine: eng, timeout: timeout}
}

// Engine returns the backend the service queries.
func (s *Service) Engine() engine.Engine {
	return s.engine
}

// Search compiles, executes and paginates req. Elapsed covers execution
// and materialization of the page.
func (s *Service) Search(ctx context.Context, snap *settings.Snapshot, req query.Request) *Page {
	expr := query.Compile(req)

	start := time.Now()
	sess := Execute(ctx, s.engine, snap, req, expr, s.timeout)
	defer closeSession(sess)

	page := Paginate(ctx, sess, req, snap.Options)
	page.Elapsed = time.Since(start)

	log.ForService("search").Debugf("%q: %d results, %d on page %d, %s",
		expr, page.Total, len(page.Records), page.Page, page.Elapsed)
	return page
}

// Fetch re-runs req and returns the record at absolute position n, without
// a snippet. Positions outside the result set yield ErrBadIndex.
func (s *Service) Fetch(ctx context.Context, snap *settings.Snapshot, req query.Request, n int) (*Record, error) {
	sess := Execute(ctx, s.engine, snap, req, query.Compile(req), s.timeout)
	defer closeSession(sess)

	if n < 0 || n > sess.RowCount()-1 {
		return nil, fmt.Errorf("%w %d", ErrBadIndex, n)
	}
	if err := sess.Seek(n); err != nil {
		return nil, fmt.Errorf("seeking to result %d: %w", n, err)
	}
	doc, err := sess.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w %d", ErrBadIndex, n)
	}
	if err != nil {
		return nil, fmt.Errorf("reading result %d: %w", n, err)
	}
	rec := NewRecord(doc, snap.Options.TimeFmt)
	return &rec, nil
}

func closeSession(sess engine.Session) {
	if err := sess.Close(); err != nil {
		log.ForService("search").Debugf("closing session: %v", err)
	}
}
