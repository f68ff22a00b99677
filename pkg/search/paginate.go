package search

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// Page is one materialized page of results.
type Page struct {
	Records []Record
	// Total is the native row count of the query.
	Total int
	// Ceiling is Total clamped by the max-results option.
	Ceiling int
	PerPage int
	Page    int
	Elapsed time.Duration
}

// Pages returns the number of pages the ceiling spans.
func (p *Page) Pages() int {
	if p.PerPage <= 0 || p.Ceiling == 0 {
		return 1
	}
	return (p.Ceiling + p.PerPage - 1) / p.PerPage
}

// Paginate materializes the page req asks for from an executed session.
//
// Limits are applied in order: the row count, the max-results ceiling (0
// or less meaning the row count), then the page size. A per-page or page
// of 0 or less yields one page holding the whole ceiling. Nothing is read
// when the offset lies past the ceiling. A row that cannot be read ends
// the page.
func Paginate(ctx context.Context, sess engine.Session, req query.Request, opts settings.Options) *Page {
	logger := log.ForService("search")

	total := sess.RowCount()
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = total
	}
	ceiling := min(total, maxResults)

	perPage, page := opts.PerPage, req.Page
	if perPage <= 0 || page <= 0 {
		perPage, page = ceiling, 1
	}
	offset := (page - 1) * perPage

	p := &Page{Total: total, Ceiling: ceiling, PerPage: perPage, Page: page}
	if total == 0 || offset >= total || offset >= ceiling {
		return p
	}

	if err := sess.Seek(offset); err != nil {
		logger.Warnf("seeking to %d: %v", offset, err)
		return p
	}

	var hl engine.Highlighter
	if req.Highlight != 0 {
		hl = Highlighter{}
	}

	limit := min(perPage, ceiling-offset)
	if limit <= 0 {
		return p
	}
	p.Records = make([]Record, 0, limit)
	for len(p.Records) < limit {
		doc, err := sess.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warnf("reading row %d, returning partial page: %v", offset+len(p.Records), err)
			break
		}
		rec := NewRecord(doc, opts.TimeFmt)
		if req.Snippets != 0 {
			snippet := sess.MakeAbstract(doc, hl)
			rec.Snippet = &snippet
		}
		p.Records = append(p.Records, rec)
	}
	return p
}
