// Package search runs a compiled query across the federated indexes and
// turns the resulting cursor into a page of normalized records.
//
// # Overview
//
// A search goes through three steps, each usable on its own:
//
//   - SelectLocations: pick the index locations a directory scope needs
//   - Execute: open one session over those locations, sort and run the
//     native expression
//   - Paginate: seek to the requested page and materialize its records
//
// Service ties them together for the HTTP handlers and the CLI.
//
// # Fail-soft policy
//
// A search never fails because of the query. An index that cannot be
// opened or an expression the backend rejects yields an empty session,
// logged at WARN, and the client sees zero results. A row that cannot be
// read ends the page early; the total reported is the count taken before
// rows were pulled. The only error a caller sees is ErrBadIndex, returned
// when a single result is requested by a position outside the result set.
//
// # Usage
//
//	svc := search.NewService(eng, 30*time.Second)
//	snap := resolver.Resolve(settings.CookieOverrides{Request: r})
//	page := svc.Search(ctx, snap, query.ParseRequest(r.URL.Query()))
//	for _, rec := range page.Records {
//		fmt.Println(rec.Label, rec.URL)
//	}
//
// # Pagination
//
// The effective limits are computed in a fixed order: the native row
// count, then the max-results ceiling (0 meaning the row count), then the
// page size. A per-page of 0 or a page number of 0 puts the whole ceiling
// on a single page, which is how the exporters get every result.
package search
