package search

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/engine"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

// SelectLocations returns the index locations a scope needs.
//
// The unrestricted scope selects all. Otherwise an entry matches when the
// basename of its directory starts with the scope, or when the scope lies
// inside that directory (it equals the basename or starts with the basename
// followed by a slash). Distinct matching locations are returned in catalog
// order. A scope matching nothing selects all.
func SelectLocations(scope string, entries []catalog.Entry, all []string) []string {
	if scope == "" || scope == catalog.Unrestricted {
		return all
	}
	seen := make(map[string]bool)
	var locs []string
	for _, e := range entries {
		if !scopeMatches(scope, e.Dir) || seen[e.Location] {
			continue
		}
		seen[e.Location] = true
		locs = append(locs, e.Location)
	}
	if len(locs) == 0 {
		log.ForService("search").Debugf("scope %q matched no directory, searching everything", scope)
		return all
	}
	return locs
}

func scopeMatches(scope, dir string) bool {
	base := filepath.Base(filepath.Clean(dir))
	return strings.HasPrefix(base, scope) || scope == base || strings.HasPrefix(scope, base+"/")
}

// Execute opens a session over the locations the request's scope selects
// and runs expr on it. Open or execution failures are logged and replaced
// by an empty session. A non-zero timeout bounds the execution.
func Execute(ctx context.Context, eng engine.Engine, snap *settings.Snapshot, req query.Request, expr string, timeout time.Duration) engine.Session {
	logger := log.ForService("search")

	locs := SelectLocations(req.Dir, snap.Dirs, snap.Locations())
	if len(locs) == 0 {
		return engine.EmptySession{}
	}
	sess, err := eng.Open(locs[0], locs[1:])
	if err != nil {
		logger.Warnf("opening %v: %v", locs, err)
		return engine.EmptySession{}
	}

	sess.SetAbstractParams(snap.Options.MaxChars, snap.Options.Context)
	sess.SortBy(req.Sort, req.Ascending != 0)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	logger.Debugf("executing %q on %d location(s)", expr, len(locs))
	if err := sess.Execute(ctx, expr, snap.Options.Stem != 0, snap.StemLangs); err != nil {
		logger.Warnf("query %q failed, returning no results: %v", expr, err)
		if cerr := sess.Close(); cerr != nil {
			logger.Debugf("closing failed session: %v", cerr)
		}
		return engine.EmptySession{}
	}
	return sess
}
