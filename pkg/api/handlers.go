package api

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/extract"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/render"
	"github.com/rubiojr/fedsearch/pkg/search"
	"github.com/rubiojr/fedsearch/pkg/version"
)

// ExtractionDisabledMessage is the reply of preview and download when
// extraction is turned off.
const ExtractionDisabledMessage = "Sorry, document extraction is disabled on this server"

func (s *Server) HandleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	req := render.ExportRequest(query.ParseRequest(r.URL.Query()), "json")
	page := s.service.Search(r.Context(), snap, req)

	render.SetExportHeaders(w, req, "json", "application/json")
	if err := render.JSON(w, req, page); err != nil {
		log.ForService("api").Errorf("writing json export: %v", err)
	}
}

func (s *Server) HandleCSV(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	req := render.ExportRequest(query.ParseRequest(r.URL.Query()), "csv")
	page := s.service.Search(r.Context(), snap, req)

	render.SetExportHeaders(w, req, "csv", "text/csv")
	if err := render.CSV(w, snap.Options.CSVFields, page); err != nil {
		log.ForService("api").Errorf("writing csv export: %v", err)
	}
}

func (s *Server) HandleSearch(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	req := query.ParseRequest(r.URL.Query())
	if req.Page == 0 && r.URL.Query().Get("page") == "" {
		req.Page = 1
	}
	page := s.service.Search(r.Context(), snap, req)

	results := page.Records
	if results == nil {
		results = []search.Record{}
	}
	s.writeJSON(w, http.StatusOK, SearchResponse{
		Query:      req,
		Expression: query.Compile(req),
		NRes:       page.Total,
		Page:       page.Page,
		Pages:      page.Pages(),
		PerPage:    page.PerPage,
		ElapsedMS:  page.Elapsed.Milliseconds(),
		Results:    results,
	})
}

func (s *Server) HandleDirs(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot(r)
	entries := snap.Dirs
	if entries == nil {
		entries = []catalog.Entry{}
	}
	s.writeJSON(w, http.StatusOK, DirsResponse{
		Entries: entries,
		Tree:    catalog.BrowseTree(snap.Dirs, snap.Options.DirDepth),
		Count:   len(entries),
	})
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Version:   version.APIVersion(),
		Backend:   s.service.Engine().Name(),
	}

	s.writeJSON(w, http.StatusOK, health)
}

// fetch re-runs the request's search and returns result n. It writes the
// error reply itself and returns nil on failure.
func (s *Server) fetch(w http.ResponseWriter, r *http.Request) *search.Record {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Bad result index %s", r.PathValue("n")))
		return nil
	}
	rec, err := s.service.Fetch(r.Context(), s.snapshot(r), query.ParseRequest(r.URL.Query()), n)
	if errors.Is(err, search.ErrBadIndex) {
		writeText(w, http.StatusBadRequest, fmt.Sprintf("Bad result index %d", n))
		return nil
	}
	if err != nil {
		log.ForService("api").Warnf("fetching result %d: %v", n, err)
		writeText(w, http.StatusInternalServerError, "Could not read the result")
		return nil
	}
	return rec
}

func (s *Server) HandlePreview(w http.ResponseWriter, r *http.Request) {
	if s.extractor.Disabled {
		writeText(w, http.StatusOK, ExtractionDisabledMessage)
		return
	}
	rec := s.fetch(w, r)
	if rec == nil {
		return
	}

	text, mtype, err := s.extractor.Text(r.Context(), extract.Doc{URL: rec.URL, IPath: rec.IPath, MimeType: rec.MType})
	switch {
	case errors.Is(err, extract.ErrNotText):
		writeText(w, http.StatusOK, fmt.Sprintf("No text preview available for %s (%s)", rec.Label, mtype))
		return
	case err != nil:
		log.ForService("api").Warnf("previewing %s: %v", rec.URL, err)
		writeText(w, http.StatusNotFound, "Document is not available")
		return
	}

	if mtype == "text/html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Security-Policy", "sandbox")
	} else {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if _, err := w.Write([]byte(text)); err != nil {
		log.ForService("api").Debugf("writing preview: %v", err)
	}
}

func (s *Server) HandleDownload(w http.ResponseWriter, r *http.Request) {
	if s.extractor.Disabled {
		writeText(w, http.StatusOK, ExtractionDisabledMessage)
		return
	}
	rec := s.fetch(w, r)
	if rec == nil {
		return
	}

	path, cleanup, err := s.extractor.ToFile(r.Context(), extract.Doc{URL: rec.URL, IPath: rec.IPath, MimeType: rec.MType})
	if err != nil {
		log.ForService("api").Warnf("extracting %s: %v", rec.URL, err)
		writeText(w, http.StatusNotFound, "Document is not available")
		return
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		writeText(w, http.StatusNotFound, "Document is not available")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeText(w, http.StatusInternalServerError, "Could not read the document")
		return
	}

	name := filepath.Base(path)
	if rec.IPath != "" {
		name = filepath.Base(rec.IPath)
	}
	if rec.MType != "" {
		w.Header().Set("Content-Type", rec.MType)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
