package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /json", s.HandleJSON)
	mux.HandleFunc("GET /csv", s.HandleCSV)
	mux.HandleFunc("GET /preview/{n}", s.HandlePreview)
	mux.HandleFunc("GET /download/{n}", s.HandleDownload)
	mux.HandleFunc("GET /api/search", s.HandleSearch)
	mux.HandleFunc("GET /api/dirs", s.HandleDirs)
	mux.HandleFunc("GET /health", s.HandleHealth)
}
