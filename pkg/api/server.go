package api

import (
	"encoding/json"
	"net/http"

	"github.com/rubiojr/fedsearch/pkg/extract"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/search"
	"github.com/rubiojr/fedsearch/pkg/settings"
)

type Server struct {
	service   *search.Service
	resolver  *settings.Resolver
	extractor *extract.Extractor
}

func NewServer(service *search.Service, resolver *settings.Resolver, extractor *extract.Extractor) *Server {
	if extractor == nil {
		extractor = &extract.Extractor{Disabled: true}
	}
	return &Server{
		service:   service,
		resolver:  resolver,
		extractor: extractor,
	}
}

// snapshot resolves the configuration of r from its cookies.
func (s *Server) snapshot(r *http.Request) *settings.Snapshot {
	return s.resolver.Resolve(settings.CookieOverrides{Request: r})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.ForService("api").Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	response := ErrorResponse{
		Error:   error,
		Message: message,
	}
	s.writeJSON(w, status, response)
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(text)); err != nil {
		log.ForService("api").Debugf("writing response: %v", err)
	}
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
