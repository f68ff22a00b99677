package cmd

import (
	"context"
	"embed"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/rubiojr/fedsearch/cmd/web/components"
	"github.com/rubiojr/fedsearch/cmd/web/components/types"
	"github.com/rubiojr/fedsearch/pkg/api"
	"github.com/rubiojr/fedsearch/pkg/catalog"
	"github.com/rubiojr/fedsearch/pkg/config"
	"github.com/rubiojr/fedsearch/pkg/extract"
	"github.com/rubiojr/fedsearch/pkg/log"
	"github.com/rubiojr/fedsearch/pkg/query"
	"github.com/rubiojr/fedsearch/pkg/render"
	"github.com/rubiojr/fedsearch/pkg/search"
	"github.com/rubiojr/fedsearch/pkg/settings"
	"github.com/rubiojr/fedsearch/pkg/version"
)

//go:embed web/static/*
var staticFS embed.FS

// WebCommand creates the web command with both API and UI
func WebCommand() *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Start web server with the search interface and export endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "port",
				Usage: "Port to listen on",
				Value: "8080",
			},
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to bind to",
				Value: "localhost",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return startWebServer(ctx, c.String("config"), c.String("host"), c.String("port"))
		},
	}
}

// WebServer holds the server configuration and dependencies
type WebServer struct {
	config    *config.Config
	service   *search.Service
	resolver  *settings.Resolver
	apiServer *api.Server
}

// NewWebServer wires the search service, the settings resolver and the
// API around cfg and the backend in resolver.
func NewWebServer(cfg *config.Config, resolver *settings.Resolver) *WebServer {
	service := search.NewService(resolver.Engine, cfg.SearchTimeout.Duration)
	extractor := &extract.Extractor{Disabled: !cfg.ExtractionEnabled()}
	return &WebServer{
		config:    cfg,
		service:   service,
		resolver:  resolver,
		apiServer: api.NewServer(service, resolver, extractor),
	}
}

// Handler returns every route wrapped in the request id and CORS
// middlewares.
func (s *WebServer) Handler() http.Handler {
	mux := http.NewServeMux()

	// API routes
	s.apiServer.RegisterRoutes(mux)

	// Web UI routes
	mux.HandleFunc("GET /", s.handleHome)
	mux.HandleFunc("GET /results", s.handleResults)
	mux.HandleFunc("GET /settings", s.handleSettings)
	mux.HandleFunc("GET /set", s.handleSet)
	mux.HandleFunc("GET /osd.xml", s.handleOpenSearch)

	// Static assets
	mux.HandleFunc("GET /static/", s.handleStatic)

	return requestID(api.CorsMiddleware(mux))
}

// startWebServer starts the web server with both API and UI
func startWebServer(ctx context.Context, configPath, host, port string) error {
	cfg, resolver, err := loadResolver(configPath)
	if err != nil {
		return err
	}

	logger := log.ForService("web")
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", host, port),
		Handler: NewWebServer(cfg, resolver).Handler(),
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting web server on http://%s:%s", host, port)
		logger.Infof("Backend %s, primary index %s", resolver.Engine.Name(), resolver.Engine.Location(cfg.ConfDir))
		logger.Infof("Available endpoints:")
		logger.Infof("  Web UI:")
		logger.Infof("    GET / - Search form")
		logger.Infof("    GET /results - Paged results")
		logger.Infof("    GET /settings - Options and mounts")
		logger.Infof("  Exports and API:")
		logger.Infof("    GET /json, /csv - Full result exports")
		logger.Infof("    GET /preview/{n}, /download/{n} - Result documents")
		logger.Infof("    GET /api/search, /api/dirs - JSON API")
		logger.Infof("    GET /health - Health check")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Server failed to start: %v", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
	case <-ctx.Done():
	}

	logger.Infof("Shutting down web server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(shutdownCtx)
}

// requestID tags every request with an id, echoed in X-Request-ID.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		start := time.Now()
		next.ServeHTTP(w, r)
		log.ForService("web").WithRequest(id).Debugf("%s %s %v", r.Method, r.URL.RequestURI(), time.Since(start))
	})
}

// Web UI Handlers

func (s *WebServer) pageData(snap *settings.Snapshot, title string, req query.Request) types.PageData {
	return types.PageData{
		Title:   title,
		Version: version.APIVersion(),
		Backend: snap.Backend,
		Request: req,
		Tree:    catalog.BrowseTree(snap.Dirs, snap.Options.DirDepth),
		Sorts:   query.Sorts,
	}
}

// handleHome serves the search form
func (s *WebServer) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	// A query on the home page is a search
	if r.URL.Query().Get("query") != "" {
		http.Redirect(w, r, "results?"+r.URL.RawQuery, http.StatusFound)
		return
	}

	snap := s.resolver.Resolve(settings.CookieOverrides{Request: r})
	data := s.pageData(snap, "fedsearch", query.NewRequest())

	if err := components.Index(data).Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

// handleResults runs the search and renders one page of results
func (s *WebServer) handleResults(w http.ResponseWriter, r *http.Request) {
	snap := s.resolver.Resolve(settings.CookieOverrides{Request: r})
	req := query.ParseRequest(r.URL.Query())
	if req.Page == 0 && r.URL.Query().Get("page") == "" {
		req.Page = 1
	}

	page := s.service.Search(r.Context(), snap, req)
	data := s.pageData(snap, "fedsearch - "+query.Compile(req), req)
	data.View = render.NewView(snap, req, page, data.Tree, s.config.ExtractionEnabled())

	if err := components.Results(data).Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

// handleSettings shows the options and mount prefixes of the client
func (s *WebServer) handleSettings(w http.ResponseWriter, r *http.Request) {
	snap := s.resolver.Resolve(settings.CookieOverrides{Request: r})
	data := s.pageData(snap, "fedsearch - settings", query.NewRequest())
	data.Options = components.OptionFields(snap.Options)
	data.Mounts = components.MountFields(catalog.Dirs(snap.Dirs), snap.Mounts)

	if err := components.Settings(data).Render(r.Context(), w); err != nil {
		http.Error(w, fmt.Sprintf("Template error: %v", err), http.StatusInternalServerError)
	}
}

// handleSet stores the submitted settings as cookies and returns home
func (s *WebServer) handleSet(w http.ResponseWriter, r *http.Request) {
	snap := s.resolver.Resolve(settings.CookieOverrides{Request: r})
	settings.WriteCookies(w, r.URL.Query(), catalog.Dirs(snap.Dirs))
	http.Redirect(w, r, "./", http.StatusFound)
}

// handleOpenSearch serves the OpenSearch description
func (s *WebServer) handleOpenSearch(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	w.Header().Set("Content-Type", "application/opensearchdescription+xml")
	if err := components.OpenSearch(scheme+"://"+r.Host).Render(r.Context(), w); err != nil {
		log.ForService("web").Errorf("writing opensearch description: %v", err)
	}
}

// handleStatic serves static assets from embedded files
func (s *WebServer) handleStatic(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	// Remove /static/ prefix and add web/static/ prefix for embedded filesystem
	filePath := "web/static/" + strings.TrimPrefix(path, "/static/")

	content, err := staticFS.ReadFile(filePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if strings.HasSuffix(path, ".css") {
		w.Header().Set("Content-Type", "text/css")
	} else if strings.HasSuffix(path, ".js") {
		w.Header().Set("Content-Type", "application/javascript")
	} else if strings.HasSuffix(path, ".ico") {
		w.Header().Set("Content-Type", "image/x-icon")
	} else if strings.HasSuffix(path, ".png") {
		w.Header().Set("Content-Type", "image/png")
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")

	if _, err := w.Write(content); err != nil {
		log.ForService("web").Debugf("Error writing static content: %v", err)
	}
}
