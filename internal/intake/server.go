package intake

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/card-intake/internal/directory"
	"github.com/zombor/card-intake/internal/handoff"
)

// Server handles HTTP requests for the intake site
type Server struct {
	service   *Service
	hub       *handoff.Hub
	directory *directory.Directory
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials for the admin routes
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, hub *handoff.Hub, dir *directory.Directory, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, hub, dir, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, hub *handoff.Hub, dir *directory.Directory, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		hub:       hub,
		directory: dir,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Card Intake"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all routes on the server's mux
func (s *Server) registerRoutes() {
	// Static pages
	s.mux.HandleFunc("GET /static/app.css", s.handleStatic(appCSS, "text/css"))
	s.mux.HandleFunc("GET /static/app.js", s.handleStatic(appJS, "application/javascript; charset=utf-8"))
	s.mux.HandleFunc("GET /thank-you", s.handleStatic(thankYouHTML, "text/html; charset=utf-8"))
	s.mux.HandleFunc("GET /health811", s.handleStatic(health811HTML, "text/html; charset=utf-8"))

	// Public API
	s.mux.HandleFunc("POST /api/scans/text", s.handleExtractText)
	s.mux.HandleFunc("POST /api/scans", s.handleScanCard)
	s.mux.HandleFunc("POST /api/leads", s.handleSubmitLead)
	s.mux.HandleFunc("GET /api/providers", s.handleProviders)
	s.mux.HandleFunc("POST /api/handoff/{id}", s.handleHandoffDeliver)
	s.mux.HandleFunc("GET /api/handoff/{id}", s.handleHandoffWait)
	s.mux.HandleFunc("POST /api/handoff", s.handleHandoffOpen)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// Admin API
	s.mux.HandleFunc("GET /api/scans/{id}/image", s.requireAuth(s.handleGetScanImage))
	s.mux.HandleFunc("GET /api/scans/{id}", s.requireAuth(s.handleGetScan))
	s.mux.HandleFunc("DELETE /api/scans/{id}", s.requireAuth(s.handleDeleteScan))
	s.mux.HandleFunc("GET /api/scans", s.requireAuth(s.handleListScans))
	s.mux.HandleFunc("GET /api/leads/export.csv", s.requireAuth(s.handleExportCSV))
	s.mux.HandleFunc("GET /api/leads/export.xlsx", s.requireAuth(s.handleExportXLSX))
	s.mux.HandleFunc("GET /api/leads/{id}", s.requireAuth(s.handleGetLead))
	s.mux.HandleFunc("GET /api/leads", s.requireAuth(s.handleListLeads))

	// Assessment page (register last as it's the catch-all)
	s.mux.HandleFunc("GET /index.html", s.handleIndex)
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	return http.ListenAndServe(addr, s.corsMiddleware(s.mux))
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.corsMiddleware(s.mux).ServeHTTP(w, r)
}
