package http

import (
	"net/http"

	"github.com/bnema/imgbatch/internal/adapter/http/middleware"
)

type Server struct {
	mux        *http.ServeMux
	handlers   *Handlers
	sseHandler *SSEHandler
	auth       TokenValidator
}

func NewServer(svc BatchService, events EventSource, auth TokenValidator, limiter SubmitLimiter, maxSizeMB int, behindProxy bool) *Server {
	s := &Server{
		mux:        http.NewServeMux(),
		handlers:   NewHandlers(svc, limiter, maxSizeMB, behindProxy),
		sseHandler: NewSSEHandler(events, svc),
		auth:       auth,
	}

	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /upload", TokenAuth(s.auth, s.handlers.Upload()))

	s.mux.HandleFunc("GET /status/{requestId}", TokenAuth(s.auth, s.handlers.Status()))

	s.mux.HandleFunc("GET /events/{requestId}", TokenAuth(s.auth, s.sseHandler.Events()))

	s.mux.HandleFunc("GET /output/{requestId}", TokenAuth(s.auth, s.handlers.Output()))

	s.mux.HandleFunc("GET /health", s.handlers.Health())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	middleware.SecurityHeaders(s.mux).ServeHTTP(w, r)
}
