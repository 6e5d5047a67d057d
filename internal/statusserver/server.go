// Package statusserver exposes the state of an in-progress install over
// HTTP: a snapshot endpoint, a server-sent-events stream of progress
// events, and the resolved dependency graph for visualization.
package statusserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/ritzau/pkginstall/internal/logging"
	"github.com/ritzau/pkginstall/internal/model"
	"github.com/ritzau/pkginstall/internal/progress"
)

// Status is the current phase of a run, as reported to /api/status.
type Status struct {
	Phase   string `json:"phase"`
	Message string `json:"message"`
}

// Server serves install-progress state over HTTP: a poll endpoint at
// /api/status, an SSE stream at /api/events, and the resolved graph at
// /api/graph.
type Server struct {
	router    *mux.Router
	publisher progress.Publisher

	mu     sync.RWMutex
	status Status
	graph  *model.Graph
}

// NewServer creates a Server backed by publisher for its SSE stream.
func NewServer(publisher progress.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		publisher: publisher,
		status:    Status{Phase: "idle"},
	}
	s.setupRoutes()
	return s
}

// SetStatus updates the phase/message reported by /api/status.
func (s *Server) SetStatus(phase, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{Phase: phase, Message: message}
}

// SetGraph stores the resolved graph reported by /api/graph.
func (s *Server) SetGraph(g model.Graph) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graph = &g
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/events", s.handleEvents).Methods("GET")
	s.router.Use(logging.RequestIDMiddleware)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	g := s.graph
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if g == nil {
		json.NewEncoder(w).Encode(model.Graph{Nodes: []model.Node{}, Links: []model.Link{}})
		return
	}
	json.NewEncoder(w).Encode(g)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	topic := r.URL.Query().Get("topic")
	if topic == "" {
		topic = progress.TopicInstall
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	flusher, _ := w.(http.Flusher)
	for event := range sub.Events() {
		if err := progress.WriteSSE(w, event); err != nil {
			logging.Warn("failed writing SSE event", "err", err)
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Start blocks serving the status server on addr (e.g. ":8080").
func (s *Server) Start(addr string) error {
	logging.Info("starting status server", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}
