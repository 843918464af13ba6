package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/chains"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/logging"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/metrics"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/pubsub"
)

// GraphNode represents a node in the dependency graph API response.
type GraphNode struct {
	ID    int64   `json:"id"`
	Label string  `json:"label"`
	Type  string  `json:"type"` // "network" or "cpu"
	Start float64 `json:"startTime"`
	End   float64 `json:"endTime"`
}

// GraphEdge represents a dependency edge in the API response.
type GraphEdge struct {
	Source int64 `json:"source"`
	Target int64 `json:"target"`
}

// GraphData holds the dependency graph for visualization.
type GraphData struct {
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// MetricView is the JSON shape of one estimated metric.
type MetricView struct {
	Name        string  `json:"name"`
	Timing      float64 `json:"timing"`
	Optimistic  float64 `json:"optimistic"`
	Pessimistic float64 `json:"pessimistic"`
}

// AuditView is the JSON shape of a full audit run.
type AuditView struct {
	RunID   string            `json:"runId"`
	PageURL string            `json:"pageUrl"`
	Metrics []MetricView      `json:"metrics"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// Server exposes the latest audit over HTTP: metric estimates, the
// dependency graph, critical chains, and SSE streams that push updates
// in watch mode.
type Server struct {
	router    *mux.Router
	publisher pubsub.Publisher

	mu           sync.RWMutex
	pageURL      string
	runID        string
	audit        *metrics.AuditResult
	graph        *graph.Graph
	chainSummary *chains.Summary
}

// NewServer creates a new diagnostics server.
func NewServer() *Server {
	s := &Server{
		router:    mux.NewRouter(),
		publisher: pubsub.NewSSEPublisher(),
	}
	s.setupRoutes()
	return s
}

// SetAudit stores the results of the latest audit run and notifies SSE
// subscribers.
func (s *Server) SetAudit(pageURL string, audit *metrics.AuditResult, g *graph.Graph, chainSummary *chains.Summary) {
	s.mu.Lock()
	s.pageURL = pageURL
	s.runID = audit.RunID
	s.audit = audit
	s.graph = g
	s.chainSummary = chainSummary
	s.mu.Unlock()

	data := pubsub.MetricsData{
		RunID:   audit.RunID,
		Timings: make(map[string]float64, len(audit.Metrics)),
	}
	for name, m := range audit.Metrics {
		data.Timings[name] = m.Timing
	}
	for name := range audit.Errors {
		data.Failures = append(data.Failures, name)
	}
	if err := s.publisher.Publish(pubsub.TopicMetrics, "updated", data); err != nil {
		logging.Warn("failed to publish metrics event", "error", err)
	}
}

// PublishAuditStatus publishes a status event for the current run.
func (s *Server) PublishAuditStatus(state, message, runID string) error {
	return s.publisher.Publish(pubsub.TopicAuditStatus, state, pubsub.AuditStatus{
		State:   state,
		Message: message,
		RunID:   runID,
	})
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	s.router.HandleFunc("/api/subscribe/audit_status", s.handleSubscribe(pubsub.TopicAuditStatus)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/metrics", s.handleSubscribe(pubsub.TopicMetrics)).Methods("GET")

	s.router.HandleFunc("/api/metrics", s.handleMetrics).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/chains", s.handleChains).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods("GET")

	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Initial comment establishes the stream (Safari compatibility).
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "failed to write SSE event", "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if s.audit == nil {
		http.Error(w, "no audit has completed yet", http.StatusServiceUnavailable)
		return
	}

	view := AuditView{
		RunID:   s.runID,
		PageURL: s.pageURL,
	}
	for _, name := range []string{
		metrics.FirstContentfulPaint,
		metrics.FirstMeaningfulPaint,
		metrics.SpeedIndex,
		metrics.FirstCPUIdle,
		metrics.TimeToInteractive,
	} {
		m, ok := s.audit.Metrics[name]
		if !ok {
			continue
		}
		view.Metrics = append(view.Metrics, MetricView{
			Name:        m.Name,
			Timing:      m.Timing,
			Optimistic:  m.OptimisticEstimate,
			Pessimistic: m.PessimisticEstimate,
		})
	}
	if len(s.audit.Errors) > 0 {
		view.Errors = make(map[string]string, len(s.audit.Errors))
		for name, err := range s.audit.Errors {
			view.Errors[name] = err.Error()
		}
	}
	json.NewEncoder(w).Encode(view)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if s.graph == nil {
		http.Error(w, "no audit has completed yet", http.StatusServiceUnavailable)
		return
	}
	json.NewEncoder(w).Encode(buildGraphData(s.graph))
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if s.chainSummary == nil {
		http.Error(w, "no audit has completed yet", http.StatusServiceUnavailable)
		return
	}
	json.NewEncoder(w).Encode(s.chainSummary)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>Lantern</title></head><body>
<h1>Lantern diagnostics</h1>
<ul>
<li><a href="/api/metrics">/api/metrics</a></li>
<li><a href="/api/graph">/api/graph</a></li>
<li><a href="/api/chains">/api/chains</a></li>
<li>/api/subscribe/audit_status (SSE)</li>
<li>/api/subscribe/metrics (SSE)</li>
</ul>
</body></html>`)
}

// buildGraphData flattens the dependency graph for visualization.
func buildGraphData(g *graph.Graph) *GraphData {
	data := &GraphData{
		Nodes: make([]GraphNode, 0),
		Edges: make([]GraphEdge, 0),
	}
	for _, n := range g.Nodes() {
		node := GraphNode{
			ID:    n.ID(),
			Start: n.StartTime(),
			End:   n.EndTime(),
		}
		switch n.Kind() {
		case graph.KindNetwork:
			node.Type = "network"
			node.Label = n.Request.URL
		case graph.KindCPU:
			node.Type = "cpu"
			node.Label = "main thread task"
		}
		data.Nodes = append(data.Nodes, node)

		for _, dep := range g.Dependents(n) {
			data.Edges = append(data.Edges, GraphEdge{Source: n.ID(), Target: dep.ID()})
		}
	}
	return data
}

// Handler exposes the route tree for embedding and testing.
func (s *Server) Handler() http.Handler { return s.router }

// Start starts the web server on the specified port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logging.Info("starting diagnostics server", "addr", fmt.Sprintf("http://localhost%s", addr))
	return http.ListenAndServe(addr, s.router)
}
