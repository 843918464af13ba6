package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/chains"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/metrics"
)

func testGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g, err := graph.Build(&capture.Capture{
		Records: []capture.NetworkRecord{
			{
				RequestID: "1", URL: "https://example.com/",
				StartTime: 0, EndTime: 100, TransferSize: 3000,
				Priority: capture.PriorityVeryHigh, ResourceType: capture.ResourceDocument,
			},
			{
				RequestID: "2", URL: "https://example.com/style.css",
				StartTime: 100, EndTime: 200, TransferSize: 2000,
				Priority: capture.PriorityVeryHigh, ResourceType: capture.ResourceStylesheet,
				Initiator: capture.Initiator{Type: "parser", URL: "https://example.com/"},
			},
		},
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
	return rec
}

func TestEndpointsBeforeFirstAudit(t *testing.T) {
	s := NewServer()
	for _, path := range []string{"/api/metrics", "/api/graph", "/api/chains"} {
		if rec := get(t, s, path); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503 before the first audit", path, rec.Code)
		}
	}
}

func TestHealthz(t *testing.T) {
	rec := get(t, NewServer(), "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := NewServer()
	g := testGraph(t)
	audit := &metrics.AuditResult{
		RunID: "run-1",
		Metrics: map[string]*metrics.MetricResult{
			metrics.FirstContentfulPaint: {
				Name:                metrics.FirstContentfulPaint,
				Timing:              1234,
				OptimisticEstimate:  1000,
				PessimisticEstimate: 1400,
			},
		},
		Errors: map[string]error{},
	}
	s.SetAudit("https://example.com/", audit, g, chains.Compute(g))

	rec := get(t, s, "/api/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/metrics = %d", rec.Code)
	}
	var view AuditView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if view.RunID != "run-1" || view.PageURL != "https://example.com/" {
		t.Errorf("view header = %+v", view)
	}
	if len(view.Metrics) != 1 || view.Metrics[0].Timing != 1234 {
		t.Errorf("view metrics = %+v", view.Metrics)
	}
}

func TestGraphEndpoint(t *testing.T) {
	s := NewServer()
	g := testGraph(t)
	s.SetAudit("https://example.com/", &metrics.AuditResult{RunID: "run-1"}, g, chains.Compute(g))

	rec := get(t, s, "/api/graph")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/graph = %d", rec.Code)
	}
	var data GraphData
	if err := json.Unmarshal(rec.Body.Bytes(), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(data.Nodes) != 2 {
		t.Errorf("got %d nodes, want 2", len(data.Nodes))
	}
	if len(data.Edges) != 1 {
		t.Errorf("got %d edges, want 1", len(data.Edges))
	}
}

func TestChainsEndpoint(t *testing.T) {
	s := NewServer()
	g := testGraph(t)
	s.SetAudit("https://example.com/", &metrics.AuditResult{RunID: "run-1"}, g, chains.Compute(g))

	rec := get(t, s, "/api/chains")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/chains = %d", rec.Code)
	}
	var summary chains.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if summary.LongestLength != 2 {
		t.Errorf("LongestLength = %d, want 2", summary.LongestLength)
	}
}
