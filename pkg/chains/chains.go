package chains

import (
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
)

// Chain is one node of the critical request chain tree. It walks the
// unpruned dependency graph, not the simulator: chain durations are the
// observed (captured) request times.
type Chain struct {
	RequestID    string   `json:"requestId"`
	URL          string   `json:"url"`
	StartTime    float64  `json:"startTime"`
	EndTime      float64  `json:"endTime"`
	TransferSize int64    `json:"transferSize"`
	Children     []*Chain `json:"children,omitempty"`
}

// Summary aggregates the chain tree for reporting.
type Summary struct {
	Chains        []*Chain `json:"chains"`
	LongestLength int      `json:"longestLength"`
	// LongestDuration is the observed wall-clock span of the longest
	// chain in milliseconds.
	LongestDuration float64 `json:"longestDuration"`
	TotalTransfer   int64   `json:"totalTransfer"`
}

// isCritical mirrors the browser's notion of requests that gate initial
// render: render-blocking priorities, excluding resource types that
// never block (images, media, XHR).
func isCritical(n *graph.Node) bool {
	if n.Kind() != graph.KindNetwork || !n.HasRenderBlockingPriority() {
		return false
	}
	switch n.Request.ResourceType {
	case capture.ResourceImage, capture.ResourceMedia, capture.ResourceXHR:
		return false
	}
	return true
}

// Compute walks the full dependency graph from the root and collects
// the chains of critical requests.
func Compute(g *graph.Graph) *Summary {
	s := &Summary{}
	root := g.Root()

	rootChain := &Chain{
		RequestID:    root.Request.RequestID,
		URL:          root.Request.URL,
		StartTime:    root.Request.StartTime,
		EndTime:      root.Request.EndTime,
		TransferSize: root.Request.TransferSize,
	}
	s.Chains = []*Chain{rootChain}
	s.TotalTransfer = root.Request.TransferSize
	visited := map[*graph.Node]bool{root: true}
	s.walk(g, root, rootChain, visited, 1, root.Request.EndTime-root.Request.StartTime, root.Request.StartTime)
	return s
}

func (s *Summary) walk(g *graph.Graph, n *graph.Node, chain *Chain, visited map[*graph.Node]bool, length int, duration, rootStart float64) {
	if length > s.LongestLength || (length == s.LongestLength && duration > s.LongestDuration) {
		s.LongestLength = length
		s.LongestDuration = duration
	}
	for _, dep := range g.Dependents(n) {
		if visited[dep] || !isCritical(dep) {
			continue
		}
		visited[dep] = true
		rec := dep.Request
		child := &Chain{
			RequestID:    rec.RequestID,
			URL:          rec.URL,
			StartTime:    rec.StartTime,
			EndTime:      rec.EndTime,
			TransferSize: rec.TransferSize,
		}
		chain.Children = append(chain.Children, child)
		s.TotalTransfer += rec.TransferSize
		s.walk(g, dep, child, visited, length+1, rec.EndTime-rootStart, rootStart)
	}
}
