package graph

import (
	"fmt"
	"sort"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
)

// Build constructs the dependency DAG for one navigation from its
// network records and trace summary.
//
// Every request becomes a network node and every main-thread task window
// a CPU node. The earliest request is the root. Initiator URLs resolve
// to dependency edges; URLs requested more than once are ambiguous and
// fail open to the root, because the origin of their discovery cannot be
// disambiguated. Edges are only admitted when the initiator was observed
// strictly before the initiated work, which keeps the graph acyclic by
// construction; any node left without a dependency attaches under root.
func Build(c *capture.Capture) (*Graph, error) {
	if c == nil || len(c.Records) == 0 {
		return nil, capture.ErrNoRecords
	}

	arena := make([]*Node, 0, len(c.Records)+len(c.Trace.MainThreadTasks))
	byRequestID := make(map[string]*Node, len(c.Records))
	for i := range c.Records {
		rec := &c.Records[i]
		n := &Node{id: int64(len(arena)), kind: KindNetwork, Request: rec}
		arena = append(arena, n)
		byRequestID[rec.RequestID] = n
	}

	// Index network nodes by URL. A URL requested more than once maps to
	// nil so later lookups fail open to the root.
	byURL := make(map[string]*Node, len(c.Records))
	for _, n := range arena {
		if _, seen := byURL[n.Request.URL]; seen {
			byURL[n.Request.URL] = nil
			continue
		}
		byURL[n.Request.URL] = n
	}

	root := arena[0]
	for _, n := range arena[1:] {
		if requestLess(n, root) {
			root = n
		}
	}

	for i := range c.Trace.MainThreadTasks {
		task := &c.Trace.MainThreadTasks[i]
		arena = append(arena, &Node{id: int64(len(arena)), kind: KindCPU, Task: task})
	}

	g := newGraph(arena, root)
	for _, n := range arena {
		g.addNode(n)
	}

	for _, n := range arena {
		switch n.kind {
		case KindNetwork:
			linkNetworkNode(g, n, root, byURL)
		case KindCPU:
			linkCPUNode(g, n, root, byURL)
		}
	}

	if err := g.verifyDAG(); err != nil {
		return nil, err
	}
	return g, nil
}

// requestLess orders network nodes by observed start time, breaking ties
// by requestId so root selection is deterministic.
func requestLess(a, b *Node) bool {
	if a.Request.StartTime != b.Request.StartTime {
		return a.Request.StartTime < b.Request.StartTime
	}
	return a.Request.RequestID < b.Request.RequestID
}

func linkNetworkNode(g *Graph, n, root *Node, byURL map[string]*Node) {
	if n == root {
		return
	}
	linked := false
	for _, u := range n.Request.InitiatorURLs() {
		initiator, ok := byURL[u]
		if !ok || initiator == nil || initiator == n {
			continue // unresolved or ambiguous, falls back to root below
		}
		if !requestLess(initiator, n) {
			continue // initiator observed later, cannot have caused this
		}
		g.addEdge(initiator, n)
		linked = true
	}
	if !linked {
		g.addEdge(root, n)
	}
}

func linkCPUNode(g *Graph, n, root *Node, byURL map[string]*Node) {
	task := n.Task

	// Script evaluation waits on the script's download.
	linked := false
	for _, u := range task.EvaluatedScripts {
		script, ok := byURL[u]
		if !ok || script == nil {
			continue
		}
		if script.Request.StartTime >= task.StartTime {
			continue
		}
		g.addEdge(script, n)
		linked = true
	}
	if !linked {
		g.addEdge(root, n)
	}

	// Requests discovered inside the task window by a script it was
	// evaluating depend on the task.
	evaluated := make(map[string]bool, len(task.EvaluatedScripts))
	for _, u := range task.EvaluatedScripts {
		evaluated[u] = true
	}
	if len(evaluated) == 0 {
		return
	}
	for _, other := range g.arena {
		if other.kind != KindNetwork || other == root {
			continue
		}
		rec := other.Request
		if rec.StartTime < task.StartTime || rec.StartTime > task.EndTime {
			continue
		}
		for _, u := range rec.InitiatorURLs() {
			if evaluated[u] {
				g.addEdge(n, other)
				break
			}
		}
	}
}

// TopologicalOrder returns the graph's nodes in an order where every
// node appears after all of its dependencies. Ties follow arena order,
// so the result is deterministic.
func (g *Graph) TopologicalOrder() []*Node {
	indegree := make(map[int64]int)
	for _, n := range g.Nodes() {
		indegree[n.id] = len(g.Dependencies(n))
	}
	ready := []*Node{}
	for _, n := range g.Nodes() {
		if indegree[n.id] == 0 {
			ready = append(ready, n)
		}
	}
	var order []*Node
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].id < ready[j].id })
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, dep := range g.Dependents(n) {
			indegree[dep.id]--
			if indegree[dep.id] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return order
}

// Describe summarizes the graph for logging.
func (g *Graph) Describe() string {
	network, cpu := 0, 0
	for _, n := range g.Nodes() {
		if n.kind == KindNetwork {
			network++
		} else {
			cpu++
		}
	}
	return fmt.Sprintf("%d network + %d cpu nodes", network, cpu)
}
