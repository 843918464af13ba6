package graph

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	gograph "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Graph is a root-anchored dependency DAG over a shared node arena.
// Adjacency is held in a gonum directed graph keyed by arena index, so
// pruned variants are cheap: they reference the same nodes with a
// filtered edge set. A Graph is immutable once built.
type Graph struct {
	arena       []*Node
	adj         *simple.DirectedGraph
	root        *Node
	fingerprint string
}

func newGraph(arena []*Node, root *Node) *Graph {
	return &Graph{
		arena:       arena,
		adj:         simple.NewDirectedGraph(),
		root:        root,
		fingerprint: uuid.NewString(),
	}
}

// Root returns the ancestor-free node every other node is reachable from.
func (g *Graph) Root() *Node { return g.root }

// Fingerprint identifies this graph variant for caching purposes.
func (g *Graph) Fingerprint() string { return g.fingerprint }

// Nodes returns the nodes present in this variant in arena order.
func (g *Graph) Nodes() []*Node {
	nodes := make([]*Node, 0, len(g.arena))
	for _, n := range g.arena {
		if g.adj.Node(n.id) != nil {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// Dependencies returns the nodes that must complete before n, in arena
// order.
func (g *Graph) Dependencies(n *Node) []*Node {
	return g.collect(g.adj.To(n.id))
}

// Dependents returns the nodes waiting on n, in arena order.
func (g *Graph) Dependents(n *Node) []*Node {
	return g.collect(g.adj.From(n.id))
}

func (g *Graph) collect(it gograph.Nodes) []*Node {
	var nodes []*Node
	for it.Next() {
		nodes = append(nodes, it.Node().(*Node))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].id < nodes[j].id })
	return nodes
}

func (g *Graph) addNode(n *Node) {
	if g.adj.Node(n.id) == nil {
		g.adj.AddNode(n)
	}
}

func (g *Graph) addEdge(from, to *Node) {
	if from.id == to.id {
		return
	}
	g.addNode(from)
	g.addNode(to)
	if !g.adj.HasEdgeFromTo(from.id, to.id) {
		g.adj.SetEdge(g.adj.NewEdge(from, to))
	}
}

// verifyDAG checks that the adjacency is acyclic and that every node is
// reachable from the root.
func (g *Graph) verifyDAG() error {
	if _, err := topo.Sort(g.adj); err != nil {
		return fmt.Errorf("dependency graph contains a cycle: %w", err)
	}
	reachable := make(map[int64]bool)
	var visit func(n *Node)
	visit = func(n *Node) {
		if reachable[n.id] {
			return
		}
		reachable[n.id] = true
		for _, dep := range g.Dependents(n) {
			visit(dep)
		}
	}
	visit(g.root)
	for _, n := range g.Nodes() {
		if !reachable[n.id] {
			return fmt.Errorf("node %d (%s) is not reachable from the root", n.id, n.kind)
		}
	}
	return nil
}

// CloneWithFilter derives a pruned variant containing the root, every
// node the predicate keeps, and all of their transitive dependencies so
// the result stays connected to the root. Edges are the original edges
// restricted to the retained set. The receiver is not modified. A nil
// predicate returns the receiver itself, since graphs are immutable.
func (g *Graph) CloneWithFilter(pred func(*Node) bool) *Graph {
	if pred == nil {
		return g
	}

	keep := make(map[int64]bool, len(g.arena))
	var keepWithAncestors func(n *Node)
	keepWithAncestors = func(n *Node) {
		if keep[n.id] {
			return
		}
		keep[n.id] = true
		for _, dep := range g.Dependencies(n) {
			keepWithAncestors(dep)
		}
	}
	keepWithAncestors(g.root)
	for _, n := range g.Nodes() {
		if pred(n) {
			keepWithAncestors(n)
		}
	}

	clone := newGraph(g.arena, g.root)
	for _, n := range g.Nodes() {
		if keep[n.id] {
			clone.addNode(n)
		}
	}
	for _, from := range g.Nodes() {
		if !keep[from.id] {
			continue
		}
		for _, to := range g.Dependents(from) {
			if keep[to.id] {
				clone.addEdge(from, to)
			}
		}
	}
	return clone
}
