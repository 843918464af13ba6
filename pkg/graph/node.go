package graph

import (
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
)

// NodeKind distinguishes the two kinds of work the graph models.
type NodeKind int

const (
	KindNetwork NodeKind = iota
	KindCPU
)

func (k NodeKind) String() string {
	if k == KindCPU {
		return "cpu"
	}
	return "network"
}

// Node is a vertex of the dependency graph: either one network request
// or one contiguous main-thread task window. Nodes live in the graph's
// arena and are shared by identity across pruned graph variants; all
// fields are read-only once the graph is built.
type Node struct {
	id   int64
	kind NodeKind

	// Request is set for network nodes, nil otherwise.
	Request *capture.NetworkRecord
	// Task is set for CPU nodes, nil otherwise.
	Task *capture.CPUTask
}

// ID implements gonum's graph.Node; it is the node's arena index.
func (n *Node) ID() int64 { return n.id }

// Kind returns whether the node models network or CPU work.
func (n *Node) Kind() NodeKind { return n.kind }

// StartTime returns the observed (captured, not simulated) start of the
// node's work in milliseconds since navigation start.
func (n *Node) StartTime() float64 {
	if n.kind == KindCPU {
		return n.Task.StartTime
	}
	return n.Request.StartTime
}

// EndTime returns the observed end of the node's work.
func (n *Node) EndTime() float64 {
	if n.kind == KindCPU {
		return n.Task.EndTime
	}
	return n.Request.EndTime
}

// HasRenderBlockingPriority reports whether a network node's request
// carries a priority the browser blocks paint on. Always false for CPU
// nodes.
func (n *Node) HasRenderBlockingPriority() bool {
	return n.kind == KindNetwork && n.Request.Priority.RenderBlocking()
}

// InitiatorType returns the discovery mechanism of a network node's
// request ("parser", "script", ...), or "" for CPU nodes.
func (n *Node) InitiatorType() string {
	if n.kind != KindNetwork {
		return ""
	}
	return n.Request.Initiator.Type
}

// IsEvaluateScriptFor reports whether a CPU node evaluated any of the
// given script URLs.
func (n *Node) IsEvaluateScriptFor(urls map[string]bool) bool {
	return n.kind == KindCPU && n.Task.EvaluatesScript(urls)
}

// DidPerformLayout reports whether a CPU node's window included layout.
func (n *Node) DidPerformLayout() bool {
	return n.kind == KindCPU && n.Task.DidPerformLayout()
}
