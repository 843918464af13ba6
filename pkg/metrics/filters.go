package metrics

import (
	"fmt"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
)

// minimumTaskDuration is the main-thread task length below which the
// optimistic interactive path assumes the task is free, in ms.
const minimumTaskDuration = 20

func fullGraph(g *graph.Graph, _ *capture.TraceOfTab) (*graph.Graph, error) {
	return g, nil
}

// renderBlockingScriptURLs collects the URLs of render-blocking script
// requests finishing before the deadline. When excludeScriptInitiated is
// set, scripts that were themselves discovered by other scripts are left
// out, matching the fastest-possible critical path assumption.
func renderBlockingScriptURLs(g *graph.Graph, deadline float64, excludeScriptInitiated bool) map[string]bool {
	urls := make(map[string]bool)
	for _, n := range g.Nodes() {
		if n.Kind() != graph.KindNetwork {
			continue
		}
		if n.Request.ResourceType != capture.ResourceScript {
			continue
		}
		if n.EndTime() > deadline || !n.HasRenderBlockingPriority() {
			continue
		}
		if excludeScriptInitiated && n.InitiatorType() == "script" {
			continue
		}
		urls[n.Request.URL] = true
	}
	return urls
}

func fcpDeadline(trace *capture.TraceOfTab) (float64, error) {
	if trace.Timestamps.FirstContentfulPaint <= 0 {
		return 0, fmt.Errorf("%w: firstContentfulPaint", ErrMissingTimestamp)
	}
	return trace.Timestamps.FirstContentfulPaint, nil
}

func fmpDeadline(trace *capture.TraceOfTab) (float64, error) {
	if trace.Timestamps.FirstMeaningfulPaint <= 0 {
		return 0, fmt.Errorf("%w: firstMeaningfulPaint", ErrMissingTimestamp)
	}
	return trace.Timestamps.FirstMeaningfulPaint, nil
}

// fcpOptimistic keeps the fastest plausible path to first paint:
// render-blocking requests not discovered by scripts, plus the CPU work
// evaluating those blocking scripts.
func fcpOptimistic(g *graph.Graph, trace *capture.TraceOfTab) (*graph.Graph, error) {
	deadline, err := fcpDeadline(trace)
	if err != nil {
		return nil, err
	}
	blocking := renderBlockingScriptURLs(g, deadline, true)
	return g.CloneWithFilter(func(n *graph.Node) bool {
		if n.Kind() == graph.KindCPU {
			return n.IsEvaluateScriptFor(blocking)
		}
		return n.EndTime() <= deadline &&
			n.HasRenderBlockingPriority() &&
			n.InitiatorType() != "script"
	}), nil
}

// fcpPessimistic also admits script-initiated render-blocking requests.
func fcpPessimistic(g *graph.Graph, trace *capture.TraceOfTab) (*graph.Graph, error) {
	deadline, err := fcpDeadline(trace)
	if err != nil {
		return nil, err
	}
	blocking := renderBlockingScriptURLs(g, deadline, false)
	return g.CloneWithFilter(func(n *graph.Node) bool {
		if n.Kind() == graph.KindCPU {
			return n.IsEvaluateScriptFor(blocking)
		}
		return n.EndTime() <= deadline && n.HasRenderBlockingPriority()
	}), nil
}

func fmpOptimistic(g *graph.Graph, trace *capture.TraceOfTab) (*graph.Graph, error) {
	deadline, err := fmpDeadline(trace)
	if err != nil {
		return nil, err
	}
	blocking := renderBlockingScriptURLs(g, deadline, true)
	return g.CloneWithFilter(func(n *graph.Node) bool {
		if n.Kind() == graph.KindCPU {
			return n.IsEvaluateScriptFor(blocking)
		}
		return n.EndTime() <= deadline &&
			n.HasRenderBlockingPriority() &&
			n.InitiatorType() != "script"
	}), nil
}

// fmpPessimistic additionally keeps every main-thread window that
// performed layout before the paint, since any of them may have been
// the meaningful one.
func fmpPessimistic(g *graph.Graph, trace *capture.TraceOfTab) (*graph.Graph, error) {
	deadline, err := fmpDeadline(trace)
	if err != nil {
		return nil, err
	}
	blocking := renderBlockingScriptURLs(g, deadline, false)
	return g.CloneWithFilter(func(n *graph.Node) bool {
		if n.Kind() == graph.KindCPU {
			return n.IsEvaluateScriptFor(blocking) ||
				(n.DidPerformLayout() && n.EndTime() <= deadline)
		}
		return n.EndTime() <= deadline && n.HasRenderBlockingPriority()
	}), nil
}

// ttiOptimistic assumes only scripts and substantial main-thread tasks
// delay interactivity.
func ttiOptimistic(g *graph.Graph, _ *capture.TraceOfTab) (*graph.Graph, error) {
	return g.CloneWithFilter(func(n *graph.Node) bool {
		if n.Kind() == graph.KindCPU {
			return n.Task.Duration() > minimumTaskDuration
		}
		return n.Request.ResourceType == capture.ResourceScript ||
			n.HasRenderBlockingPriority()
	}), nil
}

// ttiPessimistic assumes the entire load is on the critical path.
func ttiPessimistic(g *graph.Graph, _ *capture.TraceOfTab) (*graph.Graph, error) {
	return g, nil
}
