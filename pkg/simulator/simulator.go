package simulator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/tcp"
)

// maxIterations guards the scheduling loop. The DAG invariant and
// monotonic time advance make an infinite loop impossible in a correct
// build, so exceeding the cap is an internal error, never a truncation.
const maxIterations = 10000

// ErrScheduleOverflow indicates the scheduling loop failed to terminate,
// which points at a graph-construction or connection-model bug.
var ErrScheduleOverflow = errors.New("simulation exceeded iteration safety cap")

// Options configure one simulator. The defaults approximate a throttled
// mobile connection.
type Options struct {
	RTT                       float64 // ms
	ThroughputBytesPerSecond  float64
	MaximumConcurrentRequests int
	CPUSlowdownMultiplier     float64
	// FallbackServerResponseTime applies to origins without calibration
	// data, in ms.
	FallbackServerResponseTime float64
	// AdditionalRTTByOrigin and ServerResponseTimeByOrigin carry the
	// calibration output; both may be nil for pure simulate mode.
	AdditionalRTTByOrigin      map[string]float64
	ServerResponseTimeByOrigin map[string]float64
}

// DefaultOptions returns the mobile slow-4G-like throttling preset:
// 150ms RTT, 1.6Mbps, 4x CPU slowdown.
func DefaultOptions() Options {
	return Options{
		RTT:                        150,
		ThroughputBytesPerSecond:   1600 * 1024 / 8,
		MaximumConcurrentRequests:  10,
		CPUSlowdownMultiplier:      4,
		FallbackServerResponseTime: 100,
	}
}

// NodeTiming is one node's simulated interval in virtual milliseconds.
type NodeTiming struct {
	StartTime float64
	EndTime   float64
}

// Result is the outcome of one simulation run. It is produced fresh per
// call and never mutated afterward.
type Result struct {
	TotalTime float64
	Timings   map[*graph.Node]NodeTiming
}

// Simulator runs the discrete-event network/CPU estimation over a
// dependency graph. A Simulator holds only configuration; every
// Simulate call allocates its own scheduling state, so one Simulator
// may be used from multiple goroutines over a shared immutable graph.
type Simulator struct {
	opts Options
}

// New creates a simulator, filling unset options from the defaults.
func New(opts Options) *Simulator {
	def := DefaultOptions()
	if opts.RTT <= 0 {
		opts.RTT = def.RTT
	}
	if opts.ThroughputBytesPerSecond <= 0 {
		opts.ThroughputBytesPerSecond = def.ThroughputBytesPerSecond
	}
	if opts.MaximumConcurrentRequests <= 0 {
		opts.MaximumConcurrentRequests = def.MaximumConcurrentRequests
	}
	if opts.CPUSlowdownMultiplier <= 0 {
		opts.CPUSlowdownMultiplier = def.CPUSlowdownMultiplier
	}
	if opts.FallbackServerResponseTime <= 0 {
		opts.FallbackServerResponseTime = def.FallbackServerResponseTime
	}
	return &Simulator{opts: opts}
}

// Options returns the simulator's effective configuration.
func (s *Simulator) Options() Options { return s.opts }

// nodeProgress tracks one node's partial progress across ticks.
type nodeProgress struct {
	startTime            float64
	endTime              float64
	timeElapsed          float64
	timeElapsedOvershoot float64
	bytesDownloaded      int64
	estimated            float64
	started              bool
	done                 bool
}

// run is the per-invocation scheduling state.
type run struct {
	opts        Options
	g           *graph.Graph
	progress    map[*graph.Node]*nodeProgress
	ready       []*graph.Node
	inProgress  []*graph.Node
	connections map[string]*tcp.Connection
	clock       float64
	cap         int
}

// Simulate schedules the graph under the configured constraints and
// returns per-node timings plus total elapsed virtual time. The graph is
// only read; identical inputs produce identical results.
func (s *Simulator) Simulate(g *graph.Graph) (*Result, error) {
	r := &run{
		opts:        s.opts,
		g:           g,
		progress:    make(map[*graph.Node]*nodeProgress),
		connections: make(map[string]*tcp.Connection),
	}
	r.cap = s.opts.MaximumConcurrentRequests
	if saturated := tcp.MaximumSaturatedConnections(s.opts.RTT, s.opts.ThroughputBytesPerSecond); saturated < r.cap {
		r.cap = saturated
	}

	for _, n := range g.Nodes() {
		r.progress[n] = &nodeProgress{}
		if n.Kind() == graph.KindNetwork {
			r.ensureConnection(n)
		}
	}

	r.enqueue(g.Root())

	for iteration := 0; len(r.ready) > 0 || len(r.inProgress) > 0; iteration++ {
		if iteration >= maxIterations {
			return nil, fmt.Errorf("%w after %d iterations", ErrScheduleOverflow, iteration)
		}
		r.startReadyNodes()
		if len(r.inProgress) == 0 {
			return nil, fmt.Errorf("scheduler stalled with %d nodes ready", len(r.ready))
		}
		r.redistributeThroughput()

		advance := math.Inf(1)
		for _, n := range r.inProgress {
			if est := r.estimateTimeRemaining(n); est < advance {
				advance = est
			}
		}

		for _, n := range append([]*graph.Node(nil), r.inProgress...) {
			r.updateProgress(n, advance)
		}
		r.clock += advance
	}

	result := &Result{
		TotalTime: r.clock,
		Timings:   make(map[*graph.Node]NodeTiming, len(r.progress)),
	}
	for n, p := range r.progress {
		result.Timings[n] = NodeTiming{StartTime: p.startTime, EndTime: p.endTime}
	}
	return result, nil
}

// ensureConnection creates the connection for a network node's
// connectionId if it has not been observed yet, applying per-origin
// calibration overrides.
func (r *run) ensureConnection(n *graph.Node) {
	id := n.Request.ConnectionID
	if id == "" {
		id = n.Request.RequestID // isolated connection per request
	}
	if _, ok := r.connections[id]; ok {
		return
	}
	origin := n.Request.Origin()
	rtt := r.opts.RTT
	if extra, ok := r.opts.AdditionalRTTByOrigin[origin]; ok {
		rtt += extra
	}
	serverLatency := r.opts.FallbackServerResponseTime
	if v, ok := r.opts.ServerResponseTimeByOrigin[origin]; ok {
		serverLatency = v
	}
	r.connections[id] = tcp.NewConnection(rtt, r.opts.ThroughputBytesPerSecond, serverLatency, n.Request.IsSecure())
}

func (r *run) connectionFor(n *graph.Node) *tcp.Connection {
	id := n.Request.ConnectionID
	if id == "" {
		id = n.Request.RequestID
	}
	return r.connections[id]
}

func (r *run) enqueue(n *graph.Node) {
	r.ready = append(r.ready, n)
	sort.Slice(r.ready, func(i, j int) bool { return r.ready[i].ID() < r.ready[j].ID() })
}

// startReadyNodes promotes ready nodes into progress. CPU nodes start
// unconditionally; network nodes honor the concurrency cap and
// one-node-per-connection exclusivity.
func (r *run) startReadyNodes() {
	connInUse := make(map[string]bool)
	networkInProgress := 0
	for _, n := range r.inProgress {
		if n.Kind() == graph.KindNetwork {
			networkInProgress++
			connInUse[connectionKey(n)] = true
		}
	}

	var remaining []*graph.Node
	for _, n := range r.ready {
		if n.Kind() == graph.KindNetwork {
			key := connectionKey(n)
			if networkInProgress >= r.cap || connInUse[key] {
				remaining = append(remaining, n)
				continue
			}
			connInUse[key] = true
			networkInProgress++
		}
		p := r.progress[n]
		p.started = true
		p.startTime = r.clock
		r.inProgress = append(r.inProgress, n)
	}
	r.ready = remaining
	sort.Slice(r.inProgress, func(i, j int) bool { return r.inProgress[i].ID() < r.inProgress[j].ID() })
}

func connectionKey(n *graph.Node) string {
	if n.Request.ConnectionID != "" {
		return n.Request.ConnectionID
	}
	return n.Request.RequestID
}

// redistributeThroughput shares total configured bandwidth evenly across
// connections currently in use.
func (r *run) redistributeThroughput() {
	inUse := make(map[string]bool)
	for _, n := range r.inProgress {
		if n.Kind() == graph.KindNetwork {
			inUse[connectionKey(n)] = true
		}
	}
	if len(inUse) == 0 {
		return
	}
	share := r.opts.ThroughputBytesPerSecond / float64(len(inUse))
	for id := range inUse {
		r.connections[id].SetThroughput(share)
	}
}

// estimateTimeRemaining queries how long an in-progress node would take
// to finish with no tick bound, determining how far the clock can
// safely advance.
func (r *run) estimateTimeRemaining(n *graph.Node) float64 {
	p := r.progress[n]
	if n.Kind() == graph.KindCPU {
		total := n.Task.Duration() * r.opts.CPUSlowdownMultiplier
		p.estimated = math.Max(total-p.timeElapsed, 0)
		return p.estimated
	}
	conn := r.connectionFor(n)
	calc := conn.SimulateDownloadUntil(n.Request.TransferSize-p.bytesDownloaded, tcp.DownloadOptions{
		TimeAlreadyElapsed:  p.timeElapsed,
		MaximumTimeToElapse: tcp.Unbounded,
	})
	p.estimated = calc.TimeElapsed + p.timeElapsedOvershoot
	return p.estimated
}

// updateProgress applies one tick of length advance to an in-progress
// node, completing it when its estimate matches the tick exactly.
func (r *run) updateProgress(n *graph.Node, advance float64) {
	p := r.progress[n]
	finished := p.estimated == advance

	if n.Kind() == graph.KindCPU {
		if finished {
			r.complete(n, advance)
		} else {
			p.timeElapsed += advance
		}
		return
	}

	conn := r.connectionFor(n)
	calc := conn.SimulateDownloadUntil(n.Request.TransferSize-p.bytesDownloaded, tcp.DownloadOptions{
		TimeAlreadyElapsed:  p.timeElapsed,
		MaximumTimeToElapse: advance - p.timeElapsedOvershoot,
	})
	conn.SetCongestionWindow(calc.CongestionWindow)

	if finished {
		conn.SetWarmed(true)
		r.complete(n, advance)
		return
	}
	p.timeElapsed += calc.TimeElapsed
	p.timeElapsedOvershoot += calc.TimeElapsed - advance
	p.bytesDownloaded += calc.BytesDownloaded
}

// complete records a node's end time, removes it from progress, and
// enqueues any dependents whose dependencies are now all done.
func (r *run) complete(n *graph.Node, advance float64) {
	p := r.progress[n]
	p.done = true
	p.endTime = r.clock + advance

	for i, node := range r.inProgress {
		if node == n {
			r.inProgress = append(r.inProgress[:i], r.inProgress[i+1:]...)
			break
		}
	}

	for _, dep := range r.g.Dependents(n) {
		if r.progress[dep].started || r.progress[dep].done {
			continue
		}
		allDone := true
		for _, d := range r.g.Dependencies(dep) {
			if !r.progress[d].done {
				allDone = false
				break
			}
		}
		if allDone && !r.isQueued(dep) {
			r.enqueue(dep)
		}
	}
}

func (r *run) isQueued(n *graph.Node) bool {
	for _, q := range r.ready {
		if q == n {
			return true
		}
	}
	return false
}
