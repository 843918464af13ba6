package metrics

import (
	"fmt"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/logging"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/simulator"
)

// AuditResult holds every metric computed for one graph. Metrics that
// failed are reported in Errors and absent from Metrics; one metric
// failing never aborts the others.
type AuditResult struct {
	RunID   string
	Metrics map[string]*MetricResult
	Errors  map[string]error
}

// Runner computes the metric table over a dependency graph, memoizing
// simulation results so graph variants shared between metrics (e.g. the
// full graph) are only simulated once. The cache is owned by the Runner
// instance; keys combine the graph variant's fingerprint with a hash of
// the simulator configuration.
type Runner struct {
	sim       *simulator.Simulator
	configKey string

	mu    sync.Mutex
	cache map[string]*simulator.Result
}

// NewRunner creates a runner simulating with the given options.
func NewRunner(opts simulator.Options) *Runner {
	sim := simulator.New(opts)
	return &Runner{
		sim:       sim,
		configKey: hashOptions(sim.Options()),
		cache:     make(map[string]*simulator.Result),
	}
}

func hashOptions(o simulator.Options) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%g|%g|%d|%g|%g",
		o.RTT, o.ThroughputBytesPerSecond, o.MaximumConcurrentRequests,
		o.CPUSlowdownMultiplier, o.FallbackServerResponseTime)
	for _, m := range []map[string]float64{o.AdditionalRTTByOrigin, o.ServerResponseTimeByOrigin} {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "|%s=%g", k, m[k])
		}
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func (r *Runner) simulate(g *graph.Graph) (*simulator.Result, error) {
	key := g.Fingerprint() + "|" + r.configKey
	r.mu.Lock()
	cached := r.cache[key]
	r.mu.Unlock()
	if cached != nil {
		return cached, nil
	}
	result, err := r.sim.Simulate(g)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.cache[key] = result
	r.mu.Unlock()
	return result, nil
}

// ComputeAll runs every supported metric against the graph. Cross-metric
// ordering is enforced here: a later lifecycle event can never be
// estimated to occur before an earlier one.
func (r *Runner) ComputeAll(g *graph.Graph, trace *capture.TraceOfTab) *AuditResult {
	out := &AuditResult{
		RunID:   uuid.NewString(),
		Metrics: make(map[string]*MetricResult, len(table)),
		Errors:  make(map[string]error),
	}

	for _, def := range table {
		m, err := r.compute(def, g, trace)
		if err == nil {
			err = r.finalize(def.name, m, out, trace)
		}
		if err != nil {
			logging.Warn("metric unavailable", "metric", def.name, "error", err)
			out.Errors[def.name] = err
			continue
		}
		out.Metrics[def.name] = m
	}
	return out
}

func (r *Runner) compute(def definition, g *graph.Graph, trace *capture.TraceOfTab) (*MetricResult, error) {
	og, err := def.optimistic(g, trace)
	if err != nil {
		return nil, err
	}
	pg, err := def.pessimistic(g, trace)
	if err != nil {
		return nil, err
	}
	optimistic, err := r.simulate(og)
	if err != nil {
		return nil, fmt.Errorf("optimistic simulation: %w", err)
	}
	pessimistic, err := r.simulate(pg)
	if err != nil {
		return nil, fmt.Errorf("pessimistic simulation: %w", err)
	}

	m := &MetricResult{
		Name:                def.name,
		OptimisticEstimate:  optimistic.TotalTime,
		PessimisticEstimate: pessimistic.TotalTime,
		OptimisticGraph:     og,
		PessimisticGraph:    pg,
		optimisticResult:    optimistic,
		pessimisticResult:   pessimistic,
	}
	m.Timing = def.coefficients.Blend(m.OptimisticEstimate, m.PessimisticEstimate)
	return m, nil
}

// finalize applies metric-specific post-processing: the Speed Index
// alternate estimate path and the cross-metric ordering clamps.
func (r *Runner) finalize(name string, m *MetricResult, out *AuditResult, trace *capture.TraceOfTab) error {
	fcp := out.Metrics[FirstContentfulPaint]
	fmp := out.Metrics[FirstMeaningfulPaint]
	tti := out.Metrics[TimeToInteractive]

	switch name {
	case FirstMeaningfulPaint:
		if fcp != nil {
			m.Timing = math.Max(m.Timing, fcp.Timing)
		}
	case TimeToInteractive:
		if fmp != nil {
			m.Timing = math.Max(m.Timing, fmp.Timing)
		}
	case FirstCPUIdle:
		if fmp != nil {
			m.Timing = math.Max(m.Timing, fmp.Timing)
		}
		if tti != nil {
			m.Timing = math.Min(m.Timing, tti.Timing)
		}
	case SpeedIndex:
		if fcp == nil {
			return fmt.Errorf("speed-index requires %s", FirstContentfulPaint)
		}
		layoutBased := layoutBasedSpeedIndex(m.pessimisticResult, fcp.Timing)
		m.PessimisticEstimate = layoutBased
		if observed := trace.ObservedSpeedIndex; observed > 0 {
			// Visual progress data beats the coefficient blend when the
			// capture carries it.
			m.Timing = math.Max(fcp.Timing, (observed+layoutBased)/2)
		} else {
			coeffs := coefficientsFor(SpeedIndex)
			m.Timing = math.Max(fcp.Timing, coeffs.Blend(m.OptimisticEstimate, layoutBased))
		}
	}
	return nil
}

func coefficientsFor(name string) Coefficients {
	for _, def := range table {
		if def.name == name {
			return def.coefficients
		}
	}
	return Coefficients{}
}
