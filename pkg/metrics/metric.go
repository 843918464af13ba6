package metrics

import (
	"errors"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/simulator"
)

// Metric names, also used as report keys.
const (
	FirstContentfulPaint = "first-contentful-paint"
	FirstMeaningfulPaint = "first-meaningful-paint"
	SpeedIndex           = "speed-index"
	FirstCPUIdle         = "first-cpu-idle"
	TimeToInteractive    = "interactive"
)

// ErrMissingTimestamp indicates the trace never observed the lifecycle
// event a metric anchors its graph pruning on.
var ErrMissingTimestamp = errors.New("trace is missing the required timestamp")

// Coefficients blend the optimistic and pessimistic simulation estimates
// into one timing value. They are fit offline against real page loads
// and are never recomputed at runtime.
type Coefficients struct {
	Intercept   float64
	Optimistic  float64
	Pessimistic float64
}

// Blend applies the coefficient triple to a pair of estimates.
func (c Coefficients) Blend(optimistic, pessimistic float64) float64 {
	return c.Intercept + c.Optimistic*optimistic + c.Pessimistic*pessimistic
}

// graphFilter prunes a dependency graph variant for one metric. Filters
// are pure: they never mutate the input graph.
type graphFilter func(g *graph.Graph, trace *capture.TraceOfTab) (*graph.Graph, error)

// definition is one row of the metric strategy table.
type definition struct {
	name         string
	coefficients Coefficients
	optimistic   graphFilter
	pessimistic  graphFilter
}

// table lists the supported metrics in dependency order: later entries
// may clamp against earlier ones.
var table = []definition{
	{
		name:         FirstContentfulPaint,
		coefficients: Coefficients{Intercept: 0, Optimistic: 0.5, Pessimistic: 0.5},
		optimistic:   fcpOptimistic,
		pessimistic:  fcpPessimistic,
	},
	{
		name:         FirstMeaningfulPaint,
		coefficients: Coefficients{Intercept: 0, Optimistic: 0.5, Pessimistic: 0.5},
		optimistic:   fmpOptimistic,
		pessimistic:  fmpPessimistic,
	},
	{
		name:         TimeToInteractive,
		coefficients: Coefficients{Intercept: 0, Optimistic: 0.45, Pessimistic: 0.55},
		optimistic:   ttiOptimistic,
		pessimistic:  ttiPessimistic,
	},
	{
		name:         FirstCPUIdle,
		coefficients: Coefficients{Intercept: 0, Optimistic: 0.5, Pessimistic: 0.5},
		optimistic:   ttiOptimistic,
		pessimistic:  ttiPessimistic,
	},
	{
		name:         SpeedIndex,
		coefficients: Coefficients{Intercept: -250, Optimistic: 1.4, Pessimistic: 0.65},
		optimistic:   fullGraph,
		pessimistic:  fullGraph,
	},
}

// MetricResult is what consumers read for one metric: the blended
// timing for scoring, plus the estimates and pruned graphs for
// diagnostic rendering.
type MetricResult struct {
	Name                string
	Timing              float64
	OptimisticEstimate  float64
	PessimisticEstimate float64
	OptimisticGraph     *graph.Graph
	PessimisticGraph    *graph.Graph

	optimisticResult  *simulator.Result
	pessimisticResult *simulator.Result
}
