package metrics

import (
	"math"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/simulator"
)

// layoutBasedSpeedIndex estimates Speed Index from the pessimistic
// simulation's node timings: each main-thread window that performed
// layout contributes its simulated end time, weighted by log2 of the
// window's duration (floored at zero, so trivial windows carry no
// weight). Falls back to the first paint estimate when no layout
// happened.
func layoutBasedSpeedIndex(result *simulator.Result, fcpTiming float64) float64 {
	var totalWeight, weightedSum float64
	for n, timing := range result.Timings {
		if n.Kind() != graph.KindCPU || !n.DidPerformLayout() {
			continue
		}
		duration := timing.EndTime - timing.StartTime
		weight := math.Max(math.Log2(duration), 0)
		totalWeight += weight
		weightedSum += weight * timing.EndTime
	}
	if totalWeight == 0 {
		return fcpTiming
	}
	return math.Max(fcpTiming, weightedSum/totalWeight)
}
