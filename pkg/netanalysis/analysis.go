package netanalysis

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
)

// DefaultServerResponseTime is assumed for origins whose requests
// carried no response timing data, in milliseconds.
const DefaultServerResponseTime = 100

// Analysis holds the per-origin latency calibration derived from real
// captured records. The per-origin values represent only the additional
// latency above the global baseline, so the simulator can apply its own
// configured base RTT.
type Analysis struct {
	// RTTByOrigin is the minimum observed round-trip estimate per origin.
	RTTByOrigin map[string]float64
	// AdditionalRTTByOrigin is each origin's RTT above the global
	// minimum, clamped at zero.
	AdditionalRTTByOrigin map[string]float64
	// ServerResponseTimeByOrigin is the median estimated server
	// processing time per origin.
	ServerResponseTimeByOrigin map[string]float64
	// MinimumRTT is the smallest per-origin RTT estimate observed across
	// the whole capture, used as the simulator's base connection latency.
	MinimumRTT float64
}

// Analyze calibrates per-origin latency from captured network records.
// Origins without usable timing data get the fallback server response
// time and zero additional RTT. Records without an origin (data: URIs,
// unparseable URLs) are skipped.
func Analyze(records []capture.NetworkRecord) *Analysis {
	ttfbsByOrigin := make(map[string][]float64)
	origins := make(map[string]bool)

	for i := range records {
		rec := &records[i]
		origin := rec.Origin()
		if origin == "" {
			continue
		}
		origins[origin] = true
		if ttfb, ok := rec.TTFB(); ok {
			ttfbsByOrigin[origin] = append(ttfbsByOrigin[origin], ttfb)
		}
	}

	a := &Analysis{
		RTTByOrigin:                make(map[string]float64, len(origins)),
		AdditionalRTTByOrigin:      make(map[string]float64, len(origins)),
		ServerResponseTimeByOrigin: make(map[string]float64, len(origins)),
	}

	// The round-trip estimate per origin is the smallest observed TTFB:
	// the fastest response an origin produced bounds its network latency
	// plus minimal server time.
	for origin, ttfbs := range ttfbsByOrigin {
		rtt := ttfbs[0]
		for _, v := range ttfbs[1:] {
			if v < rtt {
				rtt = v
			}
		}
		a.RTTByOrigin[origin] = rtt
		if a.MinimumRTT == 0 || rtt < a.MinimumRTT {
			a.MinimumRTT = rtt
		}
	}

	for origin := range origins {
		rtt, hasTiming := a.RTTByOrigin[origin]
		if !hasTiming {
			a.AdditionalRTTByOrigin[origin] = 0
			a.ServerResponseTimeByOrigin[origin] = DefaultServerResponseTime
			continue
		}
		a.AdditionalRTTByOrigin[origin] = rtt - a.MinimumRTT

		// Server processing time is what remains of each TTFB once the
		// origin's network round trip is removed.
		residuals := make([]float64, 0, len(ttfbsByOrigin[origin]))
		for _, ttfb := range ttfbsByOrigin[origin] {
			residual := ttfb - rtt
			if residual < 0 {
				residual = 0
			}
			residuals = append(residuals, residual)
		}
		sort.Float64s(residuals)
		a.ServerResponseTimeByOrigin[origin] = stat.Quantile(0.5, stat.Empirical, residuals, nil)
	}

	return a
}
