package simulator

import (
	"fmt"
	"testing"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
)

// Timing constants under the default throttling preset (150ms RTT,
// 100ms fallback server response): a cold TLS request pays three
// one-way handshake trips, one RTT for TLS, server time, and the
// response trip, 75*3 + 150 + 100 + 75 = 550ms. A warm request pays
// 75 + 100 + 75 = 250ms.
const (
	coldRequestTime = 550.0
	warmRequestTime = 250.0
)

func record(id, url string, start, end float64, connectionID string) capture.NetworkRecord {
	return capture.NetworkRecord{
		RequestID:    id,
		URL:          url,
		StartTime:    start,
		EndTime:      end,
		TransferSize: 1000,
		ConnectionID: connectionID,
	}
}

func initiatedBy(rec capture.NetworkRecord, url string) capture.NetworkRecord {
	rec.Initiator = capture.Initiator{Type: "parser", URL: url}
	return rec
}

func mustBuild(t *testing.T, c *capture.Capture) *graph.Graph {
	t.Helper()
	g, err := graph.Build(c)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func TestSingleRequest(t *testing.T) {
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, ""),
		},
	})

	result, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if result.TotalTime != coldRequestTime {
		t.Errorf("TotalTime = %v, want %v", result.TotalTime, coldRequestTime)
	}
}

func TestSerialChain(t *testing.T) {
	// Eight small requests, each discovered by the previous one and each
	// on its own connection: every hop pays the full cold-connection cost.
	var records []capture.NetworkRecord
	for i := 0; i < 8; i++ {
		url := fmt.Sprintf("https://example.com/r%d", i)
		rec := record(fmt.Sprintf("%d", i), url, float64(i*100), float64(i*100+90), "")
		if i > 0 {
			rec = initiatedBy(rec, fmt.Sprintf("https://example.com/r%d", i-1))
		}
		records = append(records, rec)
	}
	g := mustBuild(t, &capture.Capture{Records: records})

	result, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if want := 8 * coldRequestTime; result.TotalTime != want {
		t.Errorf("TotalTime = %v, want %v", result.TotalTime, want)
	}
}

func TestDeterminism(t *testing.T) {
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, ""),
			initiatedBy(record("2", "https://example.com/a.css", 100, 200, ""), "https://example.com/"),
			initiatedBy(record("3", "https://example.com/b.js", 100, 250, ""), "https://example.com/"),
			initiatedBy(record("4", "https://cdn.example.com/c.js", 150, 300, ""), "https://example.com/"),
		},
		Trace: capture.TraceOfTab{
			MainThreadTasks: []capture.CPUTask{{StartTime: 300, EndTime: 350}},
		},
	})

	sim := New(Options{})
	first, err := sim.Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	second, err := sim.Simulate(g)
	if err != nil {
		t.Fatalf("second Simulate failed: %v", err)
	}

	if first.TotalTime != second.TotalTime {
		t.Errorf("TotalTime differs between runs: %v vs %v", first.TotalTime, second.TotalTime)
	}
	for n, timing := range first.Timings {
		if second.Timings[n] != timing {
			t.Errorf("node %d timing differs: %+v vs %+v", n.ID(), timing, second.Timings[n])
		}
	}
}

func TestTimingsRespectDependencies(t *testing.T) {
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, ""),
			initiatedBy(record("2", "https://example.com/a.css", 100, 200, ""), "https://example.com/"),
			initiatedBy(record("3", "https://example.com/b.png", 210, 300, ""), "https://example.com/a.css"),
		},
		Trace: capture.TraceOfTab{
			MainThreadTasks: []capture.CPUTask{{StartTime: 300, EndTime: 400}},
		},
	})

	result, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	for _, n := range g.Nodes() {
		timing := result.Timings[n]
		if timing.EndTime < timing.StartTime {
			t.Errorf("node %d ends before it starts: %+v", n.ID(), timing)
		}
		if timing.EndTime > result.TotalTime {
			t.Errorf("node %d ends after TotalTime: %+v", n.ID(), timing)
		}
		for _, dep := range g.Dependencies(n) {
			if result.Timings[dep].EndTime > timing.StartTime {
				t.Errorf("node %d started at %v before dependency %d finished at %v",
					n.ID(), timing.StartTime, dep.ID(), result.Timings[dep].EndTime)
			}
		}
	}
}

func TestConcurrencyCap(t *testing.T) {
	c := &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, ""),
			initiatedBy(record("2", "https://example.com/a.css", 100, 200, ""), "https://example.com/"),
			initiatedBy(record("3", "https://example.com/b.css", 100, 200, ""), "https://example.com/"),
		},
	}

	parallel, err := New(Options{}).Simulate(mustBuild(t, c))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	serialized, err := New(Options{MaximumConcurrentRequests: 1}).Simulate(mustBuild(t, c))
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	if want := 2 * coldRequestTime; parallel.TotalTime != want {
		t.Errorf("parallel TotalTime = %v, want %v", parallel.TotalTime, want)
	}
	if want := 3 * coldRequestTime; serialized.TotalTime != want {
		t.Errorf("capped TotalTime = %v, want %v", serialized.TotalTime, want)
	}
}

func TestConnectionReuseIsWarm(t *testing.T) {
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, "c1"),
			initiatedBy(record("2", "https://example.com/a.css", 100, 200, "c1"), "https://example.com/"),
		},
	})

	result, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if want := coldRequestTime + warmRequestTime; result.TotalTime != want {
		t.Errorf("TotalTime = %v, want %v (second request should reuse the warm connection)", result.TotalTime, want)
	}
}

func TestConnectionExclusivity(t *testing.T) {
	// Two independent requests forced onto the same connection must
	// serialize even though the concurrency cap would allow both.
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, "c0"),
			initiatedBy(record("2", "https://example.com/a.css", 100, 200, "c2"), "https://example.com/"),
			initiatedBy(record("3", "https://example.com/b.css", 100, 200, "c2"), "https://example.com/"),
		},
	})

	result, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if want := 2*coldRequestTime + warmRequestTime; result.TotalTime != want {
		t.Errorf("TotalTime = %v, want %v", result.TotalTime, want)
	}
}

func TestCPUSlowdown(t *testing.T) {
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, ""),
		},
		Trace: capture.TraceOfTab{
			MainThreadTasks: []capture.CPUTask{{StartTime: 110, EndTime: 210}},
		},
	})

	result, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	// 100ms of observed main-thread work at 4x slowdown, after the root
	// request completes.
	if want := coldRequestTime + 400; result.TotalTime != want {
		t.Errorf("TotalTime = %v, want %v", result.TotalTime, want)
	}
}

func TestCalibrationOverrides(t *testing.T) {
	g := mustBuild(t, &capture.Capture{
		Records: []capture.NetworkRecord{
			record("1", "https://example.com/", 0, 100, ""),
		},
	})

	baseline, err := New(Options{}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	slowOrigin, err := New(Options{
		AdditionalRTTByOrigin:      map[string]float64{"https://example.com": 100},
		ServerResponseTimeByOrigin: map[string]float64{"https://example.com": 300},
	}).Simulate(g)
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	// +100ms RTT costs 2.5 round trips worth of handshake latency plus
	// the response trip; +200ms server time is paid once.
	if slowOrigin.TotalTime <= baseline.TotalTime {
		t.Errorf("calibrated origin should be slower: %v vs %v", slowOrigin.TotalTime, baseline.TotalTime)
	}
}

func TestDefaultsFillUnsetOptions(t *testing.T) {
	s := New(Options{RTT: 40})
	opts := s.Options()
	if opts.RTT != 40 {
		t.Errorf("RTT = %v, want explicit 40", opts.RTT)
	}
	def := DefaultOptions()
	if opts.ThroughputBytesPerSecond != def.ThroughputBytesPerSecond ||
		opts.MaximumConcurrentRequests != def.MaximumConcurrentRequests ||
		opts.CPUSlowdownMultiplier != def.CPUSlowdownMultiplier ||
		opts.FallbackServerResponseTime != def.FallbackServerResponseTime {
		t.Errorf("unset options not defaulted: %+v", opts)
	}
}
