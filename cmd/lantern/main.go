package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/chains"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/config"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/logging"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/metrics"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/netanalysis"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/output"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/simulator"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/watcher"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/web"
)

// auditRun bundles everything one end-to-end computation produces.
type auditRun struct {
	pageURL      string
	audit        *metrics.AuditResult
	graph        *graph.Graph
	chainSummary *chains.Summary
}

func main() {
	f := pflag.NewFlagSet("lantern", pflag.ExitOnError)
	f.String("capture", "", "Path to the capture file (JSON)")
	f.Bool("web", false, "Start the diagnostics web server instead of printing to console")
	f.Int("port", 8080, "Port for the web server (only used with --web)")
	f.Bool("watch", false, "Recompute when the capture file changes (only used with --web)")
	f.Bool("calibrate", true, "Calibrate per-origin latencies from the capture")
	f.Bool("json-logs", false, "Emit logs as JSON")
	f.String("verbosity", "", "Log verbosity: debug, info, warn, error")
	f.Float64("rtt", 150, "Simulated round-trip time in milliseconds")
	f.Float64("throughput", 1600, "Simulated downlink throughput in Kbps")
	f.Float64("cpu-slowdown", 4, "Main-thread slowdown multiplier")
	f.Int("max-concurrent", 10, "Maximum concurrent requests")
	if err := f.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	level := logging.LevelFromVerbosity(cfg.Verbosity)
	if cfg.JSONLogs {
		logging.SetJSONOutput(level)
	} else {
		logging.SetLevel(level)
	}

	if cfg.Capture == "" {
		logging.Fatal("no capture file given, use --capture")
	}

	if cfg.WebMode {
		runWebServer(cfg)
		return
	}

	run, err := runAudit(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	output.PrintReport(run.pageURL, run.audit, run.chainSummary)
}

// runAudit executes one full computation: load the capture, calibrate,
// build the dependency graph, estimate every metric, collect the
// critical request chains.
func runAudit(cfg *config.Config) (*auditRun, error) {
	start := time.Now()

	snapshot, err := capture.Load(cfg.Capture)
	if err != nil {
		return nil, fmt.Errorf("loading capture: %w", err)
	}
	logging.Info("capture loaded",
		"path", cfg.Capture,
		"requests", len(snapshot.Records),
		"tasks", len(snapshot.Trace.MainThreadTasks))

	opts := simulator.Options{
		RTT:                        cfg.RTTMs,
		ThroughputBytesPerSecond:   cfg.ThroughputBytesPerSecond(),
		MaximumConcurrentRequests:  cfg.MaxConcurrent,
		CPUSlowdownMultiplier:      cfg.CPUSlowdown,
		FallbackServerResponseTime: netanalysis.DefaultServerResponseTime,
	}
	if cfg.Calibrate {
		analysis := netanalysis.Analyze(snapshot.Records)
		opts.AdditionalRTTByOrigin = analysis.AdditionalRTTByOrigin
		opts.ServerResponseTimeByOrigin = analysis.ServerResponseTimeByOrigin
		logging.Debug("network calibration complete",
			"origins", len(analysis.RTTByOrigin),
			"minimumRTT", analysis.MinimumRTT)
	}

	g, err := graph.Build(snapshot)
	if err != nil {
		return nil, fmt.Errorf("building dependency graph: %w", err)
	}
	logging.Debug("dependency graph built", "nodes", len(g.Nodes()))

	runner := metrics.NewRunner(opts)
	audit := runner.ComputeAll(g, &snapshot.Trace)
	chainSummary := chains.Compute(g)

	logging.Info("audit complete",
		"runID", audit.RunID,
		"metrics", len(audit.Metrics),
		"failed", len(audit.Errors),
		"durationMs", time.Since(start).Milliseconds())

	return &auditRun{
		pageURL:      snapshot.URL,
		audit:        audit,
		graph:        g,
		chainSummary: chainSummary,
	}, nil
}

func runWebServer(cfg *config.Config) {
	server := web.NewServer()

	go func() {
		if err := server.Start(cfg.Port); err != nil {
			logging.Fatal("failed to start server", "error", err)
		}
	}()

	recompute := func() {
		server.PublishAuditStatus("loading", "loading capture", "")
		run, err := runAudit(cfg)
		if err != nil {
			logging.Error("audit failed", "error", err)
			server.PublishAuditStatus("failed", err.Error(), "")
			return
		}
		server.SetAudit(run.pageURL, run.audit, run.graph, run.chainSummary)
		server.PublishAuditStatus("complete", "audit complete", run.audit.RunID)
	}
	recompute()

	if cfg.Watch {
		w, err := watcher.NewCaptureWatcher(cfg.Capture, 250*time.Millisecond)
		if err != nil {
			logging.Fatal("failed to watch capture file", "error", err)
		}
		w.Start(context.Background())
		for range w.Events() {
			recompute()
		}
		return
	}

	// Server runs in a goroutine; block forever.
	select {}
}
