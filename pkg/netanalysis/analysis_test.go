package netanalysis

import (
	"testing"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
)

func recordWithTTFB(id, url string, ttfb float64) capture.NetworkRecord {
	return capture.NetworkRecord{
		RequestID: id,
		URL:       url,
		Timing:    &capture.RequestTiming{SendEnd: 0, ReceiveHeadersEnd: ttfb},
	}
}

func TestAnalyzeTwoOrigins(t *testing.T) {
	records := []capture.NetworkRecord{
		recordWithTTFB("1", "https://example.com/", 100),
		recordWithTTFB("2", "https://example.com/a.css", 150),
		recordWithTTFB("3", "https://example.com/b.js", 200),
		recordWithTTFB("4", "https://cdn.example.com/x.js", 200),
		recordWithTTFB("5", "https://cdn.example.com/y.js", 300),
		recordWithTTFB("6", "https://cdn.example.com/z.js", 400),
	}

	a := Analyze(records)

	if a.MinimumRTT != 100 {
		t.Errorf("MinimumRTT = %v, want 100", a.MinimumRTT)
	}
	if got := a.RTTByOrigin["https://example.com"]; got != 100 {
		t.Errorf("RTT[example.com] = %v, want 100", got)
	}
	if got := a.RTTByOrigin["https://cdn.example.com"]; got != 200 {
		t.Errorf("RTT[cdn] = %v, want 200", got)
	}

	// Additional RTT is each origin's latency above the global minimum.
	if got := a.AdditionalRTTByOrigin["https://example.com"]; got != 0 {
		t.Errorf("AdditionalRTT[example.com] = %v, want 0", got)
	}
	if got := a.AdditionalRTTByOrigin["https://cdn.example.com"]; got != 100 {
		t.Errorf("AdditionalRTT[cdn] = %v, want 100", got)
	}

	// Server response time is the median residual above the origin RTT:
	// example.com residuals {0, 50, 100}, cdn residuals {0, 100, 200}.
	if got := a.ServerResponseTimeByOrigin["https://example.com"]; got != 50 {
		t.Errorf("ServerResponseTime[example.com] = %v, want 50", got)
	}
	if got := a.ServerResponseTimeByOrigin["https://cdn.example.com"]; got != 100 {
		t.Errorf("ServerResponseTime[cdn] = %v, want 100", got)
	}
}

func TestAnalyzeOriginWithoutTiming(t *testing.T) {
	records := []capture.NetworkRecord{
		recordWithTTFB("1", "https://example.com/", 120),
		{RequestID: "2", URL: "https://notiming.example.com/font.woff2"},
	}

	a := Analyze(records)

	if got := a.ServerResponseTimeByOrigin["https://notiming.example.com"]; got != DefaultServerResponseTime {
		t.Errorf("ServerResponseTime = %v, want fallback %v", got, DefaultServerResponseTime)
	}
	if got := a.AdditionalRTTByOrigin["https://notiming.example.com"]; got != 0 {
		t.Errorf("AdditionalRTT = %v, want 0", got)
	}
}

func TestAnalyzeSkipsRecordsWithoutOrigin(t *testing.T) {
	records := []capture.NetworkRecord{
		recordWithTTFB("1", "https://example.com/", 120),
		{RequestID: "2", URL: "data:text/plain;base64,aGk="},
	}

	a := Analyze(records)

	if len(a.RTTByOrigin) != 1 {
		t.Errorf("RTTByOrigin has %d entries, want 1", len(a.RTTByOrigin))
	}
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil)
	if len(a.RTTByOrigin) != 0 || a.MinimumRTT != 0 {
		t.Errorf("expected empty analysis, got %+v", a)
	}
}
