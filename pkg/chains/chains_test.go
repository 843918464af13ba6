package chains

import (
	"testing"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/capture"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/graph"
)

func buildGraph(t *testing.T, records []capture.NetworkRecord) *graph.Graph {
	t.Helper()
	g, err := graph.Build(&capture.Capture{Records: records})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return g
}

func TestComputeChains(t *testing.T) {
	g := buildGraph(t, []capture.NetworkRecord{
		{
			RequestID: "1", URL: "https://example.com/",
			StartTime: 0, EndTime: 100, TransferSize: 3000,
			Priority: capture.PriorityVeryHigh, ResourceType: capture.ResourceDocument,
		},
		{
			RequestID: "2", URL: "https://example.com/style.css",
			StartTime: 100, EndTime: 250, TransferSize: 2000,
			Priority: capture.PriorityVeryHigh, ResourceType: capture.ResourceStylesheet,
			Initiator: capture.Initiator{Type: "parser", URL: "https://example.com/"},
		},
		{
			RequestID: "3", URL: "https://example.com/font.woff2",
			StartTime: 260, EndTime: 500, TransferSize: 8000,
			Priority: capture.PriorityVeryHigh, ResourceType: capture.ResourceFont,
			Initiator: capture.Initiator{Type: "parser", URL: "https://example.com/style.css"},
		},
		{
			// High priority but an image: never part of a critical chain.
			RequestID: "4", URL: "https://example.com/hero.jpg",
			StartTime: 110, EndTime: 300, TransferSize: 50000,
			Priority: capture.PriorityHigh, ResourceType: capture.ResourceImage,
			Initiator: capture.Initiator{Type: "parser", URL: "https://example.com/"},
		},
	})

	s := Compute(g)

	if len(s.Chains) != 1 {
		t.Fatalf("got %d root chains, want 1", len(s.Chains))
	}
	root := s.Chains[0]
	if root.URL != "https://example.com/" {
		t.Errorf("root chain URL = %q", root.URL)
	}
	if len(root.Children) != 1 || root.Children[0].URL != "https://example.com/style.css" {
		t.Fatalf("root children = %+v, want only the stylesheet", root.Children)
	}
	css := root.Children[0]
	if len(css.Children) != 1 || css.Children[0].URL != "https://example.com/font.woff2" {
		t.Fatalf("css children = %+v, want the font", css.Children)
	}

	if s.LongestLength != 3 {
		t.Errorf("LongestLength = %d, want 3", s.LongestLength)
	}
	// The longest chain spans navigation start to the font's end.
	if s.LongestDuration != 500 {
		t.Errorf("LongestDuration = %v, want 500", s.LongestDuration)
	}
	// doc + css + font; the image is excluded.
	if s.TotalTransfer != 3000+2000+8000 {
		t.Errorf("TotalTransfer = %d", s.TotalTransfer)
	}
}

func TestComputeRootOnly(t *testing.T) {
	g := buildGraph(t, []capture.NetworkRecord{
		{
			RequestID: "1", URL: "https://example.com/",
			StartTime: 0, EndTime: 100, TransferSize: 3000,
			Priority: capture.PriorityVeryHigh, ResourceType: capture.ResourceDocument,
		},
		{
			RequestID: "2", URL: "https://example.com/analytics.js",
			StartTime: 100, EndTime: 200, TransferSize: 500,
			Priority: capture.PriorityLow, ResourceType: capture.ResourceScript,
			Initiator: capture.Initiator{Type: "parser", URL: "https://example.com/"},
		},
	})

	s := Compute(g)
	if len(s.Chains[0].Children) != 0 {
		t.Errorf("low-priority script should not join the chain: %+v", s.Chains[0].Children)
	}
	if s.LongestLength != 1 {
		t.Errorf("LongestLength = %d, want 1", s.LongestLength)
	}
	if s.TotalTransfer != 3000 {
		t.Errorf("TotalTransfer = %d, want root only", s.TotalTransfer)
	}
}
