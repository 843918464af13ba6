package output

import (
	"fmt"
	"sort"

	"github.com/fatih/color"

	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/chains"
	"github.com/InfinityAlgo-Academy/LightHouse-sub005/pkg/metrics"
)

// reportOrder fixes the row order of the metric table.
var reportOrder = []string{
	metrics.FirstContentfulPaint,
	metrics.FirstMeaningfulPaint,
	metrics.SpeedIndex,
	metrics.FirstCPUIdle,
	metrics.TimeToInteractive,
}

// PrintReport prints a colorized metric report for one audit run.
func PrintReport(url string, result *metrics.AuditResult, chainSummary *chains.Summary) {
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	bold.Println("Lantern - Simulated Page Load Report")
	bold.Println("====================================")
	if url != "" {
		fmt.Printf("Page: %s\n", url)
	}
	fmt.Println()

	for _, name := range reportOrder {
		m, ok := result.Metrics[name]
		if !ok {
			continue
		}
		timingColor := green
		switch {
		case m.Timing >= 7500:
			timingColor = red
		case m.Timing >= 3500:
			timingColor = yellow
		}
		timingColor.Printf("  %-25s %8.0f ms", m.Name, m.Timing)
		fmt.Printf("   (optimistic %.0f ms, pessimistic %.0f ms)\n",
			m.OptimisticEstimate, m.PessimisticEstimate)
	}

	if len(result.Errors) > 0 {
		fmt.Println()
		red.Println("UNAVAILABLE METRICS:")
		names := make([]string, 0, len(result.Errors))
		for name := range result.Errors {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			yellow.Printf("  %s\n", name)
			fmt.Printf("    Reason: %v\n", result.Errors[name])
		}
	}

	if chainSummary != nil {
		fmt.Println()
		bold.Println("Critical request chains")
		fmt.Printf("  Longest chain: %d request(s), %.0f ms\n",
			chainSummary.LongestLength, chainSummary.LongestDuration)
		fmt.Printf("  Total transfer: %d bytes\n", chainSummary.TotalTransfer)
		for _, chain := range chainSummary.Chains {
			printChain(cyan, chain, 1)
		}
	}
}

func printChain(c *color.Color, chain *chains.Chain, depth int) {
	c.Printf("  %*s%s\n", depth*2, "", chain.URL)
	for _, child := range chain.Children {
		printChain(c, child, depth+1)
	}
}
