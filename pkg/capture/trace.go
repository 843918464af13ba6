package capture

// Timestamps holds the page lifecycle timestamps extracted from the
// trace, in milliseconds relative to navigation start. A zero value
// means the event was not observed.
type Timestamps struct {
	FirstContentfulPaint float64 `json:"firstContentfulPaint"`
	FirstMeaningfulPaint float64 `json:"firstMeaningfulPaint"`
	DOMContentLoaded     float64 `json:"domContentLoaded"`
	Load                 float64 `json:"load"`
	TraceEnd             float64 `json:"traceEnd"`
}

// CPUTask is one contiguous main-thread task window from the trace.
type CPUTask struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`

	// ChildEvents lists the trace event names that occurred inside the
	// window (e.g. "Layout", "EvaluateScript", "TimerInstall").
	ChildEvents []string `json:"childEvents,omitempty"`

	// EvaluatedScripts lists the URLs of scripts evaluated inside the
	// window.
	EvaluatedScripts []string `json:"evaluatedScripts,omitempty"`
}

// Duration returns the task's wall-clock length in milliseconds.
func (t *CPUTask) Duration() float64 {
	return t.EndTime - t.StartTime
}

// DidPerformLayout returns true if the window included a Layout event.
func (t *CPUTask) DidPerformLayout() bool {
	for _, name := range t.ChildEvents {
		if name == "Layout" {
			return true
		}
	}
	return false
}

// EvaluatesScript returns true if the window evaluated any of the given
// script URLs.
func (t *CPUTask) EvaluatesScript(urls map[string]bool) bool {
	for _, u := range t.EvaluatedScripts {
		if urls[u] {
			return true
		}
	}
	return false
}

// TraceOfTab is the normalized trace summary for one navigation.
type TraceOfTab struct {
	Timestamps      Timestamps `json:"timestamps"`
	MainThreadTasks []CPUTask  `json:"mainThreadTasks,omitempty"`

	// ObservedSpeedIndex is the perceptual-diff Speed Index in
	// milliseconds when visual progress data was captured, 0 otherwise.
	ObservedSpeedIndex float64 `json:"observedSpeedIndex,omitempty"`
}
