package capture

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoRecords indicates a capture with an empty network log. No metric
// can be computed from it, so loading fails instead of producing a
// degenerate graph downstream.
var ErrNoRecords = errors.New("capture contains no network records")

// Capture bundles everything recorded for one page navigation.
type Capture struct {
	URL     string          `json:"url"`
	Records []NetworkRecord `json:"records"`
	Trace   TraceOfTab      `json:"trace"`
}

// Load reads and validates a capture file.
func Load(path string) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading capture file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates capture JSON.
func Parse(data []byte) (*Capture, error) {
	var c Capture
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing capture: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the invariants the rest of the pipeline relies on.
func (c *Capture) Validate() error {
	if len(c.Records) == 0 {
		return ErrNoRecords
	}
	seen := make(map[string]bool, len(c.Records))
	for i := range c.Records {
		r := &c.Records[i]
		if r.RequestID == "" {
			return fmt.Errorf("record %d has no requestId", i)
		}
		if seen[r.RequestID] {
			return fmt.Errorf("duplicate requestId %q", r.RequestID)
		}
		seen[r.RequestID] = true
		if r.URL == "" {
			return fmt.Errorf("record %s has no url", r.RequestID)
		}
		if r.EndTime < r.StartTime {
			return fmt.Errorf("record %s ends before it starts", r.RequestID)
		}
	}
	for i := range c.Trace.MainThreadTasks {
		t := &c.Trace.MainThreadTasks[i]
		if t.EndTime < t.StartTime {
			return fmt.Errorf("main-thread task %d ends before it starts", i)
		}
	}
	return nil
}
