package capture

import (
	"net/url"
	"strings"
)

// Priority represents the browser's scheduling priority for a request.
type Priority string

const (
	PriorityVeryLow  Priority = "VeryLow"
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityVeryHigh Priority = "VeryHigh"
)

// RenderBlocking returns true if the browser would block paint on a
// request with this priority.
func (p Priority) RenderBlocking() bool {
	return p == PriorityHigh || p == PriorityVeryHigh
}

// ResourceType classifies what kind of resource a request fetched.
type ResourceType string

const (
	ResourceDocument   ResourceType = "Document"
	ResourceStylesheet ResourceType = "Stylesheet"
	ResourceScript     ResourceType = "Script"
	ResourceImage      ResourceType = "Image"
	ResourceFont       ResourceType = "Font"
	ResourceXHR        ResourceType = "XHR"
	ResourceMedia      ResourceType = "Media"
	ResourceOther      ResourceType = "Other"
)

// Initiator describes how a request was discovered.
type Initiator struct {
	URL   string   `json:"url,omitempty"`
	Type  string   `json:"type"`            // "parser", "script", "preload", "other"
	Stack []string `json:"stack,omitempty"` // URLs of JS call-stack frames, innermost first
}

// RequestTiming holds the sub-request timestamps needed for TTFB
// estimation, in milliseconds relative to the request's start.
type RequestTiming struct {
	SendEnd           float64 `json:"sendEnd"`
	ReceiveHeadersEnd float64 `json:"receiveHeadersEnd"`
}

// NetworkRecord is one entry of the captured network log, normalized by
// the upstream capture layer. Times are milliseconds since navigation
// start.
type NetworkRecord struct {
	RequestID       string            `json:"requestId"`
	URL             string            `json:"url"`
	StartTime       float64           `json:"startTime"`
	EndTime         float64           `json:"endTime"`
	TransferSize    int64             `json:"transferSize"`
	Priority        Priority          `json:"priority"`
	ResourceType    ResourceType      `json:"resourceType"`
	ConnectionID    string            `json:"connectionId"`
	Initiator       Initiator         `json:"initiator"`
	Timing          *RequestTiming    `json:"timing,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
}

// Origin returns the scheme+host+port grouping key for the record's URL,
// or "" if the URL cannot be parsed.
func (r *NetworkRecord) Origin() string {
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// IsSecure returns true if the request was made over TLS.
func (r *NetworkRecord) IsSecure() bool {
	return strings.HasPrefix(r.URL, "https://") || strings.HasPrefix(r.URL, "wss://")
}

// InitiatorURLs returns the set of URLs that plausibly initiated this
// request: the direct initiator URL if present, otherwise the distinct
// URLs of the JS call-stack frames. The record's own URL is excluded.
func (r *NetworkRecord) InitiatorURLs() []string {
	if r.Initiator.URL != "" && r.Initiator.URL != r.URL {
		return []string{r.Initiator.URL}
	}
	if r.Initiator.Type != "script" {
		return nil
	}
	seen := make(map[string]bool)
	var urls []string
	for _, frame := range r.Initiator.Stack {
		if frame == "" || frame == r.URL || seen[frame] {
			continue
		}
		seen[frame] = true
		urls = append(urls, frame)
	}
	return urls
}

// TTFB returns the observed time-to-first-byte for the request and
// whether timing data was captured for it.
func (r *NetworkRecord) TTFB() (float64, bool) {
	if r.Timing == nil {
		return 0, false
	}
	ttfb := r.Timing.ReceiveHeadersEnd - r.Timing.SendEnd
	if ttfb <= 0 {
		return 0, false
	}
	return ttfb, true
}
