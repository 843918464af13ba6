package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published during an audit run.
const (
	TopicAuditStatus = "audit_status"
	TopicMetrics     = "metrics"
)

// Event represents a pub/sub event.
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // e.g. "loading", "simulating", "complete"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic ordering counter
}

// Subscription represents a client subscription to a topic.
type Subscription interface {
	// Topic returns the subscription topic.
	Topic() string

	// Events returns a channel for receiving events.
	Events() <-chan Event

	// Close closes the subscription.
	Close() error
}

// Publisher manages subscriptions and event publishing.
type Publisher interface {
	// Subscribe creates a new subscription to a topic. Context
	// cancellation closes the subscription.
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic.
	Publish(topic string, eventType string, data interface{}) error

	// Close shuts down the publisher and all subscriptions.
	Close() error
}

// AuditStatus describes where a recomputation currently is.
type AuditStatus struct {
	State   string `json:"state"` // loading, building_graph, simulating, complete, failed
	Message string `json:"message"`
	RunID   string `json:"runId,omitempty"`
}

// MetricsData summarizes a finished audit for subscribers.
type MetricsData struct {
	RunID    string             `json:"runId"`
	Timings  map[string]float64 `json:"timings"`
	Failures []string           `json:"failures,omitempty"`
}
