package pubsub

import (
	"context"
	"testing"
	"time"
)

func TestReplayLastEvent(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	// Publish 3 events before anyone subscribes
	for i := 1; i <= 3; i++ {
		err := pub.Publish(TopicMetrics, "updated", map[string]int{"num": i})
		if err != nil {
			t.Fatalf("Failed to publish event %d: %v", i, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicMetrics)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	// Should receive only the last event (version 3)
	select {
	case event := <-sub.Events():
		if event.Version != 3 {
			t.Errorf("Expected version 3, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for replayed event")
	}

	// Verify no more events are replayed
	select {
	case event := <-sub.Events():
		t.Errorf("Received unexpected extra event version %d", event.Version)
	case <-time.After(50 * time.Millisecond):
		// Good, only the last event was replayed
	}
}

func TestPublishReachesSubscriber(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicAuditStatus)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	status := AuditStatus{State: "complete", Message: "audit complete", RunID: "abc123"}
	if err := pub.Publish(TopicAuditStatus, "complete", status); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case event := <-sub.Events():
		if event.Topic != TopicAuditStatus {
			t.Errorf("Expected topic %q, got %q", TopicAuditStatus, event.Topic)
		}
		if event.Type != "complete" {
			t.Errorf("Expected type %q, got %q", "complete", event.Type)
		}
		if event.Version != 1 {
			t.Errorf("Expected version 1, got %d", event.Version)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestTopicsAreIsolated(t *testing.T) {
	pub := NewSSEPublisher()
	defer pub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := pub.Subscribe(ctx, TopicMetrics)
	if err != nil {
		t.Fatalf("Failed to subscribe: %v", err)
	}
	defer sub.Close()

	if err := pub.Publish(TopicAuditStatus, "loading", AuditStatus{State: "loading"}); err != nil {
		t.Fatalf("Failed to publish: %v", err)
	}

	select {
	case event := <-sub.Events():
		t.Errorf("Received event from another topic: %q", event.Topic)
	case <-time.After(50 * time.Millisecond):
		// Good, the metrics subscriber never saw the status event
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	pub := NewSSEPublisher()
	pub.Close()

	if err := pub.Publish(TopicMetrics, "updated", nil); err == nil {
		t.Error("Expected error publishing to a closed publisher")
	}
	if _, err := pub.Subscribe(context.Background(), TopicMetrics); err == nil {
		t.Error("Expected error subscribing to a closed publisher")
	}
}
