package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *capturePublisher) wait(t *testing.T) []AggregatedLogEntry {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		n := len(p.batches)
		p.mu.Unlock()
		if n > 0 {
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.batches[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no batch published before deadline")
	return nil
}

func TestCollectorDeduplicatesEntries(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 5; i++ {
		c.AddLog("error", "store write failed", map[string]interface{}{"instrument": "BTCUSD"}, "store.go:42")
	}
	c.AddLog("error", "store write failed", map[string]interface{}{"instrument": "ETHUSD"}, "store.go:42")
	c.Close()

	batch := pub.wait(t)
	if len(batch) != 2 {
		t.Fatalf("got %d entries, want 2", len(batch))
	}
	var merged *AggregatedLogEntry
	for i := range batch {
		if batch[i].Fields["instrument"] == "BTCUSD" {
			merged = &batch[i]
		}
	}
	if merged == nil || merged.Count != 5 {
		t.Errorf("BTCUSD entry = %+v, want Count 5", merged)
	}
}

func TestCollectorFlushesOnThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 3,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	c.AddLog("warn", "slow query", nil, "a.go:1")
	c.AddLog("warn", "slow insert", nil, "b.go:2")
	c.AddLog("warn", "slow scan", nil, "c.go:3")

	if batch := pub.wait(t); len(batch) != 3 {
		t.Errorf("got %d entries, want 3", len(batch))
	}
}

func TestEntryKeyStableAcrossFieldOrder(t *testing.T) {
	a := entryKey("error", "m", map[string]interface{}{"x": 1, "y": 2, "z": 3}, "f.go:1")
	b := entryKey("error", "m", map[string]interface{}{"z": 3, "y": 2, "x": 1}, "f.go:1")
	if a != b {
		t.Error("same fields in different order hashed differently")
	}
	if a == entryKey("error", "m", map[string]interface{}{"x": 1, "y": 2, "z": 4}, "f.go:1") {
		t.Error("different field values hashed identically")
	}
}
