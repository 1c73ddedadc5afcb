package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_CountersAreConcurrencySafe(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.AddItemsCollected(2)
			m.IncrementDuplicatesDropped()
			m.IncrementScoringFailures()
			m.AddTokens(10)
		}()
	}
	wg.Wait()

	if m.ItemsCollected != 100 {
		t.Errorf("ItemsCollected = %d, want 100", m.ItemsCollected)
	}
	if m.DuplicatesDropped != 50 {
		t.Errorf("DuplicatesDropped = %d, want 50", m.DuplicatesDropped)
	}
	if m.ScoringFailures != 50 {
		t.Errorf("ScoringFailures = %d, want 50", m.ScoringFailures)
	}
	if m.TotalTokens != 500 {
		t.Errorf("TotalTokens = %d, want 500", m.TotalTokens)
	}
}

func TestMetrics_HealthTransitions(t *testing.T) {
	m := &Metrics{IsHealthy: true}

	m.SetError("scoring broke")
	if m.IsHealthy {
		t.Error("SetError must mark unhealthy")
	}
	if m.LastError != "scoring broke" || m.LastErrorTime.IsZero() {
		t.Errorf("error detail not recorded: %q at %v", m.LastError, m.LastErrorTime)
	}

	m.SetLastRun()
	if !m.IsHealthy {
		t.Error("successful run must restore health")
	}
}

func TestMetrics_GetStats(t *testing.T) {
	m := &Metrics{IsHealthy: true}
	m.AddItemsCollected(7)
	m.RecordRunDuration(1500 * time.Millisecond)

	stats := m.GetStats()
	if stats["items_collected"].(int64) != 7 {
		t.Errorf("items_collected = %v", stats["items_collected"])
	}
	if stats["last_run_duration_ms"].(int64) != 1500 {
		t.Errorf("last_run_duration_ms = %v", stats["last_run_duration_ms"])
	}
	if stats["is_healthy"].(bool) != true {
		t.Error("is_healthy missing")
	}
}
