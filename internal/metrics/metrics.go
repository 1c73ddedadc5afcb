package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	ItemsCollected    int64
	DuplicatesDropped int64
	OutdatedFiltered  int64
	InvalidFiltered   int64
	ScoringFailures   int64
	PlansFailed       int64
	TotalTokens       int64

	// Timings
	LastRunDuration time.Duration

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = &Metrics{IsHealthy: true}

func (m *Metrics) AddItemsCollected(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ItemsCollected += n
}

func (m *Metrics) IncrementDuplicatesDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesDropped++
}

func (m *Metrics) AddOutdatedFiltered(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.OutdatedFiltered += n
}

func (m *Metrics) AddInvalidFiltered(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvalidFiltered += n
}

func (m *Metrics) IncrementScoringFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ScoringFailures++
}

func (m *Metrics) IncrementPlansFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PlansFailed++
}

func (m *Metrics) AddTokens(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalTokens += n
}

func (m *Metrics) RecordRunDuration(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunDuration = duration
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"items_collected":      m.ItemsCollected,
		"duplicates_dropped":   m.DuplicatesDropped,
		"outdated_filtered":    m.OutdatedFiltered,
		"invalid_filtered":     m.InvalidFiltered,
		"scoring_failures":     m.ScoringFailures,
		"plans_failed":         m.PlansFailed,
		"total_tokens":         m.TotalTokens,
		"last_run_duration_ms": m.LastRunDuration.Milliseconds(),
		"last_run_time":        m.LastRunTime.Format(time.RFC3339),
		"last_error_time":      m.LastErrorTime.Format(time.RFC3339),
		"last_error":           m.LastError,
		"is_healthy":           m.IsHealthy,
	}
}
