package pipeline

import (
	"sync"
	"time"
)

// Ledger is the run's cost/duration/warning record. It is the only
// mutable resource shared with progress observers, so every update is
// atomic under the mutex: an observer never sees a stage's cost without
// its duration. Retried stages accumulate the cost of every attempt,
// not just the final one.
type Ledger struct {
	mu              sync.Mutex
	costByStage     map[string]float64
	durationByStage map[string]time.Duration
	warnings        []string
	errs            []string
}

func NewLedger() *Ledger {
	return &Ledger{
		costByStage:     map[string]float64{},
		durationByStage: map[string]time.Duration{},
	}
}

// Record adds one stage attempt's cost and duration.
func (l *Ledger) Record(stage string, cost float64, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.costByStage[stage] += cost
	l.durationByStage[stage] += d
}

func (l *Ledger) Warn(msg string) {
	if msg == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warnings = append(l.warnings, msg)
}

func (l *Ledger) Error(msg string) {
	if msg == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs = append(l.errs, msg)
}

func (l *Ledger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0.0
	for _, c := range l.costByStage {
		total += c
	}
	return total
}

func (l *Ledger) CostByStage() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]float64, len(l.costByStage))
	for k, v := range l.costByStage {
		out[k] = v
	}
	return out
}

func (l *Ledger) DurationByStage() map[string]time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]time.Duration, len(l.durationByStage))
	for k, v := range l.durationByStage {
		out[k] = v
	}
	return out
}

func (l *Ledger) Warnings() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.warnings...)
}

func (l *Ledger) Errors() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string{}, l.errs...)
}
