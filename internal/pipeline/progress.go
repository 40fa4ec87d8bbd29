package pipeline

import (
	"sync"
	"time"
)

// ProgressSink receives one event after every stage and every retry.
// Events carry at least "stage", "message", and "percent"; percent is
// monotonic within a run and never goes backward.
type ProgressSink func(map[string]any)

type progressReporter struct {
	mu          sync.Mutex
	sink        ProgressSink
	lastPercent int
}

func (p *progressReporter) emit(stage, message string, extra map[string]any) {
	p.mu.Lock()
	pct := stagePercent[stage]
	if pct < p.lastPercent {
		pct = p.lastPercent
	}
	p.lastPercent = pct
	sink := p.sink
	p.mu.Unlock()

	if sink == nil {
		return
	}
	ev := map[string]any{
		"stage":   stage,
		"message": message,
		"percent": pct,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	}
	for k, v := range extra {
		ev[k] = v
	}
	sink(ev)
}

func (p *progressReporter) terminal(status string, message string) {
	p.mu.Lock()
	p.lastPercent = 100
	sink := p.sink
	p.mu.Unlock()
	if sink == nil {
		return
	}
	sink(map[string]any{
		"stage":   "terminal",
		"message": message,
		"percent": 100,
		"status":  status,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})
}
