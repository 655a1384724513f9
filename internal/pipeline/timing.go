package pipeline

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

type timingEvent struct {
	Stage      string  `json:"stage"`
	Kind       string  `json:"kind"`
	Module     string  `json:"module,omitempty"`
	Status     string  `json:"status,omitempty"`
	StartMS    float64 `json:"start_ms"`
	DurationMS float64 `json:"duration_ms"`
	EndMS      float64 `json:"end_ms"`
}

// timingRecorder appends one JSON line per stage. A recorder without a path
// records nothing.
type timingRecorder struct {
	enabled bool
	start   time.Time
	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	err     error
}

func newTimingRecorder(start time.Time, path string) *timingRecorder {
	tr := &timingRecorder{start: start}
	if path == "" {
		return tr
	}
	f, err := os.Create(path)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.enabled = true
	tr.file = f
	tr.enc = json.NewEncoder(f)
	return tr
}

func (tr *timingRecorder) Err() error {
	if tr == nil {
		return nil
	}
	return tr.err
}

func (tr *timingRecorder) Close() {
	if tr == nil || tr.file == nil {
		return
	}
	_ = tr.file.Close()
}

func (tr *timingRecorder) record(stage, kind, module, status string, start time.Time, duration time.Duration) {
	if tr == nil || !tr.enabled {
		return
	}
	startMS := durationToMS(start.Sub(tr.start))
	durationMS := durationToMS(duration)
	event := timingEvent{
		Stage:      stage,
		Kind:       kind,
		Module:     module,
		Status:     status,
		StartMS:    startMS,
		DurationMS: durationMS,
		EndMS:      startMS + durationMS,
	}
	tr.mu.Lock()
	_ = tr.enc.Encode(event)
	tr.mu.Unlock()
}

// RecordBatch records a whole-run stage such as resolve or total
func (tr *timingRecorder) RecordBatch(stage string, start time.Time, duration time.Duration, status string) {
	tr.record(stage, "batch", "", status, start, duration)
}

// RecordModule records one stage of one module
func (tr *timingRecorder) RecordModule(stage, module, status string, start time.Time, duration time.Duration) {
	tr.record(stage, "module", module, status, start, duration)
}

func durationToMS(d time.Duration) float64 {
	return float64(d.Nanoseconds()) / 1_000_000.0
}
