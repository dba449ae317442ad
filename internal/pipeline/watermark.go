package pipeline

import "time"

// Watermark tracks per-file outcomes of a run and proposes the replication
// value to persist at its end. Outcomes may arrive in any time order.
type Watermark struct {
	start     time.Time
	succeeded []time.Time
	failed    time.Time
	hasFailed bool
}

// NewWatermark starts a tracker from the watermark the run selected with.
func NewWatermark(start time.Time) *Watermark {
	return &Watermark{start: start}
}

// Succeeded records a fully emitted file.
func (w *Watermark) Succeeded(t time.Time) {
	if t.IsZero() {
		return
	}
	w.succeeded = append(w.succeeded, t)
}

// Failed records a file that was skipped after a decode error. The proposal
// never reaches it, so the next run selects it again.
func (w *Watermark) Failed(t time.Time) {
	if t.IsZero() {
		return
	}
	if !w.hasFailed || t.Before(w.failed) {
		w.failed = t
		w.hasFailed = true
	}
}

// Value returns the proposed watermark: the newest succeeded timestamp that
// is strictly earlier than the earliest failure, and never below the start.
// ok is false when there is nothing to persist.
func (w *Watermark) Value() (time.Time, bool) {
	best := w.start
	for _, t := range w.succeeded {
		if w.hasFailed && !t.Before(w.failed) {
			continue
		}
		if t.After(best) {
			best = t
		}
	}
	return best, !best.IsZero()
}
