// Package control implements the operator control channel: sentinel
// markers for pause/resume/stop plus an operator-readable status
// snapshot. It is the only way an external operator affects a running
// batch.
package control

import "time"

// Signal is the instruction derived from the sentinel markers on each
// polling tick. It is read-computed state, never persisted itself.
type Signal string

const (
	SignalContinue Signal = "CONTINUE"
	SignalPause    Signal = "PAUSE"
	SignalResume   Signal = "RESUME"
	SignalStop     Signal = "STOP"
)

// Status is the operator-facing progress snapshot. Written as a side
// effect only; the pipeline never reads it back.
type Status struct {
	Timestamp          time.Time `json:"timestamp"`
	Company            string    `json:"company"`
	CurrentPage        int       `json:"current_page"`
	TotalPages         int       `json:"total_pages"`
	ProcessedRecords   int       `json:"processed_records"`
	TotalRecords       int       `json:"total_records"`
	ProgressPercentage float64   `json:"progress_percentage"`
	IsPaused           bool      `json:"is_paused"`
	IsStopped          bool      `json:"is_stopped"`
	EstimatedRemaining string    `json:"estimated_remaining"`
}

// Store is the control channel abstraction. Any implementation (files,
// key-value store, local socket) satisfying Poll/Emit is acceptable.
type Store interface {
	// Poll derives the current signal. A STOP marker always wins over
	// PAUSE/RESUME. On the PAUSE -> RESUME transition the implementation
	// clears both markers so the next poll returns CONTINUE. I/O errors
	// degrade to CONTINUE: the control channel must never halt a batch.
	Poll() Signal

	// Emit writes the status snapshot. Errors are logged and dropped.
	Emit(st Status)
}

// EstimateRemaining computes an ETA string from progress so far.
// Returns "unavailable" while no records have been processed or no time
// has elapsed, since the rate is undefined.
func EstimateRemaining(processed, total int, elapsed time.Duration) string {
	if processed <= 0 || total <= 0 || elapsed <= 0 {
		return "unavailable"
	}
	remaining := total - processed
	if remaining <= 0 {
		return "0s"
	}
	rate := float64(processed) / elapsed.Seconds()
	if rate <= 0 {
		return "unavailable"
	}
	eta := time.Duration(float64(remaining)/rate) * time.Second
	return eta.Round(time.Second).String()
}

// Progress returns the completion percentage, clamped to [0, 100].
func Progress(processed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(processed) / float64(total) * 100
	if pct > 100 {
		pct = 100
	}
	return pct
}
