package model

import "time"

// PageStats accumulates per-page extraction counters.
type PageStats struct {
	Page       int `json:"page"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RunStats aggregates a full pagination run.
//
// TotalProcessed counts every record whose detail view opened, even when
// all artifact steps failed; Successful counts only "useful" records
// (at least one artifact). The gap between the two is a known precision
// limit of the reporting, kept for compatibility with historic runs.
type RunStats struct {
	RunID              string    `json:"run_id"`
	Company            string    `json:"company"`
	TotalProcessed     int       `json:"total_processed"`
	Successful         int       `json:"successful"`
	Failed             int       `json:"failed"`
	PagesProcessed     int       `json:"pages_processed"`
	CheckpointsCreated int       `json:"checkpoints_created"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`

	// Loader counters, populated when extraction and load run together.
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
	LoadErrs int `json:"load_errors"`
}

// Add folds one page's counters into the run totals.
func (s *RunStats) Add(p PageStats) {
	s.TotalProcessed += p.Processed
	s.Successful += p.Successful
	s.Failed += p.Failed
	s.PagesProcessed++
}
