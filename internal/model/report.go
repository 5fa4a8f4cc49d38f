package model

// Step identifies one state of the per-record extraction sequence.
type Step string

const (
	StepOpenDetail      Step = "open_detail"
	StepCaptureID       Step = "capture_identifier"
	StepRenderDocument  Step = "render_document"
	StepFetchAttachment Step = "fetch_attachment"
	StepCaptureSnapshot Step = "capture_snapshot"
	StepCloseDetail     Step = "close_detail"
)

// StepResult is the explicit outcome of one extraction sub-step.
// "Continue regardless" is policy in the extractor, not an accident of
// error handling, so failures are values rather than panics.
type StepResult struct {
	Step   Step   `json:"step"`
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

// Report summarizes one record's trip through the extraction sequence.
type Report struct {
	Radicado     string `json:"radicado"`
	RecordNumber int    `json:"record_number"`

	// Processed is true when the detail view could be opened at all.
	// A processed record is never retried within the same pass; this
	// deliberately conflates "attempted" with "done" to guarantee
	// forward progress over very large batches.
	Processed bool `json:"processed"`

	Document   bool `json:"document"`
	Attachment bool `json:"attachment"`
	Snapshot   bool `json:"snapshot"`

	Steps  []StepResult     `json:"steps,omitempty"`
	Record *ExtractedRecord `json:"-"`
}

// Useful reports whether at least one artifact-producing step succeeded.
func (r *Report) Useful() bool {
	return r.Document || r.Attachment || r.Snapshot
}
