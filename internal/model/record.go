package model

// Status is the lifecycle state of a session's processing record
type Status string

const (
	StatusProcessing Status = "processing" // Submission accepted, documents still being read
	StatusDone       Status = "done"       // Every document was read and facts extracted
	StatusFailed     Status = "failed"     // Submission aborted (only when failure marking is enabled)
)

// Placeholder texts returned for sessions without a record
const (
	NoQuestionText = "No question found"
	NoFactsText    = "No facts found"
)

// ProcessingRecord is the per-session result visible to pollers
type ProcessingRecord struct {
	Question string   `json:"question"`
	Facts    []string `json:"facts"`
	Status   Status   `json:"status"`
}

// NewProcessingRecord returns the record stored when a submission starts
func NewProcessingRecord(question string) ProcessingRecord {
	return ProcessingRecord{
		Question: question,
		Facts:    []string{},
		Status:   StatusProcessing,
	}
}

// PlaceholderRecord is returned for unknown sessions.
// Facts is nil so it serializes as null.
func PlaceholderRecord() ProcessingRecord {
	return ProcessingRecord{
		Question: NoQuestionText,
		Facts:    nil,
		Status:   StatusProcessing,
	}
}

// Clone returns a copy that does not share the facts slice
func (r ProcessingRecord) Clone() ProcessingRecord {
	out := r
	if r.Facts != nil {
		out.Facts = make([]string, len(r.Facts))
		copy(out.Facts, r.Facts)
	}
	return out
}

// IsDone reports whether polling can stop
func (r ProcessingRecord) IsDone() bool {
	return r.Status == StatusDone || r.Status == StatusFailed
}
