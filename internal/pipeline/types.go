package pipeline

import (
	"time"
)

// ContactStatus classifies the outcome of one contact.
type ContactStatus string

const (
	// StatusSuccess means every group either produced an insight or was
	// legitimately empty.
	StatusSuccess ContactStatus = "success"
	// StatusFailed means at least one group hit a hard error.
	StatusFailed ContactStatus = "failed"
	// StatusSkipped means another worker held the claim; no work was
	// attempted. Not an error.
	StatusSkipped ContactStatus = "skipped"
)

// GroupResult records what happened to one (type, subtype) partition.
type GroupResult struct {
	SourceType      string
	SourceSubtype   string
	CompositeENIID  string
	RowsTotal       int
	RowsUsed        int
	Version         int
	ParseOutcome    string
	EstInputTokens  int
	EstOutputTokens int
	Error           string
}

// ContactOutcome is the result of processing one contact.
type ContactOutcome struct {
	ContactID       string
	Status          ContactStatus
	Groups          []GroupResult
	Errors          []string
	EvidenceRows    int
	EstInputTokens  int
	EstOutputTokens int
	Duration        time.Duration
}

// RunSummary aggregates a whole batch run.
type RunSummary struct {
	RunID           string    `json:"run_id"`
	Generator       string    `json:"generator"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	ContactsTotal   int       `json:"contacts_total"`
	Successful      int       `json:"successful"`
	Failed          int       `json:"failed"`
	Skipped         int       `json:"skipped"`
	EvidenceRows    int       `json:"evidence_rows"`
	EstInputTokens  int       `json:"est_input_tokens"`
	EstOutputTokens int       `json:"est_output_tokens"`
	Errors          []string  `json:"errors,omitempty"`
}

func (s *RunSummary) record(outcome ContactOutcome) {
	s.ContactsTotal++
	switch outcome.Status {
	case StatusSuccess:
		s.Successful++
	case StatusFailed:
		s.Failed++
	case StatusSkipped:
		s.Skipped++
	}
	s.EvidenceRows += outcome.EvidenceRows
	s.EstInputTokens += outcome.EstInputTokens
	s.EstOutputTokens += outcome.EstOutputTokens
	for _, e := range outcome.Errors {
		s.Errors = append(s.Errors, outcome.ContactID+": "+e)
	}
}
