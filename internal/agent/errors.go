package agent

import "fmt"

// GenerationReason distinguishes why query generation failed, so the
// orchestrator can decide whether a retry is worth anything.
type GenerationReason string

const (
	// ReasonUnavailable covers service timeouts and outright call
	// failures after the bounded retry budget is spent.
	ReasonUnavailable GenerationReason = "service_unavailable"

	// ReasonMalformedOutput means the model answered but its output
	// could not be parsed into a statement and explanation.
	ReasonMalformedOutput GenerationReason = "malformed_output"
)

// GenerationError is a failure of the query-generation stage. Fatal to
// the turn once the orchestrator's regeneration budget is exhausted.
type GenerationError struct {
	Reason GenerationReason
	Err    error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("query generation failed (%s): %v", e.Reason, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// SummarizationError is a failure of the summarization stage. Non-fatal:
// retrieval succeeded even if narration did not.
type SummarizationError struct {
	Err error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarization failed: %v", e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }
