package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// maxRowsInPrompt bounds how many retrieved rows are serialized into the
// summarization prompt, independent of the executor's row cap.
const maxRowsInPrompt = 50

// SummarizeRequest carries the retrieved result set for narration.
type SummarizeRequest struct {
	Question  string
	Rows      []map[string]any
	RowCount  int
	Truncated bool
}

// Summary is the structured summarization result.
type Summary struct {
	Summary        string   `json:"summary"`
	Insights       []string `json:"key_insights"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// Summarizer turns a retrieved row set into a narrative summary with
// insights and an optional recommendation.
type Summarizer struct {
	model  TextModel
	logger *slog.Logger
}

// NewSummarizer creates the summarization adapter.
func NewSummarizer(model TextModel, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{model: model, logger: logger}
}

const summarizerSystemPrompt = `You are a financial transaction analyst for crypto-to-fiat payment processing.
Transactions move through a 17-step flow from PaymentInitiated to SettlementConfirmed;
success means the flow ends with SettlementConfirmed, failure means it stopped earlier.

Analyze the retrieved data and respond with JSON:
{"summary": "...", "key_insights": ["..."], "recommendation": "..."}

- summary: clear findings for technical and business stakeholders
- key_insights: the important patterns, rates, and anomalies in the data
- recommendation: actionable next step, or omit if there is none

Be concise but thorough. Preserve numerical values exactly as given.`

// Summarize narrates the row set. An empty result set produces a
// coherent "no matching records" narrative without a model call; any
// model failure returns *SummarizationError, which callers treat as
// non-fatal.
func (s *Summarizer) Summarize(ctx context.Context, req SummarizeRequest) (*Summary, error) {
	if len(req.Rows) == 0 {
		return &Summary{
			Summary:        "No records found matching the query criteria.",
			Insights:       []string{},
			Recommendation: "Try adjusting the search parameters or verify the transaction identifiers.",
		}, nil
	}

	user, err := s.buildUserPrompt(req)
	if err != nil {
		return nil, &SummarizationError{Err: err}
	}

	raw, err := s.model.GenerateText(ctx, summarizerSystemPrompt, user)
	if err != nil {
		return nil, &SummarizationError{Err: err}
	}

	result, err := parseSummary(raw)
	if err != nil {
		s.logger.Warn("unparseable summarization output", "error", err)
		return nil, &SummarizationError{Err: err}
	}

	return result, nil
}

func (s *Summarizer) buildUserPrompt(req SummarizeRequest) (string, error) {
	shown := req.Rows
	if len(shown) > maxRowsInPrompt {
		shown = shown[:maxRowsInPrompt]
	}

	data, err := json.Marshal(shown)
	if err != nil {
		return "", fmt.Errorf("serializing rows for prompt: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Original question: %s\n", req.Question)
	fmt.Fprintf(&b, "Retrieved %d rows", req.RowCount)
	if req.Truncated {
		b.WriteString(" (result set was truncated at the row cap)")
	}
	if len(shown) < len(req.Rows) || len(req.Rows) < req.RowCount {
		fmt.Fprintf(&b, ", showing the first %d", len(shown))
	}
	b.WriteString(":\n")
	b.Write(data)
	b.WriteString("\nAnalyze this data in the context of the question.")
	return b.String(), nil
}

func parseSummary(raw string) (*Summary, error) {
	cleaned := stripCodeFences(raw)

	var result Summary
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("decoding summarization output: %w", err)
	}
	if strings.TrimSpace(result.Summary) == "" {
		return nil, fmt.Errorf("summarization output has no summary")
	}
	if result.Insights == nil {
		result.Insights = []string{}
	}
	return &result, nil
}
