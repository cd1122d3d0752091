package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paymentops/copilot/internal/log"
)

func TestSummarizer_Summarize(t *testing.T) {
	model := &fakeModel{
		response: `{"summary": "All 3 transactions settled.", "key_insights": ["100% success rate"], "recommendation": "No action needed"}`,
	}
	s := NewSummarizer(model, log.NewNop())

	rows := []map[string]any{
		{"transaction_id": "tx_1", "event_type": "SettlementConfirmed"},
		{"transaction_id": "tx_2", "event_type": "SettlementConfirmed"},
		{"transaction_id": "tx_3", "event_type": "SettlementConfirmed"},
	}
	result, err := s.Summarize(context.Background(), SummarizeRequest{
		Question: "Did my transactions settle?",
		Rows:     rows,
		RowCount: 3,
	})
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if result.Summary != "All 3 transactions settled." {
		t.Errorf("Summary = %q", result.Summary)
	}
	if len(result.Insights) != 1 || result.Insights[0] != "100% success rate" {
		t.Errorf("Insights = %v", result.Insights)
	}
	if result.Recommendation != "No action needed" {
		t.Errorf("Recommendation = %q", result.Recommendation)
	}

	if !strings.Contains(model.lastUser, "tx_2") {
		t.Error("prompt missing row data")
	}
	if !strings.Contains(model.lastUser, "Did my transactions settle?") {
		t.Error("prompt missing the original question")
	}
}

func TestSummarizer_EmptyRowsSkipsModelCall(t *testing.T) {
	model := &fakeModel{err: errors.New("must not be called")}
	s := NewSummarizer(model, log.NewNop())

	result, err := s.Summarize(context.Background(), SummarizeRequest{
		Question: "Show me all failed transactions from the last week",
		Rows:     nil,
		RowCount: 0,
	})
	if err != nil {
		t.Fatalf("Summarize() with empty rows = %v, want nil", err)
	}
	if model.calls != 0 {
		t.Errorf("model called %d times for an empty result set", model.calls)
	}
	if !strings.Contains(strings.ToLower(result.Summary), "no records found") {
		t.Errorf("Summary = %q, want a no-records narrative", result.Summary)
	}
	if len(result.Insights) != 0 {
		t.Errorf("Insights = %v, want none for an empty result set", result.Insights)
	}
}

func TestSummarizer_TruncatesRowsInPrompt(t *testing.T) {
	rows := make([]map[string]any, maxRowsInPrompt+25)
	for i := range rows {
		rows[i] = map[string]any{"n": i}
	}
	model := &fakeModel{response: `{"summary": "big set", "key_insights": []}`}
	s := NewSummarizer(model, log.NewNop())

	_, err := s.Summarize(context.Background(), SummarizeRequest{
		Question: "q",
		Rows:     rows,
		RowCount: len(rows),
	})
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if !strings.Contains(model.lastUser, "showing the first 50") {
		t.Errorf("prompt should note row truncation:\n%s", model.lastUser[:200])
	}
}

func TestSummarizer_MarksCappedResults(t *testing.T) {
	model := &fakeModel{response: `{"summary": "capped", "key_insights": []}`}
	s := NewSummarizer(model, log.NewNop())

	_, err := s.Summarize(context.Background(), SummarizeRequest{
		Question:  "q",
		Rows:      []map[string]any{{"n": 1}},
		RowCount:  1,
		Truncated: true,
	})
	if err != nil {
		t.Fatalf("Summarize() error: %v", err)
	}
	if !strings.Contains(model.lastUser, "truncated at the row cap") {
		t.Error("prompt should mention the row cap truncation")
	}
}

func TestSummarizer_FailureIsTyped(t *testing.T) {
	s := NewSummarizer(&fakeModel{err: errors.New("504 gateway timeout")}, log.NewNop())

	_, err := s.Summarize(context.Background(), SummarizeRequest{
		Question: "q",
		Rows:     []map[string]any{{"n": 1}},
		RowCount: 1,
	})
	var sumErr *SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("Summarize() = %v, want *SummarizationError", err)
	}
}

func TestSummarizer_MalformedOutputIsTyped(t *testing.T) {
	s := NewSummarizer(&fakeModel{response: "plain prose, not JSON"}, log.NewNop())

	_, err := s.Summarize(context.Background(), SummarizeRequest{
		Question: "q",
		Rows:     []map[string]any{{"n": 1}},
		RowCount: 1,
	})
	var sumErr *SummarizationError
	if !errors.As(err, &sumErr) {
		t.Fatalf("Summarize() = %v, want *SummarizationError", err)
	}
}

func TestRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.New("429 rate limit exceeded"), true},
		{errors.New("503 Service Unavailable"), true},
		{errors.New("connection reset by peer"), true},
		{errors.New("invalid api key"), false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := retryableError(tt.err); got != tt.want {
			t.Errorf("retryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
