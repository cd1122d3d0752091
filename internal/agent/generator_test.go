package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/paymentops/copilot/internal/log"
)

// fakeModel implements TextModel with canned responses.
type fakeModel struct {
	response   string
	err        error
	calls      int
	lastSystem string
	lastUser   string
}

func (f *fakeModel) GenerateText(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestGenerator_Generate(t *testing.T) {
	model := &fakeModel{
		response: `{"sql_query": "SELECT * FROM transactions LIMIT 10", "explanation": "lists recent transactions"}`,
	}
	g := NewGenerator(model, log.NewNop())

	result, err := g.Generate(context.Background(), GenerateRequest{
		Question: "Show me recent transactions",
		Schema:   "- transaction_id (identity): string - Unique transaction identifier\n",
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.Statement != "SELECT * FROM transactions LIMIT 10" {
		t.Errorf("Statement = %q", result.Statement)
	}
	if result.Explanation != "lists recent transactions" {
		t.Errorf("Explanation = %q", result.Explanation)
	}

	// Schema catalog is embedded verbatim in the system prompt.
	if !strings.Contains(model.lastSystem, "Unique transaction identifier") {
		t.Error("system prompt missing schema description")
	}
	if !strings.Contains(model.lastUser, "Show me recent transactions") {
		t.Error("user prompt missing the question")
	}
}

func TestGenerator_ToleratesCodeFences(t *testing.T) {
	model := &fakeModel{
		response: "```json\n{\"sql_query\": \"SELECT 1 LIMIT 1\", \"explanation\": \"x\"}\n```",
	}
	g := NewGenerator(model, log.NewNop())

	result, err := g.Generate(context.Background(), GenerateRequest{Question: "q", Schema: "s"})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if result.Statement != "SELECT 1 LIMIT 1" {
		t.Errorf("Statement = %q", result.Statement)
	}
}

func TestGenerator_PriorTurnsAndFailureHintInPrompt(t *testing.T) {
	model := &fakeModel{
		response: `{"sql_query": "SELECT 1 LIMIT 1", "explanation": "x"}`,
	}
	g := NewGenerator(model, log.NewNop())

	_, err := g.Generate(context.Background(), GenerateRequest{
		Question: "And how many failed?",
		Schema:   "s",
		Prior: []TurnContext{
			{Question: "Show transactions for usr_42", Statement: "SELECT * FROM transactions LIMIT 10", Summary: "Found 10 rows"},
		},
		FailureHint: `column "final_status" does not exist`,
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}

	for _, want := range []string{"Show transactions for usr_42", "Found 10 rows", "final_status", "And how many failed?"} {
		if !strings.Contains(model.lastUser, want) {
			t.Errorf("user prompt missing %q:\n%s", want, model.lastUser)
		}
	}
}

func TestGenerator_MalformedOutput(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "here is your query: SELECT 1"},
		{"missing statement", `{"explanation": "no query field"}`},
		{"empty statement", `{"sql_query": "  ", "explanation": "x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(&fakeModel{response: tt.response}, log.NewNop())

			_, err := g.Generate(context.Background(), GenerateRequest{Question: "q", Schema: "s"})
			var genErr *GenerationError
			if !errors.As(err, &genErr) {
				t.Fatalf("Generate() = %v, want *GenerationError", err)
			}
			if genErr.Reason != ReasonMalformedOutput {
				t.Errorf("Reason = %s, want %s", genErr.Reason, ReasonMalformedOutput)
			}
		})
	}
}

func TestGenerator_ServiceUnavailable(t *testing.T) {
	g := NewGenerator(&fakeModel{err: errors.New("503 service unavailable")}, log.NewNop())

	_, err := g.Generate(context.Background(), GenerateRequest{Question: "q", Schema: "s"})
	var genErr *GenerationError
	if !errors.As(err, &genErr) {
		t.Fatalf("Generate() = %v, want *GenerationError", err)
	}
	if genErr.Reason != ReasonUnavailable {
		t.Errorf("Reason = %s, want %s", genErr.Reason, ReasonUnavailable)
	}
}

func TestGenerator_EmptyQuestion(t *testing.T) {
	model := &fakeModel{response: `{"sql_query": "SELECT 1", "explanation": "x"}`}
	g := NewGenerator(model, log.NewNop())

	_, err := g.Generate(context.Background(), GenerateRequest{Question: "   ", Schema: "s"})
	if err == nil {
		t.Fatal("Generate() with empty question succeeded, want error")
	}
	if model.calls != 0 {
		t.Errorf("model called %d times for an empty question", model.calls)
	}
}
