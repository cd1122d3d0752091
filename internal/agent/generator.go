package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// TurnContext is the fragment of a prior conversation turn fed back into
// the generation prompt. The orchestrator bounds how many are passed.
type TurnContext struct {
	Question  string
	Statement string
	Summary   string
}

// GenerateRequest carries everything the generation prompt embeds.
type GenerateRequest struct {
	Question string
	Schema   string // Rendered schema catalog block
	Prior    []TurnContext

	// FailureHint carries the store's error message when the
	// orchestrator asks for one regeneration after a failed execution.
	FailureHint string
}

// GeneratedQuery is the structured generation result.
type GeneratedQuery struct {
	Statement   string `json:"sql_query"`
	Explanation string `json:"explanation"`
}

// Generator translates a natural-language question into a SQL statement
// plus explanation. It never executes anything.
type Generator struct {
	model  TextModel
	logger *slog.Logger
}

// NewGenerator creates the generation adapter.
func NewGenerator(model TextModel, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{model: model, logger: logger}
}

const generatorSystemPrompt = `You are an expert PostgreSQL analyst for a crypto-to-fiat payment platform.
You answer questions about a single 'transactions' table whose columns are listed below.
These are the ONLY columns that exist. Never reference computed columns from earlier
queries (such as final_status) as if they were real table columns; recreate them with a
CASE expression in each query.

The 'timestamp' column is stored as TEXT. ALWAYS cast it with ::timestamptz for
comparisons and ordering, e.g. WHERE timestamp::timestamptz >= NOW() - INTERVAL '7 days'.

A transaction is SUCCESSFUL when its latest event is 'SettlementConfirmed' and FAILED
otherwise. When a row carries error_code or error_message, those describe the failure.

Rules:
- Produce exactly ONE self-contained read-only SELECT (or WITH ... SELECT) statement.
- No data or schema modification of any kind, no comments, no multiple statements.
- Include an explicit LIMIT.

Respond with JSON: {"sql_query": "...", "explanation": "..."} where explanation is the
reasoning behind the query construction.

Available columns:
%s`

// Generate builds the prompt, invokes the model once (plus the client's
// bounded retry), and parses the structured result. Failures are always
// *GenerationError with a distinct reason.
func (g *Generator) Generate(ctx context.Context, req GenerateRequest) (*GeneratedQuery, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, &GenerationError{Reason: ReasonMalformedOutput, Err: fmt.Errorf("empty question")}
	}

	system := fmt.Sprintf(generatorSystemPrompt, req.Schema)
	user := g.buildUserPrompt(req)

	raw, err := g.model.GenerateText(ctx, system, user)
	if err != nil {
		return nil, &GenerationError{Reason: ReasonUnavailable, Err: err}
	}

	result, err := parseGenerated(raw)
	if err != nil {
		g.logger.Warn("unparseable generation output", "error", err)
		return nil, &GenerationError{Reason: ReasonMalformedOutput, Err: err}
	}

	g.logger.Debug("query generated", "statement_len", len(result.Statement))
	return result, nil
}

func (g *Generator) buildUserPrompt(req GenerateRequest) string {
	var b strings.Builder

	if len(req.Prior) > 0 {
		b.WriteString("Previous turns in this conversation (oldest first):\n")
		for _, turn := range req.Prior {
			fmt.Fprintf(&b, "Q: %s\n", turn.Question)
			if turn.Statement != "" {
				fmt.Fprintf(&b, "SQL: %s\n", turn.Statement)
			}
			if turn.Summary != "" {
				fmt.Fprintf(&b, "A: %s\n", turn.Summary)
			}
		}
		b.WriteString("\n")
	}

	if req.FailureHint != "" {
		fmt.Fprintf(&b, "The previous attempt failed with: %s\nGenerate a corrected query.\n\n", req.FailureHint)
	}

	fmt.Fprintf(&b, "User question: %s\n", req.Question)
	b.WriteString("Generate a PostgreSQL query that answers it.")
	return b.String()
}

// parseGenerated decodes the model's JSON answer, tolerating markdown
// code fences around it.
func parseGenerated(raw string) (*GeneratedQuery, error) {
	cleaned := stripCodeFences(raw)

	var result GeneratedQuery
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("decoding generation output: %w", err)
	}
	if strings.TrimSpace(result.Statement) == "" {
		return nil, fmt.Errorf("generation output has no sql_query")
	}
	return &result, nil
}

// stripCodeFences removes a surrounding ```json ... ``` block if present.
func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
