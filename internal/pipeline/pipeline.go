// Package pipeline orchestrates one question/answer turn: query
// generation, gated execution, summarization, and best-effort
// persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paymentops/copilot/internal/agent"
	"github.com/paymentops/copilot/internal/chatstore"
	"github.com/paymentops/copilot/internal/query"
)

// Generator produces a SQL statement for a natural-language question.
type Generator interface {
	Generate(ctx context.Context, req agent.GenerateRequest) (*agent.GeneratedQuery, error)
}

// Summarizer narrates a retrieved result set.
type Summarizer interface {
	Summarize(ctx context.Context, req agent.SummarizeRequest) (*agent.Summary, error)
}

// StatementRunner validates and executes a statement against the
// transactional store.
type StatementRunner interface {
	Run(ctx context.Context, statement string) (*query.Result, error)
}

// TurnStore persists turns and serves prior-turn context. Satisfied by
// *chatstore.Store, including its degraded states.
type TurnStore interface {
	Append(ctx context.Context, conversationID uuid.UUID, question string, envelope []byte) (uuid.UUID, error)
	RecentTurns(ctx context.Context, conversationID uuid.UUID, n int) ([]chatstore.Turn, error)
}

// Request is one incoming question.
type Request struct {
	Question string
	// ConversationID threads a follow-up question onto an existing
	// conversation. Empty starts a new one.
	ConversationID string
}

// Response is the uniform answer envelope. Every accepted request gets
// one, fatal failures included.
type Response struct {
	Success        bool             `json:"success"`
	ConversationID string           `json:"chat_id"`
	Question       string           `json:"query"`
	Statement      string           `json:"sql_query,omitempty"`
	Explanation    string           `json:"explanation,omitempty"`
	Rows           []map[string]any `json:"data"`
	Summary        string           `json:"summary,omitempty"`
	Insights       []string         `json:"insights,omitempty"`
	Recommendation string           `json:"recommendation,omitempty"`
	RecordCount    int              `json:"record_count"`
	Truncated      bool             `json:"truncated,omitempty"`

	// ExecutionTimeMs covers the whole turn, not just store execution.
	ExecutionTimeMs int64 `json:"execution_time_ms"`

	ErrorKind string `json:"error_kind,omitempty"`
	Error     string `json:"error,omitempty"`

	// Degraded lists non-fatal stages that fell back: "summary" when
	// summarization failed and a placeholder was used, "persistence"
	// when the turn could not be stored.
	Degraded []string `json:"degraded,omitempty"`
}

// Error kinds surfaced in failure envelopes.
const (
	KindGenerationFailure = "generation_failure"
	KindUnsafeStatement   = "unsafe_statement"
	KindExecutionFailure  = "execution_failure"
	KindInvalidRequest    = "invalid_request"
)

// Config bounds the pipeline.
type Config struct {
	// HistoryTurns is how many prior turns of the conversation are fed
	// back into the generation prompt.
	HistoryTurns int
}

// Pipeline wires the stages together. Safe for concurrent use.
type Pipeline struct {
	generator    Generator
	summarizer   Summarizer
	runner       StatementRunner
	turns        TurnStore
	schemaBlock  string
	historyTurns int
	logger       *slog.Logger
}

// New creates a Pipeline. schemaBlock is the rendered column catalog
// embedded into every generation prompt.
func New(g Generator, s Summarizer, r StatementRunner, t TurnStore, schemaBlock string, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 8
	}
	return &Pipeline{
		generator:    g,
		summarizer:   s,
		runner:       r,
		turns:        t,
		schemaBlock:  schemaBlock,
		historyTurns: cfg.HistoryTurns,
		logger:       logger,
	}
}

// storedEnvelope is the slice of a persisted response needed to rebuild
// prompt context for follow-up questions.
type storedEnvelope struct {
	Statement string `json:"sql_query"`
	Summary   string `json:"summary"`
}

// Ask runs one full turn. The returned Response is always non-nil; the
// error return is reserved for request-independent failures and is
// currently always nil, keeping the HTTP and CLI surfaces uniform.
func (p *Pipeline) Ask(ctx context.Context, req Request) *Response {
	start := time.Now()

	resp := &Response{
		Question: req.Question,
		Rows:     []map[string]any{},
	}

	conversationID, err := parseConversationID(req.ConversationID)
	if err != nil {
		resp.ErrorKind = KindInvalidRequest
		resp.Error = err.Error()
		resp.ExecutionTimeMs = time.Since(start).Milliseconds()
		return resp
	}
	if conversationID == uuid.Nil {
		conversationID = uuid.New()
	}
	resp.ConversationID = conversationID.String()

	prior := p.loadPriorTurns(ctx, conversationID, req.ConversationID != "")

	generated, result, genErr := p.generateAndRun(ctx, req.Question, prior)
	if generated != nil {
		resp.Statement = generated.Statement
		resp.Explanation = generated.Explanation
	}
	if genErr != nil {
		p.failWith(resp, genErr)
		resp.ExecutionTimeMs = time.Since(start).Milliseconds()
		return resp
	}

	resp.Success = true
	resp.Rows = result.Rows
	resp.RecordCount = len(result.Rows)
	resp.Truncated = result.Truncated

	summary, sumErr := p.summarizer.Summarize(ctx, agent.SummarizeRequest{
		Question:  req.Question,
		Rows:      result.Rows,
		RowCount:  len(result.Rows),
		Truncated: result.Truncated,
	})
	if sumErr != nil {
		p.logger.Warn("summarization failed, using placeholder",
			"conversation_id", resp.ConversationID, "error", sumErr)
		summary = placeholderSummary()
		resp.Degraded = append(resp.Degraded, "summary")
	}
	resp.Summary = summary.Summary
	resp.Insights = summary.Insights
	resp.Recommendation = summary.Recommendation

	resp.ExecutionTimeMs = time.Since(start).Milliseconds()

	p.persist(ctx, conversationID, req.Question, resp)
	return resp
}

// generateAndRun produces a statement and executes it, allowing exactly
// one regeneration when the first statement is rejected by the gate or
// fails execution in a retryable way.
func (p *Pipeline) generateAndRun(ctx context.Context, question string, prior []agent.TurnContext) (*agent.GeneratedQuery, *query.Result, error) {
	genReq := agent.GenerateRequest{
		Question: question,
		Schema:   p.schemaBlock,
		Prior:    prior,
	}

	generated, err := p.generate(ctx, genReq)
	if err != nil {
		return nil, nil, err
	}

	result, err := p.runner.Run(ctx, generated.Statement)
	if err == nil {
		return generated, result, nil
	}
	if !regenerationWorthwhile(err) {
		return generated, nil, err
	}

	p.logger.Info("statement failed, regenerating once",
		"error", err, "statement", generated.Statement)

	genReq.FailureHint = err.Error()
	regenerated, genErr := p.generate(ctx, genReq)
	if genErr != nil {
		// Surface the original execution failure, not the retry's
		// generation failure.
		return generated, nil, err
	}

	result, err = p.runner.Run(ctx, regenerated.Statement)
	if err != nil {
		return regenerated, nil, err
	}
	return regenerated, result, nil
}

// generate invokes the generator, retrying once when the model answered
// but the answer could not be parsed. Service-unavailable failures are
// not retried here; the client already spent its backoff budget.
func (p *Pipeline) generate(ctx context.Context, req agent.GenerateRequest) (*agent.GeneratedQuery, error) {
	generated, err := p.generator.Generate(ctx, req)
	if err == nil {
		return generated, nil
	}

	var genErr *agent.GenerationError
	if !errors.As(err, &genErr) || genErr.Reason != agent.ReasonMalformedOutput {
		return nil, err
	}

	p.logger.Info("unparseable generation output, retrying once", "error", err)
	return p.generator.Generate(ctx, req)
}

// regenerationWorthwhile reports whether one more generation attempt
// could plausibly fix the failure.
func regenerationWorthwhile(err error) bool {
	var unsafeErr *query.UnsafeStatementError
	if errors.As(err, &unsafeErr) {
		return true
	}
	var execErr *query.ExecError
	if errors.As(err, &execErr) {
		return execErr.Retryable()
	}
	return false
}

// loadPriorTurns fetches conversation context best-effort. continuing
// distinguishes a real follow-up from a freshly minted conversation,
// which has nothing to load.
func (p *Pipeline) loadPriorTurns(ctx context.Context, conversationID uuid.UUID, continuing bool) []agent.TurnContext {
	if !continuing {
		return nil
	}

	turns, err := p.turns.RecentTurns(ctx, conversationID, p.historyTurns)
	if err != nil {
		p.logger.Warn("failed to load conversation history, answering without it",
			"conversation_id", conversationID, "error", err)
		return nil
	}

	prior := make([]agent.TurnContext, 0, len(turns))
	for _, t := range turns {
		tc := agent.TurnContext{Question: t.Question}
		var env storedEnvelope
		if err := json.Unmarshal(t.Envelope, &env); err == nil {
			tc.Statement = env.Statement
			tc.Summary = env.Summary
		}
		prior = append(prior, tc)
	}
	return prior
}

// persist stores the finished turn. Failures are logged and marked, not
// raised; a cancelled request is not persisted.
func (p *Pipeline) persist(ctx context.Context, conversationID uuid.UUID, question string, resp *Response) {
	if ctx.Err() != nil {
		p.logger.Debug("request cancelled, skipping persistence",
			"conversation_id", resp.ConversationID)
		resp.Degraded = append(resp.Degraded, "persistence")
		return
	}

	envelope, err := json.Marshal(resp)
	if err != nil {
		p.logger.Warn("failed to serialize turn for persistence",
			"conversation_id", resp.ConversationID, "error", err)
		resp.Degraded = append(resp.Degraded, "persistence")
		return
	}

	if _, err := p.turns.Append(ctx, conversationID, question, envelope); err != nil {
		p.logger.Warn("failed to persist turn",
			"conversation_id", resp.ConversationID, "error", err)
		resp.Degraded = append(resp.Degraded, "persistence")
	}
}

// failWith fills the failure fields from a typed pipeline error.
func (p *Pipeline) failWith(resp *Response, err error) {
	resp.Success = false
	resp.Error = err.Error()

	var genErr *agent.GenerationError
	var unsafeErr *query.UnsafeStatementError
	var execErr *query.ExecError
	switch {
	case errors.As(err, &genErr):
		resp.ErrorKind = KindGenerationFailure
	case errors.As(err, &unsafeErr):
		resp.ErrorKind = KindUnsafeStatement
	case errors.As(err, &execErr):
		resp.ErrorKind = KindExecutionFailure + ":" + string(execErr.Kind)
	default:
		resp.ErrorKind = KindExecutionFailure
	}

	p.logger.Error("turn failed",
		"conversation_id", resp.ConversationID,
		"kind", resp.ErrorKind,
		"error", err)
}

// placeholderSummary stands in when summarization fails after a
// successful retrieval.
func placeholderSummary() *agent.Summary {
	return &agent.Summary{
		Summary:        "Data was retrieved successfully, but summary generation failed.",
		Insights:       []string{},
		Recommendation: "Review the returned records directly.",
	}
}

func parseConversationID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.New("chat_id must be a UUID")
	}
	return id, nil
}
