// Package agent wraps the two language-model calls of the pipeline:
// structured-query generation and result summarization.
//
// Both adapters are pure translation steps over a shared Gemini client.
// They never touch either data store; their output is untrusted input to
// the safety gate and the response envelope respectively. The external
// service is treated as unreliable: every call carries a deadline, a
// rate-limiter wait, and a bounded retry with exponential backoff.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// TextModel is the narrow model interface both adapters consume. The
// production implementation is Gemini; tests substitute a fake.
type TextModel interface {
	// GenerateText runs one completion-style request and returns the raw
	// model output. The model is instructed to answer in JSON.
	GenerateText(ctx context.Context, system, user string) (string, error)
}

// GeminiConfig configures the shared Gemini client.
type GeminiConfig struct {
	APIKey      string
	Model       string
	Temperature float32
	Timeout     time.Duration // Per-attempt deadline
	Retry       RetryConfig
	RateLimit   float64 // Requests per second; 0 disables limiting
	RateBurst   int
}

// Gemini is the production TextModel over google.golang.org/genai.
// Safe for concurrent use.
type Gemini struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	retry       RetryConfig
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewGemini creates the shared Gemini client.
func NewGemini(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Gemini{
		client:      client,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout,
		retry:       cfg.Retry,
		limiter:     limiter,
		logger:      logger,
	}, nil
}

// GenerateText implements TextModel with rate limiting and a bounded
// retry. Requests JSON output so adapter parsing stays deterministic.
func (g *Gemini) GenerateText(ctx context.Context, system, user string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(user, genai.RoleUser),
	}

	temp := g.temperature
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}

	var lastErr error
	delay := g.retry.InitialInterval
	start := time.Now()

	for attempt := 0; attempt <= g.retry.MaxRetries; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, g.timeout)
		resp, err := g.client.Models.GenerateContent(attemptCtx, g.model, contents, cfg)
		cancel()
		if err == nil {
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("model returned empty response")
			}
			g.logger.Debug("model call succeeded",
				"model", g.model,
				"attempts", attempt+1,
				"elapsed", time.Since(start),
			)
			return text, nil
		}

		lastErr = err
		if !retryableError(err) {
			return "", fmt.Errorf("generate content: %w", err)
		}
		if attempt == g.retry.MaxRetries {
			break
		}

		g.logger.Debug("retrying model call",
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("generate content canceled: %w", ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > g.retry.MaxInterval {
			delay = g.retry.MaxInterval
		}
	}

	return "", fmt.Errorf("generate content after %d attempts: %w", g.retry.MaxRetries+1, lastErr)
}
