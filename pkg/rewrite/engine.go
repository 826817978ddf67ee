// Package rewrite implements the persona rewrite engine and embedding
// function on top of an OpenAI-compatible chat API.
package rewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/kittclouds/textloom/pkg/buffer"
)

// RetryPolicy bounds how RewriteWithRetry handles transient failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	// PerAttemptTimeout caps each individual call. Zero means no cap
	// beyond the caller's context.
	PerAttemptTimeout time.Duration
	// Backoff is the wait after the first failure; it doubles per retry.
	Backoff time.Duration
}

// DefaultRetryPolicy retries twice with a short growing backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:       3,
		PerAttemptTimeout: 60 * time.Second,
		Backoff:           500 * time.Millisecond,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	return p
}

// chatClient is the slice of the OpenAI client the engine needs.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Engine rewrites buffer text in a persona's voice through a chat
// model. It implements buffer.RewriteEngine.
type Engine struct {
	client chatClient
	model  string
	retry  RetryPolicy
	log    *slog.Logger
}

var _ buffer.RewriteEngine = (*Engine)(nil)

// NewEngine builds an engine against the OpenAI API.
func NewEngine(apiKey, model string, retry RetryPolicy, logger *slog.Logger) *Engine {
	if model == "" {
		model = openai.GPT4oMini
	}
	return newEngine(openai.NewClient(apiKey), model, retry, logger)
}

func newEngine(client chatClient, model string, retry RetryPolicy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		client: client,
		model:  model,
		retry:  retry.normalized(),
		log:    logger,
	}
}

// rewritePayload is the JSON shape the model is asked to produce.
type rewritePayload struct {
	Rewritten       string   `json:"rewritten"`
	ChangesApplied  []string `json:"changesApplied"`
	ConfidenceScore float64  `json:"confidenceScore"`
}

// RewriteWithRetry calls the chat model under the engine's retry
// policy. It returns only after the call succeeded or every attempt is
// exhausted.
func (e *Engine) RewriteWithRetry(ctx context.Context, req buffer.RewriteRequest) (*buffer.RewriteResult, error) {
	if req.Persona == nil {
		return nil, fmt.Errorf("rewrite: request carries no persona")
	}

	chatReq := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(req.Persona, req.Style)},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(req)},
		},
	}

	var content string
	err := withRetry(ctx, e.retry, func(attemptCtx context.Context) error {
		resp, err := e.client.CreateChatCompletion(attemptCtx, chatReq)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("model returned no choices")
		}
		content = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	return parseResult(content), nil
}

// parseResult decodes the model's JSON answer, falling back to treating
// the whole reply as rewritten text when the model ignored the format.
func parseResult(content string) *buffer.RewriteResult {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var payload rewritePayload
	if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.Rewritten != "" {
		return &buffer.RewriteResult{
			Rewritten:       payload.Rewritten,
			ChangesApplied:  payload.ChangesApplied,
			ConfidenceScore: payload.ConfidenceScore,
		}
	}
	return &buffer.RewriteResult{
		Rewritten:       trimmed,
		ConfidenceScore: 0.5,
	}
}

func buildSystemPrompt(persona *buffer.PersonaProfile, style *buffer.StyleProfile) string {
	var b strings.Builder
	b.WriteString("You rewrite text in the voice of a specific persona.\n")
	b.WriteString("Persona: " + persona.Name + "\n")
	if persona.Description != "" {
		b.WriteString("Description: " + persona.Description + "\n")
	}
	if persona.Tone != "" {
		b.WriteString("Tone: " + persona.Tone + "\n")
	}
	if len(persona.Traits) > 0 {
		b.WriteString("Traits: " + strings.Join(persona.Traits, ", ") + "\n")
	}
	if persona.Instructions != "" {
		b.WriteString("Instructions: " + persona.Instructions + "\n")
	}
	if style != nil {
		b.WriteString("Style guide (" + style.Name + "): " + style.Guidelines + "\n")
		for _, sample := range style.Samples {
			b.WriteString("Style sample: " + sample + "\n")
		}
	}
	b.WriteString("Preserve meaning and factual content. Respond with JSON: ")
	b.WriteString(`{"rewritten": "...", "changesApplied": ["..."], "confidenceScore": 0.0}`)
	return b.String()
}

func buildUserPrompt(req buffer.RewriteRequest) string {
	if req.SourceType != "" {
		return "Source format: " + req.SourceType + "\n\n" + req.Text
	}
	return req.Text
}

// withRetry runs fn under the policy, doubling the backoff between
// attempts. A parent context cancellation stops retrying immediately.
func withRetry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	policy = policy.normalized()

	var lastErr error
	backoff := policy.Backoff
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if policy.PerAttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.PerAttemptTimeout)
		}
		err := fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == policy.MaxAttempts {
			break
		}
		if backoff > 0 {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", policy.MaxAttempts, lastErr)
}
