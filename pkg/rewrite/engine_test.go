package rewrite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittclouds/textloom/pkg/buffer"
)

// fakeChat fails the first failUntil calls, then answers with content.
type fakeChat struct {
	failUntil int
	calls     int
	content   string
	lastReq   openai.ChatCompletionRequest
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failUntil {
		return openai.ChatCompletionResponse{}, errors.New("transient upstream failure")
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func testRequest() buffer.RewriteRequest {
	return buffer.RewriteRequest{
		Text: "Hello there.",
		Persona: &buffer.PersonaProfile{
			ID:   "p1",
			Name: "Pirate",
			Tone: "boisterous",
		},
	}
}

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Backoff: time.Millisecond}
}

func TestRewriteParsesJSON(t *testing.T) {
	chat := &fakeChat{content: `{"rewritten": "Ahoy there!", "changesApplied": ["greeting"], "confidenceScore": 0.85}`}
	engine := newEngine(chat, "test-model", fastPolicy(1), nil)

	result, err := engine.RewriteWithRetry(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "Ahoy there!", result.Rewritten)
	assert.Equal(t, []string{"greeting"}, result.ChangesApplied)
	assert.InDelta(t, 0.85, result.ConfidenceScore, 1e-9)
	assert.Equal(t, 1, chat.calls)
}

func TestRewriteParsesFencedJSON(t *testing.T) {
	chat := &fakeChat{content: "```json\n{\"rewritten\": \"Arr.\", \"confidenceScore\": 0.7}\n```"}
	engine := newEngine(chat, "test-model", fastPolicy(1), nil)

	result, err := engine.RewriteWithRetry(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Arr.", result.Rewritten)
}

func TestRewritePlainTextFallback(t *testing.T) {
	chat := &fakeChat{content: "Ahoy, matey, here be plain text."}
	engine := newEngine(chat, "test-model", fastPolicy(1), nil)

	result, err := engine.RewriteWithRetry(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Ahoy, matey, here be plain text.", result.Rewritten)
	assert.InDelta(t, 0.5, result.ConfidenceScore, 1e-9)
}

func TestRewriteRetriesThenSucceeds(t *testing.T) {
	chat := &fakeChat{failUntil: 2, content: `{"rewritten": "third time lucky"}`}
	engine := newEngine(chat, "test-model", fastPolicy(3), nil)

	result, err := engine.RewriteWithRetry(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "third time lucky", result.Rewritten)
	assert.Equal(t, 3, chat.calls)
}

func TestRewriteExhaustsRetries(t *testing.T) {
	chat := &fakeChat{failUntil: 99}
	engine := newEngine(chat, "test-model", fastPolicy(3), nil)

	_, err := engine.RewriteWithRetry(context.Background(), testRequest())
	require.Error(t, err)
	assert.Equal(t, 3, chat.calls)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
}

func TestRewriteRequiresPersona(t *testing.T) {
	engine := newEngine(&fakeChat{}, "test-model", fastPolicy(1), nil)

	_, err := engine.RewriteWithRetry(context.Background(), buffer.RewriteRequest{Text: "x"})
	require.Error(t, err)
}

func TestRewriteStopsOnCanceledContext(t *testing.T) {
	chat := &fakeChat{failUntil: 99}
	engine := newEngine(chat, "test-model", RetryPolicy{MaxAttempts: 10, Backoff: 50 * time.Millisecond}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.RewriteWithRetry(ctx, testRequest())
	require.Error(t, err)
	assert.LessOrEqual(t, chat.calls, 1)
}

func TestSystemPromptCarriesStyle(t *testing.T) {
	chat := &fakeChat{content: `{"rewritten": "ok"}`}
	engine := newEngine(chat, "test-model", fastPolicy(1), nil)

	req := testRequest()
	req.Style = &buffer.StyleProfile{
		ID:         "s1",
		Name:       "Terse",
		Guidelines: "Short sentences only.",
	}
	_, err := engine.RewriteWithRetry(context.Background(), req)
	require.NoError(t, err)

	system := chat.lastReq.Messages[0].Content
	assert.Contains(t, system, "Pirate")
	assert.Contains(t, system, "Short sentences only.")
}

type fakeEmbedAPI struct {
	vec  []float32
	err  error
	last openai.EmbeddingRequest
}

func (f *fakeEmbedAPI) CreateEmbeddings(_ context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	if r, ok := req.(openai.EmbeddingRequest); ok {
		f.last = r
	}
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	return openai.EmbeddingResponse{
		Data: []openai.Embedding{{Embedding: f.vec}},
	}, nil
}

func TestEmbedFn(t *testing.T) {
	api := &fakeEmbedAPI{vec: []float32{0.1, 0.2, 0.3}}
	embed := newEmbedFn(api, "")

	vec, err := embed(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, openai.SmallEmbedding3, api.last.Model)
	assert.Equal(t, []string{"some text"}, api.last.Input)
}

func TestEmbedFnError(t *testing.T) {
	api := &fakeEmbedAPI{err: errors.New("quota exceeded")}
	embed := newEmbedFn(api, "custom-model")

	_, err := embed(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestWithRetryBackoffRespectsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := withRetry(ctx, RetryPolicy{MaxAttempts: 100, Backoff: time.Hour}, func(context.Context) error {
		calls++
		return errors.New("always fails")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, context.Canceled)
}
