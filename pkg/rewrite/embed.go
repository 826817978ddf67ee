package rewrite

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/kittclouds/textloom/pkg/buffer"
)

type embedClient interface {
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// NewEmbedFn returns a buffer.EmbedFn backed by the OpenAI embeddings
// API. An empty model defaults to text-embedding-3-small.
func NewEmbedFn(apiKey, model string) buffer.EmbedFn {
	return newEmbedFn(openai.NewClient(apiKey), model)
}

func newEmbedFn(client embedClient, model string) buffer.EmbedFn {
	embeddingModel := openai.SmallEmbedding3
	if model != "" {
		embeddingModel = openai.EmbeddingModel(model)
	}
	return func(ctx context.Context, text string) ([]float32, error) {
		resp, err := client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: embeddingModel,
		})
		if err != nil {
			return nil, fmt.Errorf("rewrite: create embedding: %w", err)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("rewrite: embedding response carries no data")
		}
		return resp.Data[0].Embedding, nil
	}
}
