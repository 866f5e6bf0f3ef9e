package llm

import "context"

// EmbeddingService binds a client to a fixed embedding model so consumers
// don't carry the model name around.
type EmbeddingService struct {
	client *Client
	model  string
}

// NewEmbeddingService builds an embedding service for one model.
func NewEmbeddingService(client *Client, model string) *EmbeddingService {
	return &EmbeddingService{client: client, model: model}
}

// Model returns the embedding model name.
func (s *EmbeddingService) Model() string {
	return s.model
}

// EmbedTexts returns one vector per input text.
func (s *EmbeddingService) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	return s.client.Embed(ctx, s.model, texts)
}
