package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// LLM is a text completion service.
// Implementations must be thread-safe for concurrent use.
type LLM interface {
	// Complete sends prompt to the model and returns the generated text.
	// maxTokens bounds the length of the generated text.
	// Errors should wrap ErrTimeout, ErrRateLimited, ErrProvider or
	// ErrMalformedResponse so callers can tell them apart.
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)

	// ContextWindow returns the total number of tokens the model accepts.
	ContextWindow() int

	// CountTokens estimates the number of tokens text occupies.
	CountTokens(text string) int
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// LLM returns the completion service.
	// The returned LLM is safe for concurrent use.
	LLM() LLM

	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}

// ApproximateTokens estimates token counts at roughly four bytes per token.
// It is used when no tokenizer is available for a model.
func ApproximateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}
