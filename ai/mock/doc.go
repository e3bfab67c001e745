// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.LLM, ai.Embedder and
// ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	llm := mock.NewMockLLM()
//	llm.CompleteFunc = func(ctx context.Context, prompt string, maxTokens int) (string, error) {
//	    return `{"intent":"factual","entities":[]}`, nil
//	}
//
//	// Check call counts and recorded prompts
//	count := llm.CallCount()
//	prompts := llm.Prompts()
//
// # Default Behavior
//
//   - MockLLM: returns an empty JSON object
//   - MockEmbedder: returns deterministic vectors based on text hash
//   - MockProvider: aggregates a mock LLM and embedder
package mock
