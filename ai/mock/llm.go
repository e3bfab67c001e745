package mock

import (
	"context"
	"sync"

	"github.com/poiesic/kinfolk/ai"
)

// MockLLM is a test double for ai.LLM.
// It records every prompt it receives and answers via CompleteFunc.
type MockLLM struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns "{}".
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)

	// Window is returned by ContextWindow. Zero means 8192.
	Window int

	mu      sync.Mutex
	prompts []string
}

var _ ai.LLM = (*MockLLM)(nil)

// NewMockLLM creates a mock LLM with default behavior.
func NewMockLLM() *MockLLM {
	return &MockLLM{}
}

// Complete records the prompt and delegates to CompleteFunc.
func (m *MockLLM) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, maxTokens)
	}
	return "{}", nil
}

// ContextWindow returns Window, defaulting to 8192.
func (m *MockLLM) ContextWindow() int {
	if m.Window > 0 {
		return m.Window
	}
	return 8192
}

// CountTokens uses the four-bytes-per-token approximation.
func (m *MockLLM) CountTokens(text string) int {
	return ai.ApproximateTokens(text)
}

// CallCount returns the number of Complete calls.
func (m *MockLLM) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// Prompts returns a copy of every prompt received, in call order.
func (m *MockLLM) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// Reset clears recorded prompts and injected behavior.
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.CompleteFunc = nil
}
