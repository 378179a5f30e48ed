// Package testutil provides shared test helpers, mocks, and fixtures for claimpilot tests.
package testutil

import (
	"context"
	"sync"

	"github.com/dativo-io/claimpilot/internal/llm"
)

// MockProvider implements llm.Provider for tests without live API calls.
// When Content is empty, Generate returns "mock response". Set Err to
// simulate provider failures. CallCount tracks real (non-cached) calls.
type MockProvider struct {
	mu           sync.Mutex
	ProviderName string // provider identifier, e.g. "openai"
	Content      string // canned response; empty = "mock response"
	InputTokens  int    // usage reported per call; 0 = 10
	OutputTokens int    // usage reported per call; 0 = 20
	Err          error  // if set, Generate returns this error
	CallCount    int    // incremented on each Generate call
}

// Name returns the provider identifier (implements llm.Provider).
func (m *MockProvider) Name() string {
	if m.ProviderName == "" {
		return "mock"
	}
	return m.ProviderName
}

// Generate returns a canned response or the configured error.
func (m *MockProvider) Generate(_ context.Context, req *llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.CallCount++
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	content := m.Content
	if content == "" {
		content = "mock response"
	}
	in, out := m.InputTokens, m.OutputTokens
	if in == 0 {
		in = 10
	}
	if out == 0 {
		out = 20
	}
	return &llm.Response{
		Content:      content,
		FinishReason: "stop",
		InputTokens:  in,
		OutputTokens: out,
		Model:        req.Model,
	}, nil
}

// Calls returns the number of Generate calls made so far.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}
