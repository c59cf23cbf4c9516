package llm

import (
	"context"
	"errors"
	"sync"
)

// MockProvider is a testing implementation of Provider.
// Responses are returned in order; once exhausted, the last one repeats.
type MockProvider struct {
	mu        sync.Mutex
	Responses []ChatResponse
	Err       error
	ChatFunc  func(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	requests  []ChatRequest
}

// NewMockProvider returns a provider that answers with the given texts.
func NewMockProvider(contents ...string) *MockProvider {
	m := &MockProvider{}
	for _, c := range contents {
		m.Responses = append(m.Responses, ChatResponse{Content: c})
	}
	return m
}

// Chat records the request and returns the next scripted response.
func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	idx := len(m.requests) - 1
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Responses) == 0 {
		return nil, errors.New("mock: no responses configured")
	}
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	}
	resp := m.Responses[idx]
	if resp.Usage.TotalTokens == 0 {
		resp.Usage = Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20}
	}
	return &resp, nil
}

// Requests returns a copy of every request received.
func (m *MockProvider) Requests() []ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
