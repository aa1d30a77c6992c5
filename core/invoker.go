package core

import (
	"context"
	"fmt"
	"sync"
)

// ToolSpec is the minimal tool description handed to a model provider.
type ToolSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// GenerateRequest carries one model invocation.
type GenerateRequest struct {
	Provider      string     `json:"provider"`
	Model         string     `json:"model"`
	Prompt        string     `json:"prompt"`
	SystemMessage string     `json:"system_message,omitempty"`
	Temperature   float64    `json:"temperature,omitempty"`
	MaxTokens     int        `json:"max_tokens,omitempty"`
	Tools         []ToolSpec `json:"tools,omitempty"`
}

// GenerateResponse is the provider's reply.
type GenerateResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// Invoker reaches the external model providers. Implementations are opaque,
// fallible and latency-bearing; the engine wraps every call with its cache,
// throttler and retry primitives.
type Invoker interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// MockInvoker is a deterministic in-memory Invoker for tests and examples.
// Replies are queued per model name and popped in order; unmatched requests
// fall back to a canned echo.
type MockInvoker struct {
	mu       sync.Mutex
	queues   map[string][]string
	fallback func(GenerateRequest) string
	requests []GenerateRequest
}

// NewMockInvoker constructs an empty mock.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{queues: make(map[string][]string)}
}

// Queue appends canned replies for requests targeting model.
func (m *MockInvoker) Queue(model string, replies ...string) *MockInvoker {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[model] = append(m.queues[model], replies...)
	return m
}

// SetFallback overrides the reply for requests with no queued response.
func (m *MockInvoker) SetFallback(fn func(GenerateRequest) string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fn
}

// Generate implements Invoker.
func (m *MockInvoker) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if q := m.queues[req.Model]; len(q) > 0 {
		reply := q[0]
		m.queues[req.Model] = q[1:]
		return &GenerateResponse{Content: reply, Model: req.Model}, nil
	}
	if m.fallback != nil {
		return &GenerateResponse{Content: m.fallback(req), Model: req.Model}, nil
	}
	return &GenerateResponse{Content: fmt.Sprintf("Mock response to: %s", req.Prompt), Model: req.Model}, nil
}

// Requests returns a copy of every request seen so far.
func (m *MockInvoker) Requests() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]GenerateRequest(nil), m.requests...)
}

// Calls returns how many requests the mock has served.
func (m *MockInvoker) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}
