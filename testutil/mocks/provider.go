// Package mocks provides scripted test doubles for the agent's
// collaborator interfaces. All mocks are safe for concurrent use and
// record their calls for assertion.
package mocks

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/suviet/agent/llm"
)

// MockProvider is a scripted llm.Provider. Responses are consumed in
// FIFO order; once the script is exhausted it keeps returning the last
// response, which lets a test script only the turns it cares about.
type MockProvider struct {
	mu sync.Mutex

	responses []string
	errs      []error

	// Requests records every ChatRequest seen, in call order.
	Requests []*llm.ChatRequest
}

// NewMockProvider creates an empty provider; script it with Queue.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// Queue appends a successful response to the script.
func (m *MockProvider) Queue(response string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, response)
	m.errs = append(m.errs, nil)
	return m
}

// QueueError appends a failing call to the script.
func (m *MockProvider) QueueError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, "")
	m.errs = append(m.errs, err)
	return m
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return "mock" }

// Complete implements llm.Provider.
func (m *MockProvider) Complete(ctx context.Context, req *llm.ChatRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.next(req)
}

// CompleteStructured implements llm.Provider.
func (m *MockProvider) CompleteStructured(ctx context.Context, req *llm.ChatRequest, out any) error {
	raw, err := m.Complete(ctx, req)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(llm.ExtractJSON(raw)), out)
}

// Calls returns how many completions have been requested.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

func (m *MockProvider) next(req *llm.ChatRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)
	idx := len(m.Requests) - 1
	if idx >= len(m.responses) {
		if len(m.responses) == 0 {
			return "", nil
		}
		idx = len(m.responses) - 1
	}
	return m.responses[idx], m.errs[idx]
}
