// Package testutil provides shared test doubles and infrastructure
// helpers: a deterministic mock generator, a hash-based mock embedder
// and a disposable PostgreSQL container with the schema applied.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/pipeline"
)

// MockGenerator provides deterministic model responses for testing.
// It matches prompts against registered substrings and returns the
// corresponding response; streaming responses are emitted in small
// chunks so consumers exercise real incremental delivery.
//
// Thread-safe for concurrent use.
type MockGenerator struct {
	mu       sync.Mutex
	rules    []mockRule
	fallback string
	err      error
	calls    []MockCall
}

type mockRule struct {
	pattern  string
	response string
	err      error
}

// MockCall records a single call to the mock generator.
type MockCall struct {
	Prompt   string
	Response string
	Streamed bool
}

// NewMockGenerator creates a mock with the given fallback response,
// returned when no pattern matches.
func NewMockGenerator(fallback string) *MockGenerator {
	return &MockGenerator{fallback: fallback}
}

// AddResponse registers a pattern-response pair. When a prompt
// contains the pattern (case-insensitive) the response is returned.
// Patterns are checked in registration order; first match wins.
func (m *MockGenerator) AddResponse(pattern, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), response: response})
}

// AddError registers a pattern that fails with err instead of
// producing text.
func (m *MockGenerator) AddError(pattern string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, mockRule{pattern: strings.ToLower(pattern), err: err})
}

// FailWith makes every call fail with err until reset with nil.
func (m *MockGenerator) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns a copy of all recorded calls.
func (m *MockGenerator) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]MockCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

func (m *MockGenerator) respond(prompt string, streamed bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}

	lower := strings.ToLower(prompt)
	response := m.fallback
	for _, rule := range m.rules {
		if strings.Contains(lower, rule.pattern) {
			if rule.err != nil {
				return "", rule.err
			}
			response = rule.response
			break
		}
	}

	m.calls = append(m.calls, MockCall{Prompt: prompt, Response: response, Streamed: streamed})
	return response, nil
}

// Invoke implements model.Generator.
func (m *MockGenerator) Invoke(ctx context.Context, prompt string, _ ...model.Option) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.respond(prompt, false)
}

// Stream implements model.Generator, chunking the response at word
// boundaries.
func (m *MockGenerator) Stream(ctx context.Context, prompt string, _ ...model.Option) (*pipeline.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	response, err := m.respond(prompt, true)
	if err != nil {
		return nil, err
	}

	stream, writer := pipeline.NewStream(4)
	go func() {
		defer writer.Close()
		words := strings.SplitAfter(response, " ")
		for _, w := range words {
			if w == "" {
				continue
			}
			if closed := writer.Send(w, nil); closed {
				return
			}
		}
	}()
	return stream, nil
}
