// Package model defines the boundary interface to text-generation backends.
// Pipelines depend on the Generator interface only; concrete adapters (see
// internal/genai) are injected by the caller, never constructed here, so
// chains are testable with fakes and multiple configurations can coexist.
package model

import (
	"context"
	"errors"

	"github.com/jaif/hal/internal/pipeline"
)

// Adapter failure taxonomy. Adapters map provider errors onto these
// sentinels; the pipeline executor treats any of them as terminal for that
// execution. Retry policy, if any, belongs inside the adapter.
var (
	// ErrRateLimited indicates the backend rejected the call for quota reasons.
	ErrRateLimited = errors.New("model: rate limited")

	// ErrAuthFailed indicates invalid or missing credentials.
	ErrAuthFailed = errors.New("model: authentication failed")

	// ErrUpstreamUnavailable indicates the backend is unreachable or timed out.
	ErrUpstreamUnavailable = errors.New("model: upstream unavailable")

	// ErrInvalidRequest indicates the backend rejected the request itself,
	// e.g. a prompt exceeding the token limit.
	ErrInvalidRequest = errors.New("model: invalid request")
)

// Generator is the consumed contract for a text-generation backend.
type Generator interface {
	// Invoke sends the prompt and returns the complete response text.
	Invoke(ctx context.Context, prompt string, opts ...Option) (string, error)

	// Stream sends the prompt and returns the response incrementally. The
	// caller owns the stream and must Close it; closing early releases the
	// underlying network resource.
	Stream(ctx context.Context, prompt string, opts ...Option) (*pipeline.Stream, error)
}

// Options holds per-call generation parameters.
type Options struct {
	// Model overrides the adapter's default model identifier.
	Model string

	// Temperature overrides sampling temperature when non-nil.
	Temperature *float32

	// MaxTokens caps the response length when positive.
	MaxTokens int

	// Stop lists sequences that end generation.
	Stop []string
}

// Option mutates Options.
type Option func(*Options)

// Apply folds opts into the receiver. Adapters seed the receiver with
// their defaults first so per-call options win.
func (o *Options) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithModel selects a specific model identifier for this call.
func WithModel(name string) Option {
	return func(o *Options) { o.Model = name }
}

// WithTemperature sets the sampling temperature for this call.
func WithTemperature(t float32) Option {
	return func(o *Options) { o.Temperature = &t }
}

// WithMaxTokens caps the response length for this call.
func WithMaxTokens(n int) Option {
	return func(o *Options) { o.MaxTokens = n }
}

// WithStop sets stop sequences for this call.
func WithStop(sequences ...string) Option {
	return func(o *Options) { o.Stop = sequences }
}
