// Package genai adapts Google Genkit to the model.Generator contract.
//
// The adapter owns the provider session and maps provider failures onto
// the model package's sentinel errors so pipeline code never inspects
// provider-specific error types.
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	"github.com/jaif/hal/internal/config"
	"github.com/jaif/hal/internal/log"
	"github.com/jaif/hal/internal/model"
	"github.com/jaif/hal/internal/pipeline"
)

// Client wraps a Genkit instance with default generation settings.
// All methods are safe for concurrent use.
type Client struct {
	g           *genkit.Genkit
	model       string
	temperature float32
	maxTokens   int
	timeout     time.Duration
	logger      log.Logger
}

// New initializes Genkit with the Google AI plugin and returns a Client
// configured from cfg. The GEMINI_API_KEY environment variable must be
// set for generation calls to succeed.
func New(ctx context.Context, cfg *config.Config, logger log.Logger) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", model.ErrInvalidRequest)
	}
	if logger == nil {
		logger = log.NewNop()
	}

	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, fmt.Errorf("%w: genkit initialization failed", model.ErrUpstreamUnavailable)
	}

	return &Client{
		g:           g,
		model:       cfg.ModelName,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     cfg.AdapterTimeout(),
		logger:      logger,
	}, nil
}

// Genkit exposes the underlying instance for plugin helpers such as
// embedder construction.
func (c *Client) Genkit() *genkit.Genkit { return c.g }

// Embedder returns the Google AI embedder for the given model name.
func (c *Client) Embedder(modelName string) ai.Embedder {
	return googlegenai.GoogleAIEmbedder(c.g, modelName)
}

// Invoke sends a single prompt and blocks until the full completion is
// available. The call is bounded by the configured adapter timeout.
func (c *Client) Invoke(ctx context.Context, prompt string, opts ...model.Option) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := genkit.Generate(callCtx, c.g, c.generateOptions(prompt, opts)...)
	if err != nil {
		return "", c.mapError(ctx, err)
	}

	text := resp.Text()
	c.logger.Debug("model invoke complete",
		"model", c.resolveModel(opts),
		"prompt_length", len(prompt),
		"response_length", len(text),
		"duration", time.Since(start),
	)
	return text, nil
}

// Stream sends a prompt and returns a stream of incremental text chunks.
// The producer goroutine stops early when the consumer closes the stream,
// and the stream is always terminated with either the provider error or
// a clean end of stream.
func (c *Client) Stream(ctx context.Context, prompt string, opts ...model.Option) (*pipeline.Stream, error) {
	stream, writer := pipeline.NewStream(8)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	stream.OnClose(cancel)

	go func() {
		defer writer.Close()

		_, err := genkit.Generate(callCtx, c.g, append(c.generateOptions(prompt, opts),
			ai.WithStreaming(func(_ context.Context, chunk *ai.ModelResponseChunk) error {
				if closed := writer.Send(chunk.Text(), nil); closed {
					return context.Canceled
				}
				return nil
			}),
		)...)
		if err != nil && callCtx.Err() == nil {
			writer.Send("", c.mapError(ctx, err))
		}
	}()

	return stream, nil
}

// generateOptions merges per-call options over the client defaults.
func (c *Client) generateOptions(prompt string, opts []model.Option) []ai.GenerateOption {
	o := model.Options{
		Model:     c.model,
		MaxTokens: c.maxTokens,
	}
	o.Apply(opts...)

	temperature := c.temperature
	if o.Temperature != nil {
		temperature = *o.Temperature
	}

	genOpts := []ai.GenerateOption{
		ai.WithModelName("googleai/" + strings.TrimPrefix(o.Model, "googleai/")),
		ai.WithPrompt(prompt),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     float64(temperature),
			MaxOutputTokens: o.MaxTokens,
			StopSequences:   o.Stop,
		}),
	}
	return genOpts
}

func (c *Client) resolveModel(opts []model.Option) string {
	o := model.Options{Model: c.model}
	o.Apply(opts...)
	return o.Model
}

// mapError translates provider failures into model sentinel errors.
// ctx is the caller's context; when it is still live a deadline came
// from the adapter timeout and counts as an upstream failure.
func (c *Client) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		return ctx.Err()
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: generation timed out: %v", model.ErrUpstreamUnavailable, err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return fmt.Errorf("%w: %v", model.ErrRateLimited, err)
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key") || strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %v", model.ErrAuthFailed, err)
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid argument"):
		return fmt.Errorf("%w: %v", model.ErrInvalidRequest, err)
	default:
		return fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
	}
}
