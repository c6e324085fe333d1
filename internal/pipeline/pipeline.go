package pipeline

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotStreaming indicates RunStream was called on a pipeline without
	// a terminal streaming stage.
	ErrNotStreaming = errors.New("pipeline has no streaming stage")

	// ErrNoStages indicates an empty pipeline was executed.
	ErrNoStages = errors.New("pipeline has no stages")
)

// OutputKey is the context key under which Run stores the drained text of a
// streaming pipeline's terminal stage.
const OutputKey = "output"

// StageFunc transforms the execution context. It may suspend for I/O; pure
// template and routing logic must not.
type StageFunc func(ctx context.Context, c *Context) error

// StreamFunc is the terminal stage of a streaming pipeline. It returns the
// incrementally produced output, typically straight from a model adapter.
type StreamFunc func(ctx context.Context, c *Context) (*Stream, error)

// Stage is a named transformation step.
type Stage struct {
	Name string
	Run  StageFunc
}

// StageError wraps a stage failure with the pipeline name and the index and
// name of the failing stage.
type StageError struct {
	Pipeline string
	Index    int
	Stage    string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s: stage %d (%s): %v", e.Pipeline, e.Index, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Pipeline is an ordered sequence of stages with an optional terminal
// streaming stage. Build once with New/Append/Tail, then share freely:
// execution state lives entirely in the per-run Context.
type Pipeline struct {
	name     string
	stages   []Stage
	tailName string
	tail     StreamFunc
}

// New creates a named pipeline with the given stages.
func New(name string, stages ...Stage) *Pipeline {
	return &Pipeline{name: name, stages: stages}
}

// Name returns the pipeline's name.
func (p *Pipeline) Name() string { return p.name }

// Append returns a new Pipeline with an extra stage. The receiver is not
// modified, matching the immutability of shared pipelines.
func (p *Pipeline) Append(name string, fn StageFunc) *Pipeline {
	next := p.clone()
	next.stages = append(next.stages, Stage{Name: name, Run: fn})
	return next
}

// Tail returns a new Pipeline whose terminal stage streams its output.
func (p *Pipeline) Tail(name string, fn StreamFunc) *Pipeline {
	next := p.clone()
	next.tailName = name
	next.tail = fn
	return next
}

func (p *Pipeline) clone() *Pipeline {
	next := &Pipeline{
		name:     p.name,
		stages:   make([]Stage, len(p.stages)),
		tailName: p.tailName,
		tail:     p.tail,
	}
	copy(next.stages, p.stages)
	return next
}

// Run executes every stage strictly in order, fail-fast. If the pipeline
// has a terminal streaming stage its output is drained into OutputKey, so
// batch callers see the complete text. Stage failures abort immediately and
// are wrapped in a StageError.
func (p *Pipeline) Run(ctx context.Context, c *Context) error {
	if len(p.stages) == 0 && p.tail == nil {
		return ErrNoStages
	}

	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return &StageError{Pipeline: p.name, Index: i, Stage: stage.Name, Err: err}
		}
		if err := stage.Run(ctx, c); err != nil {
			return &StageError{Pipeline: p.name, Index: i, Stage: stage.Name, Err: err}
		}
	}

	if p.tail != nil {
		stream, err := p.tail(ctx, c)
		if err != nil {
			return &StageError{Pipeline: p.name, Index: len(p.stages), Stage: p.tailName, Err: err}
		}
		text, err := stream.Concat()
		if err != nil {
			return &StageError{Pipeline: p.name, Index: len(p.stages), Stage: p.tailName, Err: err}
		}
		c.Set(OutputKey, text)
	}

	return nil
}

// RunStream executes every non-terminal stage eagerly, then returns the
// terminal stage's chunk stream without buffering it. The caller owns the
// returned Stream and must Close it; closing early stops adapter pulls
// (cooperative cancellation from the consumer side).
func (p *Pipeline) RunStream(ctx context.Context, c *Context) (*Stream, error) {
	if p.tail == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotStreaming, p.name)
	}

	for i, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, &StageError{Pipeline: p.name, Index: i, Stage: stage.Name, Err: err}
		}
		if err := stage.Run(ctx, c); err != nil {
			return nil, &StageError{Pipeline: p.name, Index: i, Stage: stage.Name, Err: err}
		}
	}

	stream, err := p.tail(ctx, c)
	if err != nil {
		return nil, &StageError{Pipeline: p.name, Index: len(p.stages), Stage: p.tailName, Err: err}
	}
	return stream, nil
}
