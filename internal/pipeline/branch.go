package pipeline

import "context"

// Predicate inspects the execution context and reports whether its branch
// should run. Predicates must be pure and synchronous: no I/O, no
// randomness, no suspension. Classification that needs a model call belongs
// in a preceding stage that writes a context key for predicates to read.
type Predicate func(c *Context) bool

// ClassifiedAs returns a Predicate matching a classification label written
// by an earlier stage under the given key.
func ClassifiedAs(key, label string) Predicate {
	return func(c *Context) bool {
		return c.String(key) == label
	}
}

type arm struct {
	pred Predicate
	pipe *Pipeline
}

// Branch routes to exactly one of several candidate pipelines. Arms are
// evaluated in declaration order; the first matching predicate wins; the
// mandatory default runs when none match. Exactly one pipeline executes per
// invocation.
type Branch struct {
	arms []arm
	def  *Pipeline
}

// NewBranch creates a Branch with its mandatory default pipeline.
func NewBranch(def *Pipeline) *Branch {
	if def == nil {
		panic("pipeline: branch requires a default pipeline")
	}
	return &Branch{def: def}
}

// When returns a new Branch with an additional arm appended. The receiver
// is not modified.
func (b *Branch) When(pred Predicate, p *Pipeline) *Branch {
	next := &Branch{
		arms: make([]arm, len(b.arms), len(b.arms)+1),
		def:  b.def,
	}
	copy(next.arms, b.arms)
	next.arms = append(next.arms, arm{pred: pred, pipe: p})
	return next
}

// Route selects the pipeline for the given context. Deterministic for a
// fixed context, so routing decisions are replayable in tests.
func (b *Branch) Route(c *Context) *Pipeline {
	for _, a := range b.arms {
		if a.pred(c) {
			return a.pipe
		}
	}
	return b.def
}

// Run routes and executes the selected pipeline in batch mode.
func (b *Branch) Run(ctx context.Context, c *Context) error {
	return b.Route(c).Run(ctx, c)
}

// RunStream routes and executes the selected pipeline in streaming mode.
func (b *Branch) RunStream(ctx context.Context, c *Context) (*Stream, error) {
	return b.Route(c).RunStream(ctx, c)
}
