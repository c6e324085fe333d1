package pipeline

import (
	"context"
	"sync"
)

// DefaultBatchConcurrency bounds parallel executions in Batch when no
// explicit limit is given.
const DefaultBatchConcurrency = 4

// Result is the outcome of one Batch input. Exactly one of Context/Err is
// meaningful: Err is nil on success.
type Result struct {
	Index   int
	Context *Context
	Err     error
}

// Batch runs the pipeline independently over every input context and waits
// for all of them (all-settle join). One input's stage failure does not
// abort its siblings; failures are reported per index alongside successes.
// Results are returned in input order.
//
// The inputs must be distinct Contexts; Batch never shares a Context
// between executions. concurrency <= 0 selects DefaultBatchConcurrency.
func (p *Pipeline) Batch(ctx context.Context, inputs []*Context, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	if concurrency > len(inputs) {
		concurrency = len(inputs)
	}

	results := make([]Result, len(inputs))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, in := range inputs {
		wg.Add(1)
		go func(i int, in *Context) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := p.Run(ctx, in)
			results[i] = Result{Index: i, Context: in, Err: err}
		}(i, in)
	}

	wg.Wait()
	return results
}
