// Package pipeline implements a small dataflow executor for prompt chains:
// ordered named stages threading a per-execution context bag, first-match
// branch routing, streamed terminal output and all-settle batch fan-out.
//
// A Pipeline is immutable once built and safe to share across requests; the
// Context is not: every execution owns exactly one Context and no two
// executions may share it. Stages run strictly in order and fail fast;
// errors carry the failing stage's index and name. The one place concurrent
// execution happens is Batch, which runs independent inputs in parallel and
// settles every input regardless of sibling failures.
package pipeline

import "fmt"

// Context is the key/value bag threaded through a pipeline's stages. Each
// stage reads some keys and writes others; keys are only ever added or
// overwritten. Exclusively owned by one in-flight execution, so there is no
// locking.
type Context struct {
	values map[string]any
}

// NewContext creates an empty Context.
func NewContext() *Context {
	return &Context{values: map[string]any{}}
}

// Set stores a value under key, overwriting any previous value.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// String returns the string stored under key, or "" when absent or not a
// string.
func (c *Context) String(key string) string {
	s, _ := c.values[key].(string)
	return s
}

// StringSlice returns the []string stored under key, or nil.
func (c *Context) StringSlice(key string) []string {
	s, _ := c.values[key].([]string)
	return s
}

// Clone returns a shallow copy. Used by Batch so fan-out inputs never share
// a Context.
func (c *Context) Clone() *Context {
	next := &Context{values: make(map[string]any, len(c.values))}
	for k, v := range c.values {
		next.values[k] = v
	}
	return next
}

// Keys returns the number of stored keys. Diagnostic only.
func (c *Context) Keys() int { return len(c.values) }

// RequireString returns the string under key or an error naming the key.
// Stages use it for inputs a predecessor must have produced.
func (c *Context) RequireString(key string) (string, error) {
	v, ok := c.values[key]
	if !ok {
		return "", fmt.Errorf("context key %q not set", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("context key %q holds %T, not string", key, v)
	}
	return s, nil
}
