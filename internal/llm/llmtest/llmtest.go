// Package llmtest provides scripted llm.Client fakes for tests.
package llmtest

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pdiddy/course-engine/internal/llm"
	"github.com/pdiddy/course-engine/pkg/types"
)

// Call is one recorded Invoke.
type Call struct {
	Name string
	Vars map[string]string
}

// ScriptedClient answers each request with Respond. It records every call
// and is safe for concurrent use.
type ScriptedClient struct {
	Respond func(req llm.Request) (string, error)

	mu    sync.Mutex
	calls []Call
}

// Invoke records the call and delegates to Respond.
func (c *ScriptedClient) Invoke(ctx context.Context, req llm.Request) (llm.Response, error) {
	vars := make(map[string]string, len(req.Vars))
	for k, v := range req.Vars {
		vars[k] = v
	}
	c.mu.Lock()
	c.calls = append(c.calls, Call{Name: req.Name, Vars: vars})
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return llm.Response{}, err
	}
	if c.Respond == nil {
		return llm.Response{}, nil
	}
	text, err := c.Respond(req)
	if err != nil {
		return llm.Response{}, err
	}
	return llm.Response{Text: text}, nil
}

// Calls returns a copy of the recorded calls.
func (c *ScriptedClient) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallsNamed returns the recorded calls for one template name.
func (c *ScriptedClient) CallsNamed(name string) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Name == name {
			out = append(out, call)
		}
	}
	return out
}

// Factory returns an llm.Factory handing out c to every caller. When built
// is non-nil it counts the clients requested.
func (c *ScriptedClient) Factory(built *atomic.Int32) llm.Factory {
	return func(context.Context, types.LLMConfig) (llm.Client, error) {
		if built != nil {
			built.Add(1)
		}
		return c, nil
	}
}
