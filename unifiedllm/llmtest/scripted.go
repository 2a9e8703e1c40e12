// Package llmtest provides a deterministic provider adapter for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/martinemde/manus/unifiedllm"
)

// Step configures one model reply in a scripted sequence.
type Step struct {
	Message unifiedllm.Message
	Err     error
}

// Text returns a Step replying with plain assistant text.
func Text(text string) Step {
	return Step{Message: unifiedllm.AssistantMessage(text)}
}

// Call returns a Step replying with a single tool call. args is marshalled
// to JSON; a json.RawMessage or string of raw JSON is passed through.
func Call(id, name string, args any) Step {
	return Calls(unifiedllm.ToolCall{ID: id, Name: name, Arguments: rawArgs(args)})
}

// Calls returns a Step replying with several tool calls.
func Calls(calls ...unifiedllm.ToolCall) Step {
	return Step{Message: unifiedllm.AssistantMessage("", calls...)}
}

// Fail returns a Step that fails with err.
func Fail(err error) Step {
	return Step{Err: err}
}

func rawArgs(args any) json.RawMessage {
	switch v := args.(type) {
	case nil:
		return json.RawMessage(`{}`)
	case json.RawMessage:
		return v
	case string:
		return json.RawMessage(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			panic(fmt.Sprintf("llmtest: marshal args: %v", err))
		}
		return b
	}
}

// ScriptedAdapter replays a fixed sequence of replies and records every
// request it receives.
type ScriptedAdapter struct {
	name     string
	mu       sync.Mutex
	index    int
	steps    []Step
	requests []unifiedllm.Request
}

var _ unifiedllm.ProviderAdapter = (*ScriptedAdapter)(nil)

// NewScriptedAdapter creates an adapter named "scripted" with the given replies.
func NewScriptedAdapter(steps ...Step) *ScriptedAdapter {
	cloned := make([]Step, len(steps))
	copy(cloned, steps)
	return &ScriptedAdapter{name: "scripted", steps: cloned}
}

// NewClient wraps the adapter in a unifiedllm.Client.
func (a *ScriptedAdapter) NewClient(opts ...unifiedllm.ClientOption) *unifiedllm.Client {
	opts = append([]unifiedllm.ClientOption{unifiedllm.WithProvider(a.name, a)}, opts...)
	return unifiedllm.NewClient(opts...)
}

func (a *ScriptedAdapter) Name() string { return a.name }

func (a *ScriptedAdapter) Complete(_ context.Context, req unifiedllm.Request) (*unifiedllm.Response, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, req)
	if a.index >= len(a.steps) {
		return nil, fmt.Errorf("script exhausted at call %d", a.index+1)
	}
	current := a.steps[a.index]
	a.index++
	if current.Err != nil {
		return nil, current.Err
	}

	msg := current.Message
	if msg.Role == "" {
		msg.Role = unifiedllm.RoleAssistant
	}
	reason := "stop"
	if msg.HasToolCalls() {
		reason = "tool_calls"
	}
	return &unifiedllm.Response{
		ID:           fmt.Sprintf("resp_%d", a.index),
		Model:        req.Model,
		Provider:     a.name,
		Message:      msg,
		FinishReason: unifiedllm.FinishReason{Reason: reason},
	}, nil
}

// Requests returns a copy of every request received so far.
func (a *ScriptedAdapter) Requests() []unifiedllm.Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]unifiedllm.Request, len(a.requests))
	copy(out, a.requests)
	return out
}

// Calls returns the number of Complete calls received.
func (a *ScriptedAdapter) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}
