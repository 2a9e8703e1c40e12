package agentloop

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/martinemde/manus/unifiedllm"
	"github.com/martinemde/manus/unifiedllm/llmtest"
)

// countingTool returns a fixed output (or error) and counts its calls.
type countingTool struct {
	def    ToolDefinition
	output string
	err    error

	mu    sync.Mutex
	calls int
	args  []json.RawMessage
}

func newCountingTool(name, output string) *countingTool {
	return &countingTool{def: ToolDefinition{Name: name, Description: "test tool " + name}, output: output}
}

func (t *countingTool) Definition() ToolDefinition { return t.def }

func (t *countingTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	t.args = append(t.args, args)
	return t.output, t.err
}

func (t *countingTool) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// cleaningTool counts Cleanup calls.
type cleaningTool struct {
	*countingTool
	cleanupErr error

	mu       sync.Mutex
	cleanups int
}

func (t *cleaningTool) Cleanup(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cleanups++
	return t.cleanupErr
}

func (t *cleaningTool) Cleanups() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cleanups
}

// fakeBrowser is a BrowserContext with a canned prompt.
type fakeBrowser struct {
	prompt    string
	promptErr error

	mu     sync.Mutex
	closes int
}

func (b *fakeBrowser) FormatContextPrompt(context.Context) (string, error) {
	return b.prompt, b.promptErr
}

func (b *fakeBrowser) CloseSession(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	return nil
}

func (b *fakeBrowser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

func terminateTool() *FuncTool {
	return NewFuncTool(ToolDefinition{
		Name:        "terminate",
		Description: "finish",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{"type": "string", "enum": []string{"success", "failure"}},
			},
			"required": []string{"status"},
		},
		Terminal: true,
		Special:  true,
	}, func(_ context.Context, args json.RawMessage) (string, error) {
		var a struct{ Status string }
		_ = json.Unmarshal(args, &a)
		return "The interaction has been completed with status: " + a.Status, nil
	})
}

func terminateCall(id string) unifiedllm.ToolCall {
	return unifiedllm.ToolCall{ID: id, Name: "terminate", Arguments: json.RawMessage(`{"status":"success"}`)}
}

func call(id, name, args string) unifiedllm.ToolCall {
	return unifiedllm.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func testConfig(maxSteps int) AgentConfig {
	cfg := DefaultAgentConfig()
	cfg.MaxSteps = maxSteps
	return cfg
}

func newTestRegistry(t *testing.T, tools ...Tool) *ToolRegistry {
	t.Helper()
	reg, err := NewToolRegistry(append(tools, terminateTool())...)
	require.NoError(t, err)
	return reg
}

func newTestAgent(t *testing.T, steps []llmtest.Step, reg *ToolRegistry, opts ...Option) (*Agent, *llmtest.ScriptedAdapter) {
	t.Helper()
	adapter := llmtest.NewScriptedAdapter(steps...)
	agent, err := NewAgent(adapter.NewClient(), reg, opts...)
	require.NoError(t, err)
	t.Cleanup(agent.Close)
	return agent, adapter
}

func toolMessages(msgs []unifiedllm.Message) []unifiedllm.Message {
	var out []unifiedllm.Message
	for _, m := range msgs {
		if m.Role == unifiedllm.RoleTool {
			out = append(out, m)
		}
	}
	return out
}

func lastMessage(req unifiedllm.Request) unifiedllm.Message {
	return req.Messages[len(req.Messages)-1]
}

var errBoom = errors.New("boom")
