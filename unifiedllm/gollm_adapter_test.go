package unifiedllm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGollmAdapterTranslateError(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai"}

	tests := []struct {
		msg       string
		check     func(error) bool
		retryable bool
	}{
		{"401 Unauthorized", func(err error) bool { var e *AuthenticationError; return errors.As(err, &e) }, false},
		{"invalid api key", func(err error) bool { var e *AuthenticationError; return errors.As(err, &e) }, false},
		{"404 not found", func(err error) bool { var e *NotFoundError; return errors.As(err, &e) }, false},
		{"429 rate limit exceeded", func(err error) bool { var e *RateLimitError; return errors.As(err, &e) }, true},
		{"context length exceeded", func(err error) bool { var e *ContextLengthError; return errors.As(err, &e) }, false},
		{"500 internal server error", func(err error) bool { var e *ServerError; return errors.As(err, &e) }, true},
		{"timeout waiting for response", func(err error) bool { var e *RequestTimeoutError; return errors.As(err, &e) }, true},
		{"content filter triggered", func(err error) bool { var e *ContentFilterError; return errors.As(err, &e) }, false},
		{"something unknown", func(err error) bool { var e *ProviderError; return errors.As(err, &e) }, true},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := adapter.translateError(errors.New(tt.msg))
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected type %T", err)
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}
	assert.NoError(t, adapter.translateError(nil))
}

func TestParseToolCallsEnvelope(t *testing.T) {
	text := `I'll look that up.
{"tool_calls": [{"name": "browser_use", "arguments": {"action": "go_to_url", "url": "https://example.com"}}, {"name": "terminate"}]}`

	calls, remaining := parseToolCalls(text)
	require.Len(t, calls, 2)
	assert.Equal(t, "I'll look that up.", remaining)
	assert.Equal(t, "browser_use", calls[0].Name)
	assert.JSONEq(t, `{"action": "go_to_url", "url": "https://example.com"}`, string(calls[0].Arguments))
	assert.Equal(t, "terminate", calls[1].Name)
	assert.JSONEq(t, `{}`, string(calls[1].Arguments))
	assert.NotEqual(t, calls[0].ID, calls[1].ID)
}

func TestParseToolCallsBareArray(t *testing.T) {
	calls, remaining := parseToolCalls(`[{"name": "bash", "arguments": {"command": "ls"}}] trailing`)
	require.Len(t, calls, 1)
	assert.Equal(t, "bash", calls[0].Name)
	assert.Empty(t, remaining)
}

func TestParseToolCallsPlainText(t *testing.T) {
	calls, remaining := parseToolCalls("The answer is 42.")
	assert.Empty(t, calls)
	assert.Equal(t, "The answer is 42.", remaining)

	calls, remaining = parseToolCalls(`{"tool_calls": [broken`)
	assert.Empty(t, calls)
	assert.Equal(t, `{"tool_calls": [broken`, remaining)
}

func TestGollmAdapterBuildResponse(t *testing.T) {
	adapter := &GollmAdapter{provider: "openai", model: "gpt-4o-mini"}

	resp := adapter.buildResponse(Request{Messages: []Message{UserMessage("list files")}},
		`{"tool_calls": [{"name": "bash", "arguments": {"command": "ls"}}]}`)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, RoleAssistant, resp.Message.Role)
	assert.Equal(t, "tool_calls", resp.FinishReason.Reason)
	require.Len(t, resp.ToolCalls(), 1)

	var args map[string]string
	require.NoError(t, json.Unmarshal(resp.ToolCalls()[0].Arguments, &args))
	assert.Equal(t, "ls", args["command"])

	plain := adapter.buildResponse(Request{Model: "other"}, "done")
	assert.Equal(t, "other", plain.Model)
	assert.Equal(t, "stop", plain.FinishReason.Reason)
	assert.Equal(t, "done", plain.Text())
	assert.Positive(t, plain.Usage.TotalTokens)
}

func TestDefaultModel(t *testing.T) {
	assert.Equal(t, "claude-sonnet-4-5", DefaultModel("anthropic"))
	assert.Equal(t, "gpt-4o-mini", DefaultModel("openai"))
	assert.Equal(t, "gpt-4o-mini", DefaultModel(""))
}
