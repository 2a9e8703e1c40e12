package unifiedllm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/manus/unifiedllm"
	"github.com/martinemde/manus/unifiedllm/llmtest"
)

func TestClientComplete(t *testing.T) {
	adapter := llmtest.NewScriptedAdapter(llmtest.Text("Hello!"))
	client := adapter.NewClient()

	resp, err := client.Complete(context.Background(), unifiedllm.Request{
		Model:    "test-model",
		Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello!", resp.Text())
	assert.Equal(t, "scripted", resp.Provider)
	assert.Equal(t, "scripted", adapter.Requests()[0].Provider)
}

func TestClientNoProvider(t *testing.T) {
	client := unifiedllm.NewClient()
	_, err := client.Complete(context.Background(), unifiedllm.Request{
		Messages: []unifiedllm.Message{unifiedllm.UserMessage("Hi")},
	})
	var cfgErr *unifiedllm.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestClientUnknownProvider(t *testing.T) {
	client := llmtest.NewScriptedAdapter().NewClient()
	_, err := client.Complete(context.Background(), unifiedllm.Request{Provider: "missing"})
	var cfgErr *unifiedllm.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), `"missing"`)
}

func TestClientMiddlewareOrder(t *testing.T) {
	var order []int
	mw := func(n int) unifiedllm.Middleware {
		return func(ctx context.Context, req unifiedllm.Request, next func(context.Context, unifiedllm.Request) (*unifiedllm.Response, error)) (*unifiedllm.Response, error) {
			order = append(order, n)
			resp, err := next(ctx, req)
			order = append(order, -n)
			return resp, err
		}
	}

	client := llmtest.NewScriptedAdapter(llmtest.Text("ok")).NewClient(unifiedllm.WithMiddleware(mw(1), mw(2)))
	_, err := client.Complete(context.Background(), unifiedllm.Request{})
	require.NoError(t, err)

	// Onion pattern: first registered runs first for request, reverse for response.
	assert.Equal(t, []int{1, 2, -2, -1}, order)
}

func TestClientAskPlacesSystemMessagesFirst(t *testing.T) {
	adapter := llmtest.NewScriptedAdapter(llmtest.Text("fine"))
	client := adapter.NewClient(unifiedllm.WithDefaultModel("m1"), unifiedllm.WithSampling(0.2, 512))

	resp, err := client.Ask(context.Background(),
		[]unifiedllm.Message{unifiedllm.UserMessage("how are you")},
		[]unifiedllm.Message{unifiedllm.SystemMessage("be brief")},
	)
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Text())

	req := adapter.Requests()[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, unifiedllm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, unifiedllm.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "m1", req.Model)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.2, *req.Temperature, 1e-9)
	require.NotNil(t, req.MaxTokens)
	assert.Equal(t, 512, *req.MaxTokens)
	assert.Empty(t, req.ToolDefs)
}

func TestClientAskToolDefaultsToAuto(t *testing.T) {
	adapter := llmtest.NewScriptedAdapter(llmtest.Call("c1", "terminate", map[string]any{"status": "success"}))
	client := adapter.NewClient()

	defs := []unifiedllm.ToolDefinition{{Name: "terminate", Description: "stop"}}
	resp, err := client.AskTool(context.Background(), []unifiedllm.Message{unifiedllm.UserMessage("go")}, nil, defs, nil)
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls(), 1)
	assert.Equal(t, "terminate", resp.ToolCalls()[0].Name)
	assert.Equal(t, "tool_calls", resp.FinishReason.Reason)

	req := adapter.Requests()[0]
	require.NotNil(t, req.ToolChoice)
	assert.Equal(t, "auto", req.ToolChoice.Mode)
	assert.Equal(t, defs, req.ToolDefs)
}

func TestClientRetryMiddleware(t *testing.T) {
	serverErr := &unifiedllm.ServerError{ProviderError: unifiedllm.ProviderError{
		SDKError: unifiedllm.SDKError{Message: "overloaded"}, Retryable: true,
	}}
	adapter := llmtest.NewScriptedAdapter(llmtest.Fail(serverErr), llmtest.Text("recovered"))
	policy := unifiedllm.RetryPolicy{MaxRetries: 2, BaseDelay: 0.001, BackoffMultiplier: 1, MaxDelay: 0.001}
	client := adapter.NewClient(unifiedllm.WithMiddleware(unifiedllm.RetryMiddleware(policy)))

	resp, err := client.Ask(context.Background(), []unifiedllm.Message{unifiedllm.UserMessage("hi")}, nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Text())
	assert.Equal(t, 2, adapter.Calls())
}

func TestClientRetryMiddlewareStopsOnPermanentError(t *testing.T) {
	authErr := &unifiedllm.AuthenticationError{}
	adapter := llmtest.NewScriptedAdapter(llmtest.Fail(authErr), llmtest.Text("never"))
	client := adapter.NewClient(unifiedllm.WithMiddleware(unifiedllm.RetryMiddleware(unifiedllm.DefaultRetryPolicy())))

	_, err := client.Ask(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, authErr))
	assert.Equal(t, 1, adapter.Calls())
}

type closingAdapter struct {
	*llmtest.ScriptedAdapter
	closed bool
}

func (c *closingAdapter) Close() error {
	c.closed = true
	return nil
}

func TestClientClose(t *testing.T) {
	adapter := &closingAdapter{ScriptedAdapter: llmtest.NewScriptedAdapter()}
	client := unifiedllm.NewClient(unifiedllm.WithProvider("closing", adapter))
	require.NoError(t, client.Close())
	assert.True(t, adapter.closed)
}
