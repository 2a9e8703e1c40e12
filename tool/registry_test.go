package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/manus/agentloop"
	"github.com/martinemde/manus/unifiedllm"
)

func TestNewDefaultRegistry(t *testing.T) {
	reg, browser, err := NewDefaultRegistry(newTestWorkspace(t), Options{})
	require.NoError(t, err)
	require.NotNil(t, browser)

	assert.Equal(t, []string{PythonName, BashName, BrowserName, EditorName, TerminateName}, reg.Names())
	assert.Equal(t, TerminateName, reg.Terminal())
	assert.True(t, reg.IsSpecial(TerminateName))
	assert.False(t, reg.IsSpecial(BashName))
	assert.NoError(t, reg.Cleanup(context.Background()))
}

func TestTerminate(t *testing.T) {
	reg, _, err := NewDefaultRegistry(newTestWorkspace(t), Options{})
	require.NoError(t, err)

	out, err := reg.Execute(context.Background(), unifiedllm.ToolCall{
		ID: "1", Name: TerminateName, Arguments: json.RawMessage(`{"status":"success"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, "The interaction has been completed with status: success", out)

	_, err = reg.Execute(context.Background(), unifiedllm.ToolCall{
		ID: "2", Name: TerminateName, Arguments: json.RawMessage(`{"status":"maybe"}`),
	})
	assert.ErrorIs(t, err, agentloop.ErrInvalidArguments)
}
