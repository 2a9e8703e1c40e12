package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/manus/agentloop"
)

func TestBashKeepsSessionState(t *testing.T) {
	ws := newTestWorkspace(t)
	b := NewBash(ws, 5*time.Second)
	t.Cleanup(func() { _ = b.Cleanup(context.Background()) })

	out, err := execTool(t, b, map[string]any{"command": "mkdir sub && cd sub && export GREETING=hi"})
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = execTool(t, b, map[string]any{"command": "pwd; echo $GREETING"})
	require.NoError(t, err)
	assert.Equal(t, ws.Root()+"/sub\nhi", out)
}

func TestBashExitCodeAndStderr(t *testing.T) {
	b := NewBash(newTestWorkspace(t), 5*time.Second)
	t.Cleanup(func() { _ = b.Cleanup(context.Background()) })

	out, err := execTool(t, b, map[string]any{"command": "echo bad >&2; false"})
	require.NoError(t, err)
	assert.Equal(t, "bad\n\n[Exit code: 1]", out)

	out, err = execTool(t, b, map[string]any{"command": "printf no-newline"})
	require.NoError(t, err)
	assert.Equal(t, "no-newline", out)
}

func TestBashTimeoutRequiresRestart(t *testing.T) {
	b := NewBash(newTestWorkspace(t), 200*time.Millisecond)
	t.Cleanup(func() { _ = b.Cleanup(context.Background()) })

	_, err := execTool(t, b, map[string]any{"command": "sleep 5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be restarted")

	_, err = execTool(t, b, map[string]any{"command": "echo again"})
	require.Error(t, err)

	out, err := execTool(t, b, map[string]any{"restart": true})
	require.NoError(t, err)
	assert.Equal(t, "tool has been restarted.", out)

	out, err = execTool(t, b, map[string]any{"command": "echo again"})
	require.NoError(t, err)
	assert.Equal(t, "again", out)
}

func TestBashRequiresCommand(t *testing.T) {
	b := NewBash(newTestWorkspace(t), time.Second)
	_, err := execTool(t, b, map[string]any{})
	assert.Error(t, err)

	_, err = b.Execute(context.Background(), json.RawMessage(`[]`))
	assert.ErrorIs(t, err, agentloop.ErrInvalidArguments)
}

func TestBashCleanupIsIdempotent(t *testing.T) {
	b := NewBash(newTestWorkspace(t), time.Second)
	assert.NoError(t, b.Cleanup(context.Background()))

	_, err := execTool(t, b, map[string]any{"command": "true"})
	require.NoError(t, err)
	assert.NoError(t, b.Cleanup(context.Background()))
	assert.NoError(t, b.Cleanup(context.Background()))
}

func TestBashStopReleasesBlockedReader(t *testing.T) {
	s, err := startBashSession(t.TempDir())
	require.NoError(t, err)

	_, err = s.stdin.Write([]byte("seq 1 5000\n"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(s.lines) == cap(s.lines) }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, s.stop())
	select {
	case <-s.readerDone:
	case <-time.After(5 * time.Second):
		t.Fatal("output reader still blocked after stop")
	}
}
