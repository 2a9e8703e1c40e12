package tool

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkspaceResolve(t *testing.T) {
	ws := newTestWorkspace(t)
	assert.Equal(t, filepath.Join(ws.Root(), "a", "b.txt"), ws.Resolve("a/b.txt"))
	assert.Equal(t, "/etc/hosts", ws.Resolve("/etc/../etc/hosts"))
	assert.True(t, filepath.IsAbs(ws.Root()))
}

func TestWorkspaceRun(t *testing.T) {
	ws := newTestWorkspace(t)
	ctx := context.Background()

	res, err := ws.Run(ctx, 5*time.Second, "", "/bin/sh", "-c", "pwd; echo oops >&2; exit 3")
	require.NoError(t, err)
	assert.Contains(t, res.Stdout, ws.Root())
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Contains(t, res.Output(), "oops")

	res, err = ws.Run(ctx, 5*time.Second, "from stdin", "/bin/cat")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", res.Stdout)
}

func TestWorkspaceRunTimeout(t *testing.T) {
	ws := newTestWorkspace(t)
	res, err := ws.Run(context.Background(), 100*time.Millisecond, "", "/bin/sh", "-c", "sleep 5")
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.Equal(t, -1, res.ExitCode)
}

func TestFilterEnvironment(t *testing.T) {
	t.Setenv("MANUS_TEST_API_KEY", "secret")
	t.Setenv("MANUS_TEST_PLAIN", "visible")

	env := filterEnvironment()
	assert.Contains(t, env, "MANUS_TEST_PLAIN=visible")
	assert.NotContains(t, env, "MANUS_TEST_API_KEY=secret")
}

func TestExecResultOutput(t *testing.T) {
	assert.Equal(t, "out", ExecResult{Stdout: "out"}.Output())
	assert.Equal(t, "err", ExecResult{Stderr: "err"}.Output())
	assert.Equal(t, "out\nerr", ExecResult{Stdout: "out", Stderr: "err"}.Output())
}
