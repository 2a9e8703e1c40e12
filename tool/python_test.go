package tool

import (
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requirePython(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not installed")
	}
}

func TestPythonPrintsOutput(t *testing.T) {
	requirePython(t)
	p := NewPython(newTestWorkspace(t), "", 10*time.Second)

	out, err := execTool(t, p, map[string]any{"code": "print(6 * 7)"})
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestPythonErrorIncludesTraceback(t *testing.T) {
	requirePython(t)
	p := NewPython(newTestWorkspace(t), "python3", 10*time.Second)

	_, err := execTool(t, p, map[string]any{"code": "raise ValueError('nope')"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ValueError: nope")
}

func TestPythonTimeout(t *testing.T) {
	requirePython(t)
	p := NewPython(newTestWorkspace(t), "python3", 200*time.Millisecond)

	_, err := execTool(t, p, map[string]any{"code": "import time\ntime.sleep(5)"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "execution timeout")
}
