package tool

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditorCreateAndView(t *testing.T) {
	ws := newTestWorkspace(t)
	e := NewEditor(ws)

	out, err := execTool(t, e, map[string]any{"command": "create", "path": "notes/a.txt", "file_text": "one\ntwo\nthree"})
	require.NoError(t, err)
	path := filepath.Join(ws.Root(), "notes", "a.txt")
	assert.Equal(t, "File created successfully at: "+path, out)

	_, err = execTool(t, e, map[string]any{"command": "create", "path": path, "file_text": "again"})
	assert.ErrorContains(t, err, "already exists")

	out, err = execTool(t, e, map[string]any{"command": "view", "path": path})
	require.NoError(t, err)
	assert.Contains(t, out, "     1\tone\n     2\ttwo\n     3\tthree\n")

	out, err = execTool(t, e, map[string]any{"command": "view", "path": path, "view_range": []int{2, -1}})
	require.NoError(t, err)
	assert.Contains(t, out, "     2\ttwo\n     3\tthree\n")
	assert.NotContains(t, out, "\tone")

	_, err = execTool(t, e, map[string]any{"command": "view", "path": path, "view_range": []int{3, 1}})
	assert.Error(t, err)

	out, err = execTool(t, e, map[string]any{"command": "view", "path": "."})
	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(ws.Root(), "notes", "a.txt"))

	_, err = execTool(t, e, map[string]any{"command": "view", "path": "missing.txt"})
	assert.ErrorContains(t, err, "does not exist")
}

func TestEditorStrReplaceAndUndo(t *testing.T) {
	ws := newTestWorkspace(t)
	e := NewEditor(ws)
	path := filepath.Join(ws.Root(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"), 0o644))

	out, err := execTool(t, e, map[string]any{"command": "str_replace", "path": path, "old_str": `println("hi")`, "new_str": `println("bye")`})
	require.NoError(t, err)
	assert.Contains(t, out, "has been edited")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n\nfunc main() {\n\tprintln(\"bye\")\n}\n", string(data), "tabs are preserved")

	_, err = execTool(t, e, map[string]any{"command": "str_replace", "path": path, "old_str": "absent"})
	assert.ErrorContains(t, err, "did not appear verbatim")

	_, err = execTool(t, e, map[string]any{"command": "undo_edit", "path": path})
	require.NoError(t, err)
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `println("hi")`)

	_, err = execTool(t, e, map[string]any{"command": "undo_edit", "path": path})
	assert.ErrorContains(t, err, "no edit history")
}

func TestEditorStrReplaceRequiresUnique(t *testing.T) {
	ws := newTestWorkspace(t)
	e := NewEditor(ws)
	path := filepath.Join(ws.Root(), "dup.txt")
	require.NoError(t, os.WriteFile(path, []byte("x\ny\nx\n"), 0o644))

	_, err := execTool(t, e, map[string]any{"command": "str_replace", "path": path, "old_str": "x", "new_str": "z"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Multiple occurrences")
	assert.Contains(t, err.Error(), "[1 3]")
}

func TestEditorInsert(t *testing.T) {
	ws := newTestWorkspace(t)
	e := NewEditor(ws)
	path := filepath.Join(ws.Root(), "list.txt")
	require.NoError(t, os.WriteFile(path, []byte("a\nc"), 0o644))

	_, err := execTool(t, e, map[string]any{"command": "insert", "path": path, "insert_line": 1, "new_str": "b"})
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc", string(data))

	_, err = execTool(t, e, map[string]any{"command": "insert", "path": path, "insert_line": 10, "new_str": "z"})
	assert.ErrorContains(t, err, "invalid `insert_line`")

	_, err = execTool(t, e, map[string]any{"command": "insert", "path": path, "new_str": "z"})
	assert.ErrorContains(t, err, "insert_line")
}

func TestEditorUnknownCommand(t *testing.T) {
	e := NewEditor(newTestWorkspace(t))
	_, err := execTool(t, e, map[string]any{"command": "delete", "path": "x"})
	assert.ErrorContains(t, err, "unrecognized command")
}

func TestMakeOutputClipsLongContent(t *testing.T) {
	long := make([]byte, maxResponseLen+10)
	for i := range long {
		long[i] = 'a'
	}
	out := makeOutput(string(long), "f", 1)
	assert.Contains(t, out, "<response clipped>")
}
