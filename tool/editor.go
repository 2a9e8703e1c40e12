package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/martinemde/manus/agentloop"
)

// EditorName is the registered name of the file editor tool.
const EditorName = "str_replace_editor"

const (
	snippetLines   = 4
	maxResponseLen = 16000
	truncatedNote  = "<response clipped><NOTE>To save on context only part of this file has been shown to you. " +
		"Use `view` with a view_range to see the rest.</NOTE>"
)

const editorDescription = `Custom editing tool for viewing, creating and editing files.
* State is persistent across command calls.
* If path is a file, view displays the result of applying cat -n. If path is a directory, view lists non-hidden files and directories up to 2 levels deep.
* The create command cannot be used if the specified path already exists as a file.
* The undo_edit command reverts the last edit made to the file at path.

Notes for using the str_replace command:
* old_str must match EXACTLY one or more consecutive lines from the original file. Be mindful of whitespace.
* If old_str is not unique in the file, the replacement will not be performed. Include enough context to make it unique.
* new_str should contain the edited lines that replace old_str.`

// Editor views, creates, and edits files inside the workspace. It keeps an
// undo history per file.
type Editor struct {
	ws *Workspace

	mu      sync.Mutex
	history map[string][]string
}

var _ agentloop.Tool = (*Editor)(nil)

// NewEditor creates the editor tool.
func NewEditor(ws *Workspace) *Editor {
	return &Editor{ws: ws, history: make(map[string][]string)}
}

func (e *Editor) Definition() agentloop.ToolDefinition {
	return agentloop.ToolDefinition{
		Name:        EditorName,
		Description: editorDescription,
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "The command to run.",
					"enum":        []string{"view", "create", "str_replace", "insert", "undo_edit"},
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file or directory. Relative paths resolve against the workspace.",
				},
				"file_text": map[string]any{
					"type":        "string",
					"description": "Required for create: the content of the file.",
				},
				"old_str": map[string]any{
					"type":        "string",
					"description": "Required for str_replace: the string to replace.",
				},
				"new_str": map[string]any{
					"type":        "string",
					"description": "Replacement text for str_replace, or the text to insert for insert.",
				},
				"insert_line": map[string]any{
					"type":        "integer",
					"description": "Required for insert: new_str is inserted AFTER this line.",
				},
				"view_range": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "integer"},
					"description": "Optional for view on a file: [start, end] lines, 1-based; end -1 means to the end.",
				},
			},
			"required": []string{"command", "path"},
		},
	}
}

type editorArgs struct {
	Command    string  `json:"command"`
	Path       string  `json:"path"`
	FileText   *string `json:"file_text"`
	OldStr     *string `json:"old_str"`
	NewStr     *string `json:"new_str"`
	InsertLine *int    `json:"insert_line"`
	ViewRange  []int   `json:"view_range"`
}

func (e *Editor) Execute(_ context.Context, raw json.RawMessage) (string, error) {
	var args editorArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", agentloop.ErrInvalidArguments, err)
	}
	path := e.ws.Resolve(args.Path)

	e.mu.Lock()
	defer e.mu.Unlock()

	switch args.Command {
	case "view":
		return e.view(path, args.ViewRange)
	case "create":
		if args.FileText == nil {
			return "", errors.New("parameter `file_text` is required for command: create")
		}
		return e.create(path, *args.FileText)
	case "str_replace":
		if args.OldStr == nil {
			return "", errors.New("parameter `old_str` is required for command: str_replace")
		}
		newStr := ""
		if args.NewStr != nil {
			newStr = *args.NewStr
		}
		return e.replace(path, *args.OldStr, newStr)
	case "insert":
		if args.InsertLine == nil {
			return "", errors.New("parameter `insert_line` is required for command: insert")
		}
		if args.NewStr == nil {
			return "", errors.New("parameter `new_str` is required for command: insert")
		}
		return e.insert(path, *args.InsertLine, *args.NewStr)
	case "undo_edit":
		return e.undo(path)
	default:
		return "", fmt.Errorf("unrecognized command %q", args.Command)
	}
}

func (e *Editor) view(path string, viewRange []int) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("the path %s does not exist", path)
	}
	if info.IsDir() {
		if len(viewRange) > 0 {
			return "", errors.New("the `view_range` parameter is not allowed when path points to a directory")
		}
		return e.listDir(path)
	}

	content, err := readText(path)
	if err != nil {
		return "", err
	}
	start := 1
	if len(viewRange) > 0 {
		if len(viewRange) != 2 {
			return "", errors.New("invalid `view_range`: it should be a list of two integers")
		}
		lines := strings.Split(content, "\n")
		first, last := viewRange[0], viewRange[1]
		if first < 1 || first > len(lines) {
			return "", fmt.Errorf("invalid `view_range` %v: first element should be within [1, %d]", viewRange, len(lines))
		}
		switch {
		case last == -1:
			last = len(lines)
		case last < first:
			return "", fmt.Errorf("invalid `view_range` %v: second element should not be less than the first", viewRange)
		case last > len(lines):
			return "", fmt.Errorf("invalid `view_range` %v: second element should not exceed %d", viewRange, len(lines))
		}
		content = strings.Join(lines[first-1:last], "\n")
		start = first
	}
	return makeOutput(content, path, start), nil
}

func (e *Editor) listDir(root string) (string, error) {
	var entries []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if p == root {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		entries = append(entries, p)
		if d.IsDir() && strings.Count(rel, string(filepath.Separator)) >= 1 {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Strings(entries)
	return fmt.Sprintf("Here's the files and directories up to 2 levels deep in %s, excluding hidden items:\n%s\n",
		root, strings.Join(entries, "\n")), nil
}

func (e *Editor) create(path, text string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("file already exists at: %s. Cannot overwrite files using command `create`", path)
	}
	if err := writeText(path, text); err != nil {
		return "", err
	}
	return fmt.Sprintf("File created successfully at: %s", path), nil
}

func (e *Editor) replace(path, oldStr, newStr string) (string, error) {
	content, err := readText(path)
	if err != nil {
		return "", err
	}

	switch n := strings.Count(content, oldStr); {
	case oldStr == "" || n == 0:
		return "", fmt.Errorf("no replacement was performed, old_str `%s` did not appear verbatim in %s", oldStr, path)
	case n > 1:
		return "", fmt.Errorf("no replacement was performed. Multiple occurrences of old_str `%s` in lines %v. Please ensure it is unique",
			oldStr, occurrenceLines(content, oldStr))
	}

	replaced := strings.Replace(content, oldStr, newStr, 1)
	if err := writeText(path, replaced); err != nil {
		return "", err
	}
	e.history[path] = append(e.history[path], content)

	line := strings.Count(content[:strings.Index(content, oldStr)], "\n")
	snippet, first := snippetAround(replaced, line, strings.Count(newStr, "\n"))
	return fmt.Sprintf("The file %s has been edited. %s"+
		"Review the changes and make sure they are as expected. Edit the file again if necessary.",
		path, makeOutput(snippet, "a snippet of "+path, first)), nil
}

func (e *Editor) insert(path string, line int, newStr string) (string, error) {
	content, err := readText(path)
	if err != nil {
		return "", err
	}
	lines := strings.Split(content, "\n")
	if line < 0 || line > len(lines) {
		return "", fmt.Errorf("invalid `insert_line` parameter: %d. It should be within the range of lines of the file: [0, %d]", line, len(lines))
	}

	inserted := strings.Split(newStr, "\n")
	out := make([]string, 0, len(lines)+len(inserted))
	out = append(out, lines[:line]...)
	out = append(out, inserted...)
	out = append(out, lines[line:]...)
	updated := strings.Join(out, "\n")

	if err := writeText(path, updated); err != nil {
		return "", err
	}
	e.history[path] = append(e.history[path], content)

	snippet, first := snippetAround(updated, line, len(inserted)-1)
	return fmt.Sprintf("The file %s has been edited. %s"+
		"Review the changes and make sure they are as expected (correct indentation, no duplicate lines, etc). Edit the file again if necessary.",
		path, makeOutput(snippet, "a snippet of the edited file", first)), nil
}

func (e *Editor) undo(path string) (string, error) {
	versions := e.history[path]
	if len(versions) == 0 {
		return "", fmt.Errorf("no edit history found for %s", path)
	}
	prev := versions[len(versions)-1]
	e.history[path] = versions[:len(versions)-1]
	if err := writeText(path, prev); err != nil {
		return "", err
	}
	return fmt.Sprintf("Last edit to %s undone successfully. %s", path, makeOutput(prev, path, 1)), nil
}

// snippetAround returns the lines around an edit starting at line (0-based)
// and spanning extra more lines, plus the 1-based number of its first line.
func snippetAround(content string, line, extra int) (string, int) {
	lines := strings.Split(content, "\n")
	start := max(0, line-snippetLines)
	end := min(len(lines), line+extra+snippetLines+1)
	return strings.Join(lines[start:end], "\n"), start + 1
}

func occurrenceLines(content, s string) []int {
	var out []int
	for i, line := range strings.Split(content, "\n") {
		if strings.Contains(line, s) {
			out = append(out, i+1)
		}
	}
	return out
}

// makeOutput renders content cat -n style, numbering from start.
func makeOutput(content, descriptor string, start int) string {
	content = expandTabs(content)
	if len(content) > maxResponseLen {
		content = content[:maxResponseLen] + truncatedNote
	}
	lines := strings.Split(content, "\n")
	var b strings.Builder
	fmt.Fprintf(&b, "Here's the result of running `cat -n` on %s:\n", descriptor)
	for i, l := range lines {
		fmt.Fprintf(&b, "%6d\t%s\n", i+start, l)
	}
	return b.String()
}

func expandTabs(s string) string {
	return strings.ReplaceAll(s, "\t", "        ")
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("ran into %v while trying to read %s", err, path)
	}
	return string(data), nil
}

func writeText(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ran into %v while trying to write to %s", err, path)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("ran into %v while trying to write to %s", err, path)
	}
	return nil
}
