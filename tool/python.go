package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/martinemde/manus/agentloop"
)

// PythonName is the registered name of the Python tool.
const PythonName = "python_execute"

// Python runs code with a Python interpreter in the workspace.
type Python struct {
	ws      *Workspace
	binary  string
	timeout time.Duration
}

var _ agentloop.Tool = (*Python)(nil)

// NewPython creates the Python tool using binary (python3 when empty).
func NewPython(ws *Workspace, binary string, timeout time.Duration) *Python {
	if binary == "" {
		binary = "python3"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Python{ws: ws, binary: binary, timeout: timeout}
}

func (p *Python) Definition() agentloop.ToolDefinition {
	return agentloop.ToolDefinition{
		Name: PythonName,
		Description: "Executes Python code string. Note: Only print outputs are visible, " +
			"function return values are not captured. Use print statements to see results.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "The Python code to execute.",
				},
			},
			"required": []string{"code"},
		},
	}
}

func (p *Python) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", agentloop.ErrInvalidArguments, err)
	}

	res, err := p.ws.Run(ctx, p.timeout, args.Code, p.binary, "-")
	if err != nil {
		return "", fmt.Errorf("python: %w", err)
	}
	if res.TimedOut {
		return res.Output(), fmt.Errorf("execution timeout after %s", p.timeout)
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("python exited with code %d: %s", res.ExitCode, res.Output())
	}
	return res.Output(), nil
}
