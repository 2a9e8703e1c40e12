package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/martinemde/manus/agentloop"
)

// TerminateName is the registered name of the terminal tool.
const TerminateName = "terminate"

// Terminate ends the run. It is the registry's terminal tool and is exempt
// from observation truncation.
type Terminate struct{}

var _ agentloop.Tool = Terminate{}

func (Terminate) Definition() agentloop.ToolDefinition {
	return agentloop.ToolDefinition{
		Name: TerminateName,
		Description: "Terminate the interaction when the request is met OR if the assistant cannot proceed further with the task. " +
			"When you have finished all the tasks, call this tool to end the work.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"description": "The finish status of the interaction.",
					"enum":        []string{"success", "failure"},
				},
			},
			"required": []string{"status"},
		},
		Terminal: true,
		Special:  true,
	}
}

func (Terminate) Execute(_ context.Context, raw json.RawMessage) (string, error) {
	var args struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("%w: %v", agentloop.ErrInvalidArguments, err)
	}
	return fmt.Sprintf("The interaction has been completed with status: %s", args.Status), nil
}
