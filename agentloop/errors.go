package agentloop

import (
	"errors"
	"fmt"
)

// Construction errors. These are fatal when building a ToolRegistry.
var (
	ErrNilTool               = errors.New("tool is nil")
	ErrEmptyToolName         = errors.New("tool name is empty")
	ErrDuplicateTool         = errors.New("duplicate tool name")
	ErrNoTerminalTool        = errors.New("no terminal tool registered")
	ErrMultipleTerminalTools = errors.New("more than one terminal tool registered")
)

// Dispatch errors. These are reported back to the model as tool results.
var (
	ErrUnknownTool      = errors.New("unknown tool")
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// ErrAgentBusy is returned by Run when the agent is already running.
var ErrAgentBusy = errors.New("agent is already running")

// StepError reports a model-query failure that halted the run.
type StepError struct {
	Step int
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
