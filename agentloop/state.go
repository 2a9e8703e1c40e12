package agentloop

import (
	"github.com/rs/zerolog"

	"github.com/martinemde/manus/unifiedllm"
)

// Phase is the step loop's position in the think/act cycle.
type Phase string

const (
	PhaseReady    Phase = "ready"
	PhaseThinking Phase = "thinking"
	PhaseActing   Phase = "acting"
	PhaseDone     Phase = "done"
	PhaseFailed   Phase = "failed"
)

// RunState carries everything one run mutates. It is created when a run
// starts and discarded when it ends.
type RunState struct {
	RunID    string
	Step     int
	MaxSteps int
	Phase    Phase
	Terminal bool
	// NextStepPrompt is the default prompt for the run. Substitutions are
	// passed to the think phase as values and never stored here.
	NextStepPrompt string
	Memory         *Memory
	// Err is the failure that moved the run to PhaseFailed.
	Err error

	idleSteps int
	reply     string
	pending   []unifiedllm.ToolCall
	logger    *zerolog.Logger
}

// NewRunState creates the state for a run over mem.
func NewRunState(runID string, mem *Memory, maxSteps int, nextStepPrompt string) *RunState {
	return &RunState{
		RunID:          runID,
		MaxSteps:       maxSteps,
		Phase:          PhaseReady,
		NextStepPrompt: nextStepPrompt,
		Memory:         mem,
	}
}

// Finished reports whether the loop must stop.
func (s *RunState) Finished() bool {
	return s.Terminal || s.Phase == PhaseDone || s.Phase == PhaseFailed || s.Step >= s.MaxSteps
}

func (s *RunState) fail(err error) {
	s.Phase = PhaseFailed
	s.Err = err
}
