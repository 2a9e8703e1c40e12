package agentloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/martinemde/manus/unifiedllm"
)

const noActionResult = "Thinking complete - no action needed"

// Step runs one think/act cycle over st and returns the step's trace text.
// The next-step prompt is chosen per step and passed to think by value, so
// st.NextStepPrompt is the same before and after regardless of outcome.
// A model failure moves st to PhaseFailed and is returned as a *StepError.
func (a *Agent) Step(ctx context.Context, st *RunState) (string, error) {
	st.Step++
	st.Phase = PhaseThinking
	a.emitter.Emit(st.RunID, st.Step, EventStepStart, nil)
	logger := a.runLogger(st)
	logger.Debug().Int("step", st.Step).Int("max_steps", st.MaxSteps).Msg("executing step")

	prompt, substituted := a.adapter.SelectPrompt(ctx, st.Memory, st.NextStepPrompt)
	if substituted {
		a.emitter.Emit(st.RunID, st.Step, EventPromptSubstituted, map[string]any{"tool": BrowserToolName})
		logger.Debug().Int("step", st.Step).Msg("using browser context prompt")
	}

	acted, err := a.think(ctx, st, prompt)
	if err != nil {
		stepErr := &StepError{Step: st.Step, Err: err}
		st.fail(stepErr)
		return "", stepErr
	}
	if !acted {
		st.idleSteps++
		st.Phase = PhaseReady
		if st.reply != "" {
			return st.reply, nil
		}
		return noActionResult, nil
	}

	st.idleSteps = 0
	st.Phase = PhaseActing
	result := a.act(ctx, st)
	st.Phase = PhaseReady
	if st.Terminal {
		st.Phase = PhaseDone
	}
	return result, nil
}

// think queries the model with the memory view plus prompt and records the
// reply. It reports whether the reply requested any tool calls.
func (a *Agent) think(ctx context.Context, st *RunState, prompt string) (bool, error) {
	messages := st.Memory.View(a.config.MaxContextMessages)
	if prompt != "" {
		messages = append(messages, unifiedllm.UserMessage(prompt))
	}
	var system []unifiedllm.Message
	if a.systemPrompt != "" {
		system = []unifiedllm.Message{unifiedllm.SystemMessage(a.systemPrompt)}
	}

	resp, err := a.client.AskTool(ctx, messages, system, a.tools.ModelDefinitions(), &unifiedllm.ToolChoiceAuto)
	if err != nil {
		return false, err
	}

	calls := resp.ToolCalls()
	st.reply = resp.Text()
	st.pending = calls

	logger := a.runLogger(st)
	logger.Debug().
		Int("step", st.Step).
		Int("tool_calls", len(calls)).
		Str("thoughts", Truncate(st.reply, 200)).
		Msg("model replied")

	if st.reply != "" || len(calls) > 0 {
		st.Memory.Append(unifiedllm.AssistantMessage(st.reply, calls...))
	}
	return len(calls) > 0, nil
}

// act dispatches the pending tool calls in order and appends exactly one
// tool result per call. Calls after a successful terminal call are skipped.
func (a *Agent) act(ctx context.Context, st *RunState) string {
	calls := st.pending
	st.pending = nil
	logger := a.runLogger(st)

	results := make([]string, 0, len(calls))
	for _, call := range calls {
		if st.Terminal {
			skipped := fmt.Sprintf("Error: skipped, `%s` already finished the run", a.tools.Terminal())
			st.Memory.Append(unifiedllm.ToolResultMessage(call.ID, call.Name, skipped))
			results = append(results, skipped)
			continue
		}

		a.emitter.Emit(st.RunID, st.Step, EventToolCallStart, map[string]any{
			"tool_name": call.Name,
			"call_id":   call.ID,
		})
		start := time.Now()
		output, err := a.tools.Execute(ctx, call)
		duration := time.Since(start)

		observation := formatObservation(call.Name, output, err)
		if !a.tools.IsSpecial(call.Name) {
			observation = TruncateObservation(observation, a.config.MaxObserve)
		}
		st.Memory.Append(unifiedllm.ToolResultMessage(call.ID, call.Name, observation))

		event := logger.Debug()
		if err != nil {
			event = logger.Warn().Err(err).
				Bool("dispatch_error", errors.Is(err, ErrUnknownTool) || errors.Is(err, ErrInvalidArguments))
		}
		event.Int("step", st.Step).
			Str("tool", call.Name).
			Dur("duration", duration).
			Msg("tool call finished")

		endData := map[string]any{
			"tool_name":   call.Name,
			"call_id":     call.ID,
			"duration_ms": duration.Milliseconds(),
		}
		if err != nil {
			endData["error"] = err.Error()
		}
		a.emitter.Emit(st.RunID, st.Step, EventToolCallEnd, endData)

		results = append(results, observation)

		if err == nil && a.tools.IsTerminal(call.Name) {
			logger.Info().Str("tool", call.Name).Msg("terminal tool finished the run")
			st.Terminal = true
		}
	}
	return strings.Join(results, "\n\n")
}
