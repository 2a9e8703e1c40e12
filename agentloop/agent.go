package agentloop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/martinemde/manus/unifiedllm"
)

// AgentConfig holds the limits of an agent's runs.
type AgentConfig struct {
	MaxSteps           int           `json:"max_steps"`
	MaxObserve         int           `json:"max_observe"`          // observation ceiling in characters
	BrowserWindow      int           `json:"browser_window"`       // recent messages checked for browser use
	SummaryWindow      int           `json:"summary_window"`       // tool results cited by the summary
	SummarySnippet     int           `json:"summary_snippet"`      // characters kept per cited result
	MaxContextMessages int           `json:"max_context_messages"` // 0 = whole log
	StallThreshold     int           `json:"stall_threshold"`      // 0 = disabled
	DuplicateThreshold int           `json:"duplicate_threshold"`  // 0 = disabled
	CleanupTimeout     time.Duration `json:"cleanup_timeout"`
	EventBuffer        int           `json:"event_buffer"`
}

// DefaultAgentConfig returns the default limits.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxSteps:           20,
		MaxObserve:         10000,
		BrowserWindow:      3,
		SummaryWindow:      5,
		SummarySnippet:     100,
		MaxContextMessages: 100,
		StallThreshold:     0,
		DuplicateThreshold: 2,
		CleanupTimeout:     DefaultCleanupTimeout,
		EventBuffer:        256,
	}
}

// Option configures an Agent.
type Option func(*Agent)

// WithName sets the agent name used in logs.
func WithName(name string) Option {
	return func(a *Agent) { a.name = name }
}

// WithConfig replaces the default limits.
func WithConfig(cfg AgentConfig) Option {
	return func(a *Agent) { a.config = cfg }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(a *Agent) { a.logger = logger }
}

// WithSystemPrompt sets the system prompt sent with every step.
func WithSystemPrompt(prompt string) Option {
	return func(a *Agent) { a.systemPrompt = prompt }
}

// WithNextStepPrompt sets the default next-step prompt.
func WithNextStepPrompt(prompt string) Option {
	return func(a *Agent) { a.nextStepPrompt = prompt }
}

// WithBrowser attaches the browser session collaborator. Its context prompt
// is used after recent browser_use calls and its session is closed when
// every run ends.
func WithBrowser(browser BrowserContext) Option {
	return func(a *Agent) { a.browser = browser }
}

// WithMemory makes the agent append to an existing log.
func WithMemory(mem *Memory) Option {
	return func(a *Agent) { a.memory = mem }
}

// Agent runs the think/act loop over a fixed tool registry. One agent
// executes one run at a time.
type Agent struct {
	name           string
	client         *unifiedllm.Client
	tools          *ToolRegistry
	memory         *Memory
	config         AgentConfig
	systemPrompt   string
	nextStepPrompt string
	browser        BrowserContext
	adapter        *ContextAdapter
	logger         zerolog.Logger
	emitter        *EventEmitter

	mu      sync.Mutex
	running bool
}

// NewAgent creates an agent. The client and registry are required.
func NewAgent(client *unifiedllm.Client, tools *ToolRegistry, opts ...Option) (*Agent, error) {
	if client == nil {
		return nil, errors.New("agentloop: client is nil")
	}
	if tools == nil {
		return nil, errors.New("agentloop: tool registry is nil")
	}
	a := &Agent{
		name:           "Manus",
		client:         client,
		tools:          tools,
		config:         DefaultAgentConfig(),
		nextStepPrompt: DefaultNextStepPrompt,
		logger:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.config.MaxSteps <= 0 {
		return nil, fmt.Errorf("agentloop: max steps must be positive, got %d", a.config.MaxSteps)
	}
	if a.config.MaxObserve < 0 {
		return nil, fmt.Errorf("agentloop: max observe must not be negative, got %d", a.config.MaxObserve)
	}
	if a.memory == nil {
		a.memory = NewMemory()
	}
	a.adapter = NewContextAdapter(BrowserToolName, a.config.BrowserWindow, a.browser, a.logger)
	a.emitter = NewEventEmitter(a.config.EventBuffer)
	return a, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Memory returns the conversation log shared by all runs of the agent.
func (a *Agent) Memory() *Memory { return a.memory }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *ToolRegistry { return a.tools }

// Config returns the agent's limits.
func (a *Agent) Config() AgentConfig { return a.config }

// NextStepPrompt returns the default next-step prompt.
func (a *Agent) NextStepPrompt() string { return a.nextStepPrompt }

// Events returns the run event channel.
func (a *Agent) Events() <-chan RunEvent { return a.emitter.Events() }

// Close closes the event channel.
func (a *Agent) Close() { a.emitter.Close() }

// Running reports whether a run is in progress.
func (a *Agent) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *Agent) begin() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		return false
	}
	a.running = true
	return true
}

func (a *Agent) end() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.running = false
}

// Run executes the loop for request and returns the step trace. When
// request is non-empty it is added to memory first and a summary is
// appended to the output. A model failure stops the run; the partial trace
// is returned with a *StepError. Tool resources are released on every path.
func (a *Agent) Run(ctx context.Context, request string) (string, error) {
	if !a.begin() {
		return "", ErrAgentBusy
	}
	defer a.end()

	st := NewRunState(uuid.NewString(), a.memory, a.config.MaxSteps, a.nextStepPrompt)
	runID := st.RunID
	logger := a.runLogger(st)

	scope := NewLifecycle(logger, a.config.CleanupTimeout, a.releasers()...)
	defer scope.Release(ctx)

	a.emitter.Emit(runID, 0, EventRunStart, map[string]any{"request": request, "max_steps": st.MaxSteps})
	logger.Info().Int("max_steps", st.MaxSteps).Msg("run started")

	if request != "" {
		a.memory.Append(unifiedllm.UserMessage(request))
	}

	results := a.loop(ctx, st, logger)
	output := "No steps executed"
	if len(results) > 0 {
		output = strings.Join(results, "\n")
	}

	if st.Phase == PhaseFailed {
		a.emitter.Emit(runID, st.Step, EventError, map[string]any{"error": st.Err.Error()})
		a.emitter.Emit(runID, st.Step, EventRunEnd, map[string]any{"phase": string(st.Phase)})
		logger.Error().Err(st.Err).Int("steps", st.Step).Msg("run failed")
		return output, st.Err
	}

	if request != "" {
		summarizer := NewSummarizer(a.client, a.config.SummaryWindow, a.config.SummarySnippet, logger)
		output += "\n\n" + summarizer.Summarize(ctx, request, a.memory.Messages())
	}

	a.emitter.Emit(runID, st.Step, EventRunEnd, map[string]any{"phase": string(st.Phase), "steps": st.Step})
	logger.Info().Int("steps", st.Step).Bool("terminal", st.Terminal).Msg("run finished")
	return output, nil
}

// loop drives steps until st is finished and returns one trace line per step.
func (a *Agent) loop(ctx context.Context, st *RunState, logger zerolog.Logger) []string {
	var results []string
	for !st.Finished() {
		if err := ctx.Err(); err != nil {
			st.fail(err)
			break
		}

		result, err := a.Step(ctx, st)
		if err != nil {
			results = append(results, fmt.Sprintf("Step %d: Error: %v", st.Step, err))
			break
		}

		if DetectStuck(st.Memory.View(a.config.MaxContextMessages), a.config.DuplicateThreshold) {
			logger.Warn().Int("step", st.Step).Msg("agent detected stuck state, steering")
			a.emitter.Emit(st.RunID, st.Step, EventStuckDetected, nil)
			st.Memory.Append(unifiedllm.UserMessage(StuckPrompt))
		}

		results = append(results, fmt.Sprintf("Step %d: %s", st.Step, result))

		if a.config.StallThreshold > 0 && st.idleSteps >= a.config.StallThreshold {
			logger.Warn().Int("idle_steps", st.idleSteps).Msg("no action taken, stopping")
			results = append(results, fmt.Sprintf("Terminated: No action taken for %d consecutive steps", st.idleSteps))
			st.Phase = PhaseDone
		}
	}

	if st.Phase != PhaseFailed && !st.Terminal && st.Phase != PhaseDone && st.Step >= st.MaxSteps {
		logger.Warn().Int("max_steps", st.MaxSteps).Msg("step budget exhausted")
		a.emitter.Emit(st.RunID, st.Step, EventStepLimit, map[string]any{"max_steps": st.MaxSteps})
		results = append(results, fmt.Sprintf("Terminated: Reached max steps (%d)", st.MaxSteps))
	}
	if st.Phase != PhaseFailed {
		st.Phase = PhaseDone
	}
	return results
}

// runLogger returns st's logger, deriving it from the agent's logger with
// the run_id and agent fields on first use.
func (a *Agent) runLogger(st *RunState) zerolog.Logger {
	if st.logger == nil {
		l := a.logger.With().Str("run_id", st.RunID).Str("agent", a.name).Logger()
		st.logger = &l
	}
	return *st.logger
}

// releasers lists the resources a run must give back.
func (a *Agent) releasers() []Releaser {
	rs := []Releaser{{Name: "tools", Release: a.tools.Cleanup}}
	if a.browser != nil {
		rs = append(rs, Releaser{Name: "browser", Release: a.browser.CloseSession})
	}
	return rs
}
