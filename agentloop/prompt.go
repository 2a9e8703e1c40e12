package agentloop

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/martinemde/manus/unifiedllm"
)

// BrowserToolName is the tool whose recent use switches the next-step prompt
// to the browser-context variant.
const BrowserToolName = "browser_use"

// DefaultNextStepPrompt guides the model at every step unless a
// context-specific variant applies.
const DefaultNextStepPrompt = "Based on user needs, proactively select the most appropriate tool or combination of tools. " +
	"For complex tasks, break the problem down and use different tools step by step to solve it. " +
	"After using each tool, clearly explain the execution results and suggest the next steps.\n\n" +
	"If you want to stop the interaction at any point, use the `terminate` tool/function call."

// DefaultSystemPrompt returns the system prompt for an agent working in dir.
func DefaultSystemPrompt(dir string) string {
	return "You are Manus, an all-capable AI assistant, aimed at solving any task presented by the user. " +
		"You have various tools at your disposal that you can call upon to efficiently complete complex requests. " +
		"Whether it's programming, information retrieval, file processing, or web browsing, you can handle it all. " +
		fmt.Sprintf("The initial directory is: %s", dir)
}

// BrowserContext is the browser session collaborator.
type BrowserContext interface {
	// FormatContextPrompt renders a next-step prompt describing the current
	// page and task state.
	FormatContextPrompt(ctx context.Context) (string, error)
	// CloseSession releases the browser session.
	CloseSession(ctx context.Context) error
}

// ContextAdapter selects the next-step prompt for a think phase.
type ContextAdapter struct {
	toolName string
	window   int
	browser  BrowserContext
	logger   zerolog.Logger
}

// NewContextAdapter creates an adapter that inspects the last window
// messages for calls to toolName. A nil browser disables substitution.
func NewContextAdapter(toolName string, window int, browser BrowserContext, logger zerolog.Logger) *ContextAdapter {
	return &ContextAdapter{
		toolName: toolName,
		window:   window,
		browser:  browser,
		logger:   logger,
	}
}

// BrowserInUse reports whether any of recent invoked the browser tool,
// either as an assistant tool call or as a tool result.
func (c *ContextAdapter) BrowserInUse(recent []unifiedllm.Message) bool {
	for _, msg := range recent {
		if msg.Role == unifiedllm.RoleTool && msg.Name == c.toolName {
			return true
		}
		for _, tc := range msg.ToolCalls {
			if tc.Name == c.toolName {
				return true
			}
		}
	}
	return false
}

// SelectPrompt returns the prompt for the next think phase and whether it
// differs from def. If rendering the browser prompt fails, def is used.
func (c *ContextAdapter) SelectPrompt(ctx context.Context, mem *Memory, def string) (string, bool) {
	if c.browser == nil || c.window <= 0 {
		return def, false
	}
	if !c.BrowserInUse(mem.Recent(c.window)) {
		return def, false
	}
	prompt, err := c.browser.FormatContextPrompt(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("browser context prompt unavailable, using default")
		return def, false
	}
	if prompt == "" {
		return def, false
	}
	return prompt, true
}
