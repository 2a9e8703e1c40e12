package agentloop

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/martinemde/manus/unifiedllm"
)

const (
	// NoSummary is returned when the model gives no usable summary.
	NoSummary = "No summary available."

	summaryLabel        = "Summary: "
	summarySystemPrompt = "You are a helpful assistant that provides concise summaries of complex tasks."
	noToolsUsed         = "No tools were used."
)

// Summarizer produces the closing answer for a run.
type Summarizer struct {
	client  *unifiedllm.Client
	window  int
	snippet int
	logger  zerolog.Logger
}

// NewSummarizer creates a Summarizer that cites the last window tool
// results, each cut to snippet characters.
func NewSummarizer(client *unifiedllm.Client, window, snippet int, logger zerolog.Logger) *Summarizer {
	return &Summarizer{client: client, window: window, snippet: snippet, logger: logger}
}

// Summarize asks the model for a concise answer to request grounded in the
// recent tool results in history. Failures degrade to NoSummary.
func (s *Summarizer) Summarize(ctx context.Context, request string, history []unifiedllm.Message) string {
	prompt := BuildSummaryPrompt(request, ToolActions(history, s.window, s.snippet))

	resp, err := s.client.Ask(ctx,
		[]unifiedllm.Message{unifiedllm.UserMessage(prompt)},
		[]unifiedllm.Message{unifiedllm.SystemMessage(summarySystemPrompt)},
	)
	if err != nil {
		s.logger.Warn().Err(err).Msg("summary query failed")
		return NoSummary
	}
	if resp == nil || strings.TrimSpace(resp.Text()) == "" {
		return NoSummary
	}
	return summaryLabel + resp.Text()
}

// ToolActions describes the last window tool results in history as
// "Used <tool>: <result>" lines, oldest first.
func ToolActions(history []unifiedllm.Message, window, snippet int) []string {
	var actions []string
	for _, msg := range history {
		if msg.Role != unifiedllm.RoleTool {
			continue
		}
		actions = append(actions, fmt.Sprintf("Used %s: %s", msg.Name, Truncate(msg.Content, snippet)))
	}
	if window > 0 && len(actions) > window {
		actions = actions[len(actions)-window:]
	}
	return actions
}

// BuildSummaryPrompt renders the summarization request.
func BuildSummaryPrompt(request string, actions []string) string {
	taken := noToolsUsed
	if len(actions) > 0 {
		taken = strings.Join(actions, "\n")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the user's request: %q\n\n", request)
	b.WriteString("I've taken the following actions:\n")
	b.WriteString(taken)
	b.WriteString("\n\nPlease provide a concise summary of the results and directly answer the user's question.")
	return b.String()
}
