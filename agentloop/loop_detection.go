package agentloop

import (
	"strings"

	"github.com/martinemde/manus/unifiedllm"
)

// StuckPrompt is appended as a user message when the model keeps repeating
// the same reply.
const StuckPrompt = "Observed duplicate responses. Consider new strategies and avoid repeating ineffective paths already attempted."

// DetectStuck reports whether the last assistant message in history has
// non-empty text that earlier assistant messages already produced at least
// threshold times. A non-positive threshold disables detection.
func DetectStuck(history []unifiedllm.Message, threshold int) bool {
	if threshold <= 0 || len(history) < 2 {
		return false
	}

	last := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == unifiedllm.RoleAssistant {
			last = i
			break
		}
	}
	if last < 0 {
		return false
	}
	content := strings.TrimSpace(history[last].Content)
	if content == "" {
		return false
	}

	duplicates := 0
	for i := last - 1; i >= 0; i-- {
		msg := history[i]
		if msg.Role == unifiedllm.RoleAssistant && strings.TrimSpace(msg.Content) == content {
			duplicates++
			if duplicates >= threshold {
				return true
			}
		}
	}
	return false
}
