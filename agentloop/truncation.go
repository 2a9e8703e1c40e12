package agentloop

import (
	"fmt"
	"unicode/utf8"
)

// TruncateObservation cuts s to at most limit runes. A non-positive limit
// disables truncation.
func TruncateObservation(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// Truncate shortens s to limit runes and appends an ellipsis when anything
// was cut. Used for log fields and summary snippets.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	return TruncateObservation(s, limit) + "..."
}

// formatObservation renders a tool outcome the way the model sees it.
func formatObservation(name, output string, err error) string {
	switch {
	case err != nil:
		return "Error: " + err.Error()
	case output == "":
		return fmt.Sprintf("Cmd `%s` completed with no output", name)
	default:
		return fmt.Sprintf("Observed output of cmd `%s` executed:\n%s", name, output)
	}
}
