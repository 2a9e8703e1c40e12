package agentloop

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateObservation(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"over", "abcdefgh", 5, "abcde"},
		{"disabled", "abcdefgh", 0, "abcdefgh"},
		{"multibyte", "日本語のテキスト", 3, "日本語"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TruncateObservation(tt.in, tt.limit))
		})
	}

	long := strings.Repeat("ß", 20000)
	got := TruncateObservation(long, 10000)
	assert.Equal(t, 10000, utf8.RuneCountInString(got))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
}

func TestFormatObservation(t *testing.T) {
	assert.Equal(t, "Observed output of cmd `bash` executed:\nhi", formatObservation("bash", "hi", nil))
	assert.Equal(t, "Cmd `bash` completed with no output", formatObservation("bash", "", nil))
	assert.Equal(t, "Error: nope", formatObservation("bash", "partial", errors.New("nope")))
}
