package agentloop

import (
	"sync"

	"github.com/martinemde/manus/unifiedllm"
)

// Memory is an append-only conversation log. Messages are copied in and out
// so nothing outside the log can change a stored message.
type Memory struct {
	mu       sync.RWMutex
	messages []unifiedllm.Message
}

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{}
}

// Append adds messages to the end of the log.
func (m *Memory) Append(msgs ...unifiedllm.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		m.messages = append(m.messages, cloneMessage(msg))
	}
}

// Len returns the number of stored messages.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Messages returns a copy of the full log.
func (m *Memory) Messages() []unifiedllm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneMessages(m.messages)
}

// Recent returns a copy of the last n messages, or all of them when fewer
// are stored.
func (m *Memory) Recent(n int) []unifiedllm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 {
		return nil
	}
	start := len(m.messages) - n
	if start < 0 {
		start = 0
	}
	return cloneMessages(m.messages[start:])
}

// View returns at most limit recent messages for a model request. Tool
// results at the front of the window whose assistant message fell outside
// it are dropped. A non-positive limit returns the whole log.
func (m *Memory) View(limit int) []unifiedllm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	start := 0
	if limit > 0 && len(m.messages) > limit {
		start = len(m.messages) - limit
	}
	for start < len(m.messages) && m.messages[start].Role == unifiedllm.RoleTool {
		start++
	}
	return cloneMessages(m.messages[start:])
}

func cloneMessages(msgs []unifiedllm.Message) []unifiedllm.Message {
	out := make([]unifiedllm.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = cloneMessage(msg)
	}
	return out
}

func cloneMessage(msg unifiedllm.Message) unifiedllm.Message {
	if len(msg.ToolCalls) == 0 {
		msg.ToolCalls = nil
		return msg
	}
	calls := make([]unifiedllm.ToolCall, len(msg.ToolCalls))
	for i, tc := range msg.ToolCalls {
		tc.Arguments = append([]byte(nil), tc.Arguments...)
		calls[i] = tc
	}
	msg.ToolCalls = calls
	return msg
}
