package agentloop

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestLifecycleReleasesOnce(t *testing.T) {
	var order []string
	l := NewLifecycle(zerolog.Nop(), time.Second,
		Releaser{Name: "first", Release: func(context.Context) error { order = append(order, "first"); return nil }},
		Releaser{Name: "second", Release: func(context.Context) error { order = append(order, "second"); return nil }},
		Releaser{Name: "nil"},
	)

	l.Release(context.Background())
	l.Release(context.Background())
	assert.Equal(t, []string{"second", "first"}, order)
}

func TestLifecycleIgnoresCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var releaseErr error
	var hasDeadline bool
	l := NewLifecycle(zerolog.Nop(), time.Second, Releaser{Name: "r", Release: func(ctx context.Context) error {
		releaseErr = ctx.Err()
		_, hasDeadline = ctx.Deadline()
		return nil
	}})
	l.Release(ctx)

	assert.NoError(t, releaseErr)
	assert.True(t, hasDeadline)
}

func TestLifecycleLogsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ran := false
	l := NewLifecycle(logger, 0,
		Releaser{Name: "after", Release: func(context.Context) error { ran = true; return nil }},
		Releaser{Name: "browser", Release: func(context.Context) error { return errors.New("already closed") }},
	)
	l.Release(context.Background())

	assert.True(t, ran, "a failing releaser does not stop the others")
	assert.Contains(t, buf.String(), "cleanup failed")
	assert.Contains(t, buf.String(), `"resource":"browser"`)
	assert.Contains(t, buf.String(), "already closed")
}

func TestLifecycleRecoversPanickingReleaser(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	ran := false
	l := NewLifecycle(logger, 0,
		Releaser{Name: "tools", Release: func(context.Context) error { ran = true; return nil }},
		Releaser{Name: "browser", Release: func(context.Context) error { panic("session gone") }},
	)

	assert.NotPanics(t, func() { l.Release(context.Background()) })
	assert.True(t, ran, "releasers after a panic still run")
	assert.Contains(t, buf.String(), "cleanup failed")
	assert.Contains(t, buf.String(), `"resource":"browser"`)
	assert.Contains(t, buf.String(), "session gone")
}
