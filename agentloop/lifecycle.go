package agentloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/panics"
)

// DefaultCleanupTimeout bounds how long releasing resources may take.
const DefaultCleanupTimeout = 10 * time.Second

// Releaser frees one external resource.
type Releaser struct {
	Name    string
	Release func(ctx context.Context) error
}

// Lifecycle releases a run's resources exactly once. Release is meant to be
// deferred right after the scope is opened so every exit path reaches it.
type Lifecycle struct {
	releasers []Releaser
	timeout   time.Duration
	logger    zerolog.Logger
	once      sync.Once
}

// NewLifecycle opens a scope over releasers, which run in reverse order.
func NewLifecycle(logger zerolog.Logger, timeout time.Duration, releasers ...Releaser) *Lifecycle {
	if timeout <= 0 {
		timeout = DefaultCleanupTimeout
	}
	return &Lifecycle{
		releasers: releasers,
		timeout:   timeout,
		logger:    logger,
	}
}

// Release runs every releaser once. It detaches from ctx cancellation so
// an interrupted run still cleans up, but gives up after the timeout.
// Failures, panics included, are logged and never returned.
func (l *Lifecycle) Release(ctx context.Context) {
	l.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		for i := len(l.releasers) - 1; i >= 0; i-- {
			r := l.releasers[i]
			if r.Release == nil {
				continue
			}
			if err := release(ctx, r); err != nil {
				l.logger.Warn().Err(err).Str("resource", r.Name).Msg("cleanup failed")
				continue
			}
			l.logger.Debug().Str("resource", r.Name).Msg("released")
		}
	})
}

func release(ctx context.Context, r Releaser) (err error) {
	var pc panics.Catcher
	pc.Try(func() {
		err = r.Release(ctx)
	})
	if rec := pc.Recovered(); rec != nil {
		return fmt.Errorf("release %s panicked: %v", r.Name, rec.Value)
	}
	return err
}
