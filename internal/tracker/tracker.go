// Package tracker runs the periodic drivers that keep positions marked to
// market, exits evaluated, and the market cache fresh. Each tracker is an
// explicit service with Start/Stop and a bounded, cancellable cycle — no
// ambient timers.
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Tracker drives one cycle function on a fixed interval. Every cycle runs
// under its own timeout so a wedged external call cannot block the loop, and
// Stop cancels the in-flight cycle as well as future ones.
type Tracker struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	cycle    func(ctx context.Context) error
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a tracker over a cycle function.
func New(name string, interval, timeout time.Duration, cycle func(ctx context.Context) error) *Tracker {
	return &Tracker{
		name:     name,
		interval: interval,
		timeout:  timeout,
		cycle:    cycle,
		now:      time.Now,
	}
}

// WithClock replaces the tracker's clock, for deterministic tests.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	t.now = now
	return t
}

// Now returns the tracker's current time.
func (t *Tracker) Now() time.Time {
	return t.now()
}

// Start launches the loop. No-op when already running.
func (t *Tracker) Start(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				t.runCycle(loopCtx)
			}
		}
	}()

	log.Info().Str("tracker", t.name).Dur("interval", t.interval).Msg("⏱️ Tracker started")
}

// Stop cancels the current cycle and prevents further ones. Blocks until the
// loop goroutine exits.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel := t.cancel
	done := t.done
	t.mu.Unlock()

	cancel()
	<-done
	log.Info().Str("tracker", t.name).Msg("⏹️ Tracker stopped")
}

// Running reports whether the loop is active.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// ForceCycle runs one cycle immediately, outside the schedule.
func (t *Tracker) ForceCycle(ctx context.Context) error {
	return t.runCycle(ctx)
}

func (t *Tracker) runCycle(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, t.timeout)
	defer cancel()

	started := t.now()
	err := t.cycle(ctx)
	elapsed := t.now().Sub(started)

	if err != nil {
		log.Error().Err(err).Str("tracker", t.name).Dur("took", elapsed).Msg("Cycle failed")
		return err
	}
	log.Debug().Str("tracker", t.name).Dur("took", elapsed).Msg("Cycle complete")
	return nil
}
