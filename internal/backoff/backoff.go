// Package backoff implements the endless retry discipline shared by the
// upstream fetcher and the delivery channel.
package backoff

import (
	"context"
	"errors"
	"log/slog"
	"time"

	retry "github.com/sethvargo/go-retry"
)

// Policy describes the pause sequence between failed attempts: Attempts
// pauses of length Pause, then one Cooldown, after which the counter resets.
type Policy struct {
	Attempts int
	Pause    time.Duration
	Cooldown time.Duration
}

// DefaultPolicy is five 30-second retries followed by a two minute cooldown.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 5,
		Pause:    30 * time.Second,
		Cooldown: 120 * time.Second,
	}
}

// Backoff returns the policy's pause sequence. It never stops.
func (p Policy) Backoff() retry.Backoff {
	attempts := p.attempts()
	n := 0
	return retry.BackoffFunc(func() (time.Duration, bool) {
		n++
		if n > attempts {
			n = 0
			return p.Cooldown, false
		}
		return p.Pause, false
	})
}

// IsCooldown reports whether the pause after the given failure (counted
// from 1) is the cooldown rather than a regular pause.
func (p Policy) IsCooldown(failure int) bool {
	return failure > 0 && failure%(p.attempts()+1) == 0
}

func (p Policy) attempts() int {
	return max(p.Attempts, 1)
}

// Sleeper blocks for a duration or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to the Sleeper interface.
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep calls f(ctx, d).
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// Clock sleeps on real timers.
type Clock struct{}

// Sleep waits for d, returning ctx.Err() if ctx is cancelled first.
func (Clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Retrier runs operations under a Policy until they succeed, fail
// permanently, or ctx is cancelled.
type Retrier struct {
	policy    Policy
	sleeper   Sleeper
	transient func(error) bool
	log       *slog.Logger
}

// New creates a Retrier. transient decides which errors are retried; a nil
// transient retries every error.
func New(policy Policy, sleeper Sleeper, transient func(error) bool, log *slog.Logger) *Retrier {
	if sleeper == nil {
		sleeper = Clock{}
	}
	if transient == nil {
		transient = func(error) bool { return true }
	}
	return &Retrier{
		policy:    policy,
		sleeper:   sleeper,
		transient: transient,
		log:       log,
	}
}

// Do calls fn until it returns nil or a non-transient error. Context
// errors are never retried.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	b := r.policy.Backoff()
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return err
		}
		if !r.transient(err) {
			return err
		}

		pause, _ := b.Next()
		if r.policy.IsCooldown(attempt) {
			r.log.Warn("too many failures, cooling down", "op", op, "attempt", attempt, "pause", pause, "error", err)
		} else {
			r.log.Info("transient failure, retrying", "op", op, "attempt", attempt, "pause", pause, "error", err)
		}

		if err := r.sleeper.Sleep(ctx, pause); err != nil {
			return err
		}
	}
}
