// Package scheduler runs the poll loop: fetch, de-duplicate, format,
// deliver, record, sleep.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"twittermoo/internal/backoff"
	"twittermoo/internal/filter"
	"twittermoo/internal/model"
	"twittermoo/internal/storage"
)

// ErrMessageTooLong is returned when a formatted line exceeds the length
// limit under the abort policy.
var ErrMessageTooLong = errors.New("formatted message too long")

// Fetcher is the upstream source of timeline items and direct messages.
type Fetcher interface {
	Timeline(ctx context.Context) ([]model.Item, error)
	DirectMessages(ctx context.Context) ([]model.Item, error)
}

// Sender delivers one formatted line downstream.
type Sender interface {
	Deliver(ctx context.Context, line string) error
}

// Options controls pacing and the oversized-line policy.
type Options struct {
	// Wait is the pause after each delivered message.
	Wait time.Duration
	// Period is the baseline lookback: on a cold start, items older than
	// now-Period are recorded as seeded instead of delivered.
	Period time.Duration
	// Every is the pause between cycles.
	Every time.Duration
	// Once runs a single cycle without baseline seeding.
	Once bool
	// MaxLength is the longest line, in characters, that may be sent.
	// Zero or less disables the check; the command line never passes that.
	MaxLength int
	// Oversize decides what happens to longer lines.
	Oversize OversizePolicy
}

// DefaultOptions mirrors the command line defaults.
func DefaultOptions() Options {
	return Options{
		Wait:      20 * time.Second,
		Period:    time.Hour,
		Every:     5 * time.Minute,
		MaxLength: 250,
		Oversize:  OversizeAbort,
	}
}

// Scheduler drives the poll cycle against a single ledger.
type Scheduler struct {
	store   storage.Storage
	fetcher Fetcher
	sender  Sender
	gate    filter.Gate
	sleeper backoff.Sleeper
	now     func() time.Time
	errOut  io.Writer
	log     *slog.Logger
	opts    Options

	watermark time.Time
}

// New creates a Scheduler that forwards every new item and sleeps on real timers.
func New(store storage.Storage, fetcher Fetcher, sender Sender, opts Options, log *slog.Logger) *Scheduler {
	return &Scheduler{
		store:   store,
		fetcher: fetcher,
		sender:  sender,
		gate:    filter.MentionGate{},
		sleeper: backoff.Clock{},
		now:     time.Now,
		errOut:  os.Stderr,
		log:     log,
		opts:    opts,
	}
}

// SetGate replaces the content gate applied to new items.
func (s *Scheduler) SetGate(g filter.Gate) {
	s.gate = g
}

// SetSleeper overrides how pacing and cycle pauses are slept.
func (s *Scheduler) SetSleeper(sl backoff.Sleeper) {
	s.sleeper = sl
}

// SetClock overrides the time source.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.now = now
}

// SetErrorOutput overrides where oversized-line diagnostics are written.
func (s *Scheduler) SetErrorOutput(w io.Writer) {
	s.errOut = w
}

// Watermark returns the newest direct message time observed so far.
func (s *Scheduler) Watermark() time.Time {
	return s.watermark
}

// Run seeds the ledger on a cold start and then cycles until ctx is
// cancelled, a fatal error occurs, or, in once mode, after one cycle.
// Cancellation is not an error.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.opts.Once {
		n, err := s.Seed(ctx)
		if err != nil {
			return ignoreCancel(ctx, fmt.Errorf("baseline seed: %w", err))
		}
		s.log.Info("baseline seeded", "count", n)
	}

	s.watermark = s.now().Add(-s.opts.Period)
	s.log.Debug("entering main loop")

	for {
		if err := s.RunCycle(ctx); err != nil {
			return ignoreCancel(ctx, err)
		}
		if s.opts.Once {
			return nil
		}

		s.log.Debug("sleeping", "until", s.now().Add(s.opts.Every))
		if err := s.sleeper.Sleep(ctx, s.opts.Every); err != nil {
			return ignoreCancel(ctx, err)
		}
	}
}

// RunCycle performs one fetch/dedupe/deliver pass.
func (s *Scheduler) RunCycle(ctx context.Context) error {
	if err := s.observeDirectMessages(ctx); err != nil {
		return err
	}

	items, err := s.fetcher.Timeline(ctx)
	if err != nil {
		return fmt.Errorf("fetch timeline: %w", err)
	}
	s.log.Debug("timeline fetched", "count", len(items))

	// Providers return newest first; deliver in the order things were said.
	chronological := slices.Clone(items)
	slices.Reverse(chronological)

	sent := 0
	for _, item := range chronological {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered, err := s.processItem(ctx, item)
		if err != nil {
			return err
		}
		if delivered {
			sent++
		}
	}

	if sent > 0 {
		s.log.Info("sent messages", "count", sent)
	}
	return nil
}

func (s *Scheduler) observeDirectMessages(ctx context.Context) error {
	s.log.Debug("fetching direct messages", "since", s.watermark)

	msgs, err := s.fetcher.DirectMessages(ctx)
	if err != nil {
		return fmt.Errorf("fetch direct messages: %w", err)
	}
	for _, m := range msgs {
		s.log.Debug("direct message", "id", m.ID, "author", m.AuthorHandle, "text", m.Text)
		if m.CreatedAt.After(s.watermark) {
			s.watermark = m.CreatedAt
		}
	}
	return nil
}

// processItem handles one timeline item and reports whether it was sent.
func (s *Scheduler) processItem(ctx context.Context, item model.Item) (bool, error) {
	fp := item.Fingerprint()

	status, err := s.store.Get(ctx, fp)
	if err != nil {
		return false, fmt.Errorf("get status: %w", err)
	}

	switch status {
	case model.StatusDelivered:
		return false, nil
	case model.StatusUnknown:
	default:
		s.log.Debug("previously seeded item", "status", status, "fingerprint", fp,
			"author", item.AuthorName, "text", preview(item.Text))
		if err := s.store.Set(ctx, fp, model.StatusDelivered); err != nil {
			return false, fmt.Errorf("set status: %w", err)
		}
		return false, nil
	}

	s.log.Debug("new item", "fingerprint", fp, "author", item.AuthorName, "text", preview(item.Text))

	line := FormatLine(item)
	if handle, ok := filter.Mention(item.Text); ok {
		s.log.Debug("mention", "to", handle)
	}

	if !s.gate.Allow(item) {
		s.log.Debug("suppressed", "line", line)
		if err := s.store.Set(ctx, fp, model.StatusDelivered); err != nil {
			return false, fmt.Errorf("set status: %w", err)
		}
		// Every new item is paced, forwarded or not.
		return false, s.sleeper.Sleep(ctx, s.opts.Wait)
	}

	line, err = s.checkLength(line)
	if err != nil {
		return false, err
	}

	s.log.Debug("forwarding", "line", line)
	if err := s.sender.Deliver(ctx, line); err != nil {
		return false, fmt.Errorf("deliver: %w", err)
	}
	if err := s.store.Set(ctx, fp, model.StatusDelivered); err != nil {
		return false, fmt.Errorf("set status: %w", err)
	}

	if err := s.sleeper.Sleep(ctx, s.opts.Wait); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Scheduler) checkLength(line string) (string, error) {
	if s.opts.MaxLength <= 0 || runeLen(line) <= s.opts.MaxLength {
		return line, nil
	}
	switch s.opts.Oversize {
	case OversizeTruncate:
		s.log.Warn("truncating oversized message", "length", runeLen(line), "max", s.opts.MaxLength)
		return truncate(line, s.opts.MaxLength), nil
	default:
		_, _ = fmt.Fprintf(s.errOut, "%s...\n", headRunes(line, s.opts.MaxLength+1))
		return "", fmt.Errorf("%w: %d characters, limit %d", ErrMessageTooLong, runeLen(line), s.opts.MaxLength)
	}
}

func ignoreCancel(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}
