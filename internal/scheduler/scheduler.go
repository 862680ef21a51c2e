// Package scheduler runs the poll cycle: fetch inbound messages, apply
// commands, fire due reminders, run the daily reset, then commit.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/notexe/reminder-bot/internal/command"
	"github.com/notexe/reminder-bot/internal/notify"
	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

// Scheduler runs one poll cycle per interval against a single store.
type Scheduler struct {
	store       *reminder.Store
	gateway     notify.Gateway
	interpreter *command.Interpreter
	engine      *Engine
	interval    time.Duration
	now         func() time.Time
	cursor      int64
	// resetDay is the date the daily reset last committed, so a poll
	// interval under a minute resets at most once.
	resetDay string
	logger      *slog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now as the source of the current time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler polling every interval.
func New(store *reminder.Store, gateway notify.Gateway, interpreter *command.Interpreter, engine *Engine, interval time.Duration, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		store:       store,
		gateway:     gateway,
		interpreter: interpreter,
		engine:      engine,
		interval:    interval,
		now:         time.Now,
		logger:      logger.With("component", "scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Announce sends the startup notice with the number of stored reminders.
func (s *Scheduler) Announce(ctx context.Context) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Application started. Serving %d reminders.\nLocal time: %s",
		n, s.now().Format("2006-01-02 15:04:05"))
	if _, err := s.gateway.Send(ctx, text, false); err != nil {
		return fmt.Errorf("failed to send startup notice: %w", err)
	}
	return nil
}

// Run blocks and runs Tick on interval + immediately on start.
// It exits when ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", s.interval)
	}

	s.logger.Info("started", "interval", s.interval)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("cycle failed", "error", err)
	}
}

// Tick runs a single cycle. Every mutation in the cycle commits together;
// inbound messages are acknowledged to the transport only after that
// commit, so a crash redelivers them.
func (s *Scheduler) Tick(ctx context.Context) error {
	wall := s.now()
	now := timelabel.FromTime(wall)
	day := wall.Format(time.DateOnly)

	batch, err := s.gateway.Fetch(ctx, s.cursor)
	if err != nil {
		return fmt.Errorf("failed to fetch inbound messages: %w", err)
	}

	var (
		summary command.Summary
		fired   int
		reset   bool
	)
	err = s.store.InTx(ctx, func(tx *reminder.Tx) error {
		var err error
		if summary, err = s.interpreter.Process(ctx, tx, batch.Messages, now); err != nil {
			return fmt.Errorf("failed to process messages: %w", err)
		}
		if fired, err = s.engine.Fire(ctx, tx, now); err != nil {
			return fmt.Errorf("failed to fire reminders: %w", err)
		}
		if s.resetDay == day {
			return nil
		}
		if reset, err = s.engine.Reset(ctx, tx, now); err != nil {
			return fmt.Errorf("failed to reset daily reminders: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.cursor = batch.Next
	if reset {
		s.resetDay = day
	}

	level := slog.LevelDebug
	if len(batch.Messages) > 0 || fired > 0 || reset {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "cycle complete",
		"now", now,
		"messages", len(batch.Messages),
		"rejected", summary.Rejected,
		"fired", fired,
		"reset", reset)
	return nil
}
