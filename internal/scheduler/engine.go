package scheduler

import (
	"context"
	"log/slog"

	"github.com/notexe/reminder-bot/internal/command"
	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

// TriggerStore is the part of the unit of work the trigger pass needs.
type TriggerStore interface {
	FindPending(ctx context.Context) ([]reminder.Reminder, error)
	Save(ctx context.Context, r reminder.Reminder) error
}

// ResetStore is the part of the unit of work the daily reset needs.
type ResetStore interface {
	ResetDailyCompletion(ctx context.Context) (int64, error)
}

// Engine fires due reminders and performs the daily reset.
type Engine struct {
	sender        command.Sender
	snoozeMinutes int
	resetAt       timelabel.Label
	logger        *slog.Logger
}

// NewEngine creates an Engine. Fired reminders are re-armed snoozeMinutes
// later; daily reminders are reset when the clock reads resetAt.
func NewEngine(sender command.Sender, snoozeMinutes int, resetAt timelabel.Label, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sender:        sender,
		snoozeMinutes: snoozeMinutes,
		resetAt:       resetAt,
		logger:        logger.With("component", "scheduler"),
	}
}

// Fire notifies every pending reminder due exactly at now and returns how
// many were sent. A reminder whose notification cannot be sent keeps its
// state, and one with an unreadable stored label is skipped; only store
// failures and cancellation are returned.
func (e *Engine) Fire(ctx context.Context, store TriggerStore, now timelabel.Label) (int, error) {
	pending, err := store.FindPending(ctx)
	if err != nil {
		return 0, err
	}

	fired := 0
	for _, r := range pending {
		if r.Malformed || r.DueAt() != now {
			continue
		}

		id, err := e.sender.Send(ctx, "Reminder: "+r.Name, false)
		if err != nil {
			if ctx.Err() != nil {
				return fired, ctx.Err()
			}
			e.logger.Error("failed to send reminder", "id", r.ID, "name", r.Name, "error", err)
			continue
		}

		r.Fired(id, now, e.snoozeMinutes)
		if err := store.Save(ctx, r); err != nil {
			return fired, err
		}
		fired++
		e.logger.Info("reminder fired", "id", r.ID, "name", r.Name,
			"notification_id", id, "snooze_until", r.SnoozeUntil)
	}
	return fired, nil
}

// Reset clears completion on daily reminders when now is the reset time.
// It reports whether the reset ran.
func (e *Engine) Reset(ctx context.Context, store ResetStore, now timelabel.Label) (bool, error) {
	if now != e.resetAt {
		return false, nil
	}
	n, err := store.ResetDailyCompletion(ctx)
	if err != nil {
		return false, err
	}
	e.logger.Info("daily reminders reset", "count", n)
	return true, nil
}
