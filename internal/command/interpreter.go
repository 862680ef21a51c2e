// Package command turns inbound chat messages into reminder mutations.
//
// A message that replies to a notification is matched to its reminder by
// notification id: "y" acknowledges it and a bare HHMM snoozes it. Other
// messages are either "list" or a new reminder written as
// name<delim>HHMM<delim>daily, where daily is "1" for a recurring reminder.
package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/notexe/reminder-bot/internal/notify"
	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

// ErrMalformedCommand is returned for a new-reminder message that does not
// split into name, time and daily flag.
var ErrMalformedCommand = errors.New("malformed command")

// Store is the unit of work commands are applied to.
type Store interface {
	FindByNotificationID(ctx context.Context, id int64) (*reminder.Reminder, error)
	FindPendingByDueTime(ctx context.Context) ([]reminder.Reminder, error)
	Create(ctx context.Context, r *reminder.Reminder) (int64, error)
	Save(ctx context.Context, r reminder.Reminder) error
}

// Sender delivers listing output and error reports.
type Sender interface {
	Send(ctx context.Context, text string, markdown bool) (int64, error)
}

// Action is what a message resolved to.
type Action int

const (
	ActionIgnored Action = iota
	ActionAcknowledged
	ActionSnoozed
	ActionListed
	ActionCreated
)

func (a Action) String() string {
	switch a {
	case ActionAcknowledged:
		return "acknowledged"
	case ActionSnoozed:
		return "snoozed"
	case ActionListed:
		return "listed"
	case ActionCreated:
		return "created"
	default:
		return "ignored"
	}
}

// Summary counts what one batch of messages did.
type Summary struct {
	Actions  map[Action]int
	Rejected int
}

// Interpreter applies chat commands to a Store.
type Interpreter struct {
	delimiter    string
	sender       Sender
	reportErrors bool
	logger       *slog.Logger
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithErrorReports makes the interpreter answer rejected messages in chat.
func WithErrorReports(enabled bool) Option {
	return func(in *Interpreter) { in.reportErrors = enabled }
}

// New creates an Interpreter splitting new-reminder messages on delimiter.
func New(delimiter string, sender Sender, logger *slog.Logger, opts ...Option) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	in := &Interpreter{
		delimiter: delimiter,
		sender:    sender,
		logger:    logger.With("component", "command"),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// Process handles messages in order. A message that cannot be parsed, or
// whose reply fails to send, is logged and skipped; only store failures
// abort the batch.
func (in *Interpreter) Process(ctx context.Context, store Store, messages []notify.Message, now timelabel.Label) (Summary, error) {
	summary := Summary{Actions: make(map[Action]int)}

	for _, msg := range messages {
		action, err := in.Handle(ctx, store, msg, now)
		switch {
		case err == nil:
			summary.Actions[action]++
		case isRejection(err):
			summary.Rejected++
			in.logger.Warn("rejected message", "text", msg.Text, "error", err)
			in.report(ctx, msg, err)
		case errors.Is(err, notify.ErrTransport):
			in.logger.Error("failed to answer message", "text", msg.Text, "error", err)
		default:
			return summary, err
		}
	}

	return summary, nil
}

func isRejection(err error) bool {
	return errors.Is(err, ErrMalformedCommand) || errors.Is(err, timelabel.ErrMalformed)
}

func (in *Interpreter) report(ctx context.Context, msg notify.Message, err error) {
	if !in.reportErrors {
		return
	}
	text := fmt.Sprintf("Could not understand %q: %v", msg.Text, err)
	if _, sendErr := in.sender.Send(ctx, text, false); sendErr != nil {
		in.logger.Error("failed to report rejected message", "error", sendErr)
	}
}

// Handle applies a single message.
func (in *Interpreter) Handle(ctx context.Context, store Store, msg notify.Message, now timelabel.Label) (Action, error) {
	text := strings.TrimSpace(msg.Text)

	if msg.IsReply() {
		return in.handleReply(ctx, store, msg.ReplyTo, text)
	}

	if strings.EqualFold(text, "list") {
		return ActionListed, in.list(ctx, store, now)
	}

	return in.create(ctx, store, text)
}

func (in *Interpreter) handleReply(ctx context.Context, store Store, replyTo int64, text string) (Action, error) {
	r, err := store.FindByNotificationID(ctx, replyTo)
	if err != nil {
		return ActionIgnored, err
	}
	if r == nil {
		in.logger.Debug("reply matches no reminder", "reply_to", replyTo)
		return ActionIgnored, nil
	}

	switch {
	case strings.EqualFold(text, "y"):
		if r.Completed && r.SnoozeUntil.IsZero() {
			return ActionAcknowledged, nil
		}
		r.Acknowledge()
		if err := store.Save(ctx, *r); err != nil {
			return ActionIgnored, err
		}
		in.logger.Info("reminder acknowledged", "id", r.ID, "name", r.Name)
		return ActionAcknowledged, nil

	case isDigits(text):
		until, err := timelabel.Parse(text)
		if err != nil {
			return ActionIgnored, fmt.Errorf("snooze %q: %w", r.Name, err)
		}
		r.SnoozeTo(until)
		if err := store.Save(ctx, *r); err != nil {
			return ActionIgnored, err
		}
		in.logger.Info("reminder snoozed", "id", r.ID, "name", r.Name, "until", until)
		return ActionSnoozed, nil

	default:
		return ActionIgnored, nil
	}
}

// list sends the pending reminders still due later today.
func (in *Interpreter) list(ctx context.Context, store Store, now timelabel.Label) error {
	pending, err := store.FindPendingByDueTime(ctx)
	if err != nil {
		return err
	}

	upcoming := DueAfter(pending, now)
	if len(upcoming) == 0 {
		_, err := in.sender.Send(ctx, NoRemindersMessage, false)
		return err
	}

	_, err = in.sender.Send(ctx, FormatListing(upcoming), true)
	return err
}

func (in *Interpreter) create(ctx context.Context, store Store, text string) (Action, error) {
	r, err := ParseNewReminder(text, in.delimiter)
	if err != nil {
		return ActionIgnored, err
	}

	id, err := store.Create(ctx, &r)
	if err != nil {
		return ActionIgnored, err
	}
	in.logger.Info("reminder created", "id", id, "name", r.Name, "time", r.Time, "daily", r.Daily)
	return ActionCreated, nil
}

// ParseNewReminder parses name<delim>HHMM<delim>daily into a pending
// reminder. Any daily flag other than "1" means a one-off reminder.
func ParseNewReminder(text, delimiter string) (reminder.Reminder, error) {
	parts := strings.Split(text, delimiter)
	if len(parts) != 3 {
		return reminder.Reminder{}, fmt.Errorf("%w: want name%stime%sdaily, got %d part(s)",
			ErrMalformedCommand, delimiter, delimiter, len(parts))
	}

	name := strings.TrimSpace(parts[0])
	if name == "" {
		return reminder.Reminder{}, fmt.Errorf("%w: name is empty", ErrMalformedCommand)
	}

	at, err := timelabel.Parse(strings.TrimSpace(parts[1]))
	if err != nil {
		return reminder.Reminder{}, fmt.Errorf("reminder %q: %w", name, err)
	}

	return reminder.Reminder{
		Name:  name,
		Daily: strings.TrimSpace(parts[2]) == "1",
		Time:  at,
	}, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
