package reminder

import (
	"errors"

	"github.com/notexe/reminder-bot/internal/timelabel"
)

// ErrNotFound is returned when a reminder id has no row.
var ErrNotFound = errors.New("reminder not found")

// Reminder represents a scheduled time-of-day reminder.
type Reminder struct {
	ID int64 `json:"id"`
	// NotificationID is the message id of the last notification sent for
	// this reminder, 0 until it first fires. Replies are matched on it.
	NotificationID int64           `json:"notification_id,omitempty"`
	Name           string          `json:"name"`
	Daily          bool            `json:"daily"`
	Time           timelabel.Label `json:"time"`
	SnoozeUntil    timelabel.Label `json:"snooze_until"`
	Completed      bool            `json:"completed"`
	// Malformed is set when a stored time or snooze_until could not be
	// parsed. The bad label reads as unset and the reminder never fires
	// until a save rewrites it.
	Malformed bool `json:"malformed,omitempty"`
}

// DueAt is the time the reminder fires next: SnoozeUntil when set,
// otherwise Time. A snooze always takes precedence.
func (r Reminder) DueAt() timelabel.Label {
	if !r.SnoozeUntil.IsZero() {
		return r.SnoozeUntil
	}
	return r.Time
}

// Acknowledge completes the current occurrence and clears any snooze.
// Acknowledging an already completed reminder changes nothing.
func (r *Reminder) Acknowledge() {
	r.Completed = true
	r.SnoozeUntil = timelabel.Label{}
}

// SnoozeTo overrides the due time until the reminder is next acknowledged.
func (r *Reminder) SnoozeTo(until timelabel.Label) {
	r.SnoozeUntil = until
}

// Fired records that notification id was sent at now and re-arms the
// reminder snoozeMinutes later. Firing never completes a reminder.
func (r *Reminder) Fired(notificationID int64, now timelabel.Label, snoozeMinutes int) {
	r.NotificationID = notificationID
	r.SnoozeUntil = now.AddMinutes(snoozeMinutes)
}
