package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/reminder-bot/internal/command"
	"github.com/notexe/reminder-bot/internal/notify"
	"github.com/notexe/reminder-bot/internal/reminder"
)

type sentMessage struct {
	id       int64
	text     string
	markdown bool
}

// fakeGateway queues inbound batches and records outbound messages.
type fakeGateway struct {
	inbox    []notify.Message
	sent     []sentMessage
	cursors  []int64
	fetchErr error
}

func (f *fakeGateway) Send(ctx context.Context, text string, markdown bool) (int64, error) {
	id := int64(500 + len(f.sent))
	f.sent = append(f.sent, sentMessage{id, text, markdown})
	return id, nil
}

func (f *fakeGateway) Fetch(ctx context.Context, cursor int64) (notify.Batch, error) {
	f.cursors = append(f.cursors, cursor)
	if f.fetchErr != nil {
		return notify.Batch{}, f.fetchErr
	}
	msgs := f.inbox
	f.inbox = nil
	return notify.Batch{Messages: msgs, Next: cursor + int64(len(msgs))}, nil
}

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func (c *testClock) set(hhmm string) {
	var h, m int
	fmt.Sscanf(hhmm, "%02d%02d", &h, &m)
	c.t = time.Date(2024, 5, 1, h, m, 30, 0, time.Local)
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeGateway, *testClock, *reminder.Store) {
	t.Helper()
	return newTestSchedulerAt(t, filepath.Join(t.TempDir(), "reminders.db"))
}

func newTestSchedulerAt(t *testing.T, path string) (*Scheduler, *fakeGateway, *testClock, *reminder.Store) {
	t.Helper()
	store, err := reminder.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	gw := &fakeGateway{}
	clock := &testClock{}
	in := command.New("|", gw, discard)
	engine := NewEngine(gw, 10, label("0300"), discard)
	s := New(store, gw, in, engine, time.Minute, discard, WithClock(clock.now))
	return s, gw, clock, store
}

func allReminders(t *testing.T, store *reminder.Store) []reminder.Reminder {
	t.Helper()
	var out []reminder.Reminder
	require.NoError(t, store.InTx(context.Background(), func(tx *reminder.Tx) error {
		var err error
		out, err = tx.All(context.Background())
		return err
	}))
	return out
}

func TestTickCreatedReminderFiresInSameCycle(t *testing.T) {
	s, gw, clock, store := newTestScheduler(t)
	clock.set("0900")
	gw.inbox = []notify.Message{{Text: "Call mom|0900|1"}}

	require.NoError(t, s.Tick(context.Background()))

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "Reminder: Call mom", gw.sent[0].text)

	rs := allReminders(t, store)
	require.Len(t, rs, 1)
	assert.Equal(t, gw.sent[0].id, rs[0].NotificationID)
	assert.Equal(t, "0910", rs[0].SnoozeUntil.String())
	assert.False(t, rs[0].Completed)
}

func TestTickFullLifecycle(t *testing.T) {
	s, gw, clock, store := newTestScheduler(t)
	ctx := context.Background()

	clock.set("0800")
	gw.inbox = []notify.Message{{Text: "Stretch|0900|1"}}
	require.NoError(t, s.Tick(ctx))
	assert.Empty(t, gw.sent)

	clock.set("0900")
	require.NoError(t, s.Tick(ctx))
	require.Len(t, gw.sent, 1)
	notification := gw.sent[0].id

	clock.set("0910")
	require.NoError(t, s.Tick(ctx))
	require.Len(t, gw.sent, 2, "unacknowledged reminder fires again after the snooze")
	notification = gw.sent[1].id

	clock.set("0912")
	gw.inbox = []notify.Message{{Text: "y", ReplyTo: notification}}
	require.NoError(t, s.Tick(ctx))
	rs := allReminders(t, store)
	assert.True(t, rs[0].Completed)
	assert.True(t, rs[0].SnoozeUntil.IsZero())

	clock.set("0920")
	require.NoError(t, s.Tick(ctx))
	assert.Len(t, gw.sent, 2, "acknowledged reminder stays quiet")

	clock.set("0300")
	require.NoError(t, s.Tick(ctx))
	rs = allReminders(t, store)
	assert.False(t, rs[0].Completed, "daily reset re-arms the reminder")
}

func TestTickFetchFailureKeepsCursor(t *testing.T) {
	s, gw, clock, _ := newTestScheduler(t)
	clock.set("1200")

	gw.inbox = []notify.Message{{Text: "a|1300|0"}, {Text: "b|1300|0"}}
	require.NoError(t, s.Tick(context.Background()))

	gw.fetchErr = fmt.Errorf("%w: offline", notify.ErrTransport)
	err := s.Tick(context.Background())
	assert.ErrorIs(t, err, notify.ErrTransport)

	gw.fetchErr = nil
	require.NoError(t, s.Tick(context.Background()))
	assert.Equal(t, []int64{0, 2, 2}, gw.cursors)
}

func TestAnnounce(t *testing.T) {
	s, gw, clock, _ := newTestScheduler(t)
	clock.set("0700")
	gw.inbox = []notify.Message{{Text: "a|1300|0"}}
	require.NoError(t, s.Tick(context.Background()))

	require.NoError(t, s.Announce(context.Background()))
	require.Len(t, gw.sent, 1)
	assert.Contains(t, gw.sent[0].text, "Application started. Serving 1 reminders.")
	assert.Contains(t, gw.sent[0].text, "Local time: 2024-05-01 07:00:30")
}

func TestRunStopsOnCancel(t *testing.T) {
	s, _, clock, _ := newTestScheduler(t)
	clock.set("1200")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestTickResetsOncePerDay(t *testing.T) {
	s, gw, clock, store := newTestScheduler(t)
	ctx := context.Background()

	clock.set("0200")
	gw.inbox = []notify.Message{{Text: "Walk|0500|1"}}
	require.NoError(t, s.Tick(ctx))
	require.NoError(t, store.InTx(ctx, func(tx *reminder.Tx) error {
		r, err := tx.Get(ctx, 1)
		if err != nil {
			return err
		}
		r.Acknowledge()
		return tx.Save(ctx, *r)
	}))

	clock.set("0300")
	require.NoError(t, s.Tick(ctx))
	assert.False(t, allReminders(t, store)[0].Completed)

	require.NoError(t, store.InTx(ctx, func(tx *reminder.Tx) error {
		r, err := tx.Get(ctx, 1)
		if err != nil {
			return err
		}
		r.Acknowledge()
		return tx.Save(ctx, *r)
	}))
	clock.t = clock.t.Add(20 * time.Second)
	require.NoError(t, s.Tick(ctx))
	assert.True(t, allReminders(t, store)[0].Completed, "second tick in the reset minute leaves it alone")

	clock.t = clock.t.Add(24 * time.Hour)
	require.NoError(t, s.Tick(ctx))
	assert.False(t, allReminders(t, store)[0].Completed, "next day resets again")
}

func TestTickSkipsRowWithBadLabel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reminders.db")
	s, gw, clock, store := newTestSchedulerAt(t, path)
	ctx := context.Background()

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO scheduled_reminders (name, daily, time, snooze_until, completed)
		VALUES ('legacy', 0, '0900', '930', 0)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	clock.set("0800")
	gw.inbox = []notify.Message{{Text: "Water plants|0900|0"}}
	require.NoError(t, s.Tick(ctx))

	clock.set("0900")
	require.NoError(t, s.Tick(ctx))

	require.Len(t, gw.sent, 1)
	assert.Equal(t, "Reminder: Water plants", gw.sent[0].text)

	rs := allReminders(t, store)
	require.Len(t, rs, 2)
	assert.True(t, rs[0].Malformed)
	assert.Zero(t, rs[0].NotificationID)
	assert.Equal(t, gw.sent[0].id, rs[1].NotificationID)
}
