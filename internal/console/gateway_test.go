package console

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/reminder-bot/internal/notify"
	"github.com/notexe/reminder-bot/internal/reminder"
	"github.com/notexe/reminder-bot/internal/timelabel"
)

func TestParseLine(t *testing.T) {
	assert.Equal(t, notify.Message{Text: "y", ReplyTo: 3}, ParseLine("@3 y"))
	assert.Equal(t, notify.Message{Text: "1130", ReplyTo: 12}, ParseLine("@12   1130"))
	assert.Equal(t, notify.Message{Text: "list"}, ParseLine("list"))
	assert.Equal(t, notify.Message{Text: "@x y"}, ParseLine("@x y"))
}

func TestSendNumbersMessages(t *testing.T) {
	var out bytes.Buffer
	g := New(&out, 0)

	first, err := g.Send(context.Background(), "Reminder: tea", false)
	require.NoError(t, err)
	second, err := g.Send(context.Background(), "Reminder: bins", false)
	require.NoError(t, err)

	assert.EqualValues(t, 1, first)
	assert.EqualValues(t, 2, second)
	assert.Contains(t, out.String(), "Reminder: tea")
	assert.Contains(t, out.String(), "[2]")
}

func TestFetchRedeliversUntilCursorAdvances(t *testing.T) {
	g := New(&bytes.Buffer{}, 0)
	g.Push("list")
	g.Push("  ")
	g.Push("@1 y")

	batch, err := g.Fetch(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 2)
	assert.EqualValues(t, 2, batch.Next)

	again, err := g.Fetch(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, batch, again)

	g.Push("Tea|1600|0")
	next, err := g.Fetch(context.Background(), batch.Next)
	require.NoError(t, err)
	assert.Equal(t, []notify.Message{{Text: "Tea|1600|0"}}, next.Messages)
	assert.EqualValues(t, 3, next.Next)
}

func TestRestartContinuesNotificationIDs(t *testing.T) {
	ctx := context.Background()
	store, err := reminder.Open(filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	defer store.Close()

	fire := func(g *Gateway, name string) int64 {
		t.Helper()
		id, err := g.Send(ctx, "Reminder: "+name, false)
		require.NoError(t, err)
		r := reminder.Reminder{Name: name, Time: timelabel.MustParse("0900")}
		r.Fired(id, timelabel.MustParse("0900"), 10)
		require.NoError(t, store.InTx(ctx, func(tx *reminder.Tx) error {
			_, err := tx.Create(ctx, &r)
			return err
		}))
		return id
	}

	first := fire(New(&bytes.Buffer{}, 0), "first")

	last, err := store.MaxNotificationID(ctx)
	require.NoError(t, err)
	second := fire(New(&bytes.Buffer{}, last), "second")
	assert.Greater(t, second, first)

	require.NoError(t, store.InTx(ctx, func(tx *reminder.Tx) error {
		r, err := tx.FindByNotificationID(ctx, second)
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "second", r.Name)
		return nil
	}))
}
