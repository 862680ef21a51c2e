package reminder

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notexe/reminder-bot/internal/timelabel"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite://" + filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *Store, reminders ...Reminder) []int64 {
	t.Helper()
	var ids []int64
	require.NoError(t, s.InTx(context.Background(), func(tx *Tx) error {
		for i := range reminders {
			id, err := tx.Create(context.Background(), &reminders[i])
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	}))
	return ids
}

func TestSQLitePath(t *testing.T) {
	assert.Equal(t, "db.db", sqlitePath("sqlite:///db.db"))
	assert.Equal(t, "/tmp/x.db", sqlitePath("sqlite:////tmp/x.db"))
	assert.Equal(t, "plain.db", sqlitePath("plain.db"))
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ids := seed(t, s, Reminder{Name: "Call mom", Daily: true, Time: timelabel.MustParse("0900")})
	require.Len(t, ids, 1)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	got, err := tx.Get(ctx, ids[0])
	require.NoError(t, err)
	assert.Equal(t, "Call mom", got.Name)
	assert.True(t, got.Daily)
	assert.Equal(t, "0900", got.Time.String())
	assert.True(t, got.SnoozeUntil.IsZero())
	assert.Zero(t, got.NotificationID)
	assert.False(t, got.Completed)

	_, err = tx.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveAndFindByNotificationID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seed(t, s, Reminder{Name: "Water plants", Time: timelabel.MustParse("1800")})

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		r, err := tx.Get(ctx, ids[0])
		if err != nil {
			return err
		}
		r.NotificationID = 42
		r.SnoozeUntil = timelabel.MustParse("1810")
		return tx.Save(ctx, *r)
	}))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	r, err := tx.FindByNotificationID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, ids[0], r.ID)
	assert.Equal(t, "1810", r.SnoozeUntil.String())
	assert.Equal(t, "1810", r.DueAt().String())

	missing, err := tx.FindByNotificationID(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, tx.Save(ctx, Reminder{ID: 999, Name: "ghost", Time: timelabel.MustParse("0000")}), ErrNotFound)
}

func TestFindPendingByDueTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		Reminder{Name: "late", Time: timelabel.MustParse("2200")},
		Reminder{Name: "snoozed", Time: timelabel.MustParse("0700"), SnoozeUntil: timelabel.MustParse("2300")},
		Reminder{Name: "early", Time: timelabel.MustParse("0800")},
		Reminder{Name: "done", Time: timelabel.MustParse("0600"), Completed: true},
	)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	pending, err := tx.FindPendingByDueTime(ctx)
	require.NoError(t, err)
	var names []string
	for _, r := range pending {
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"early", "late", "snoozed"}, names)

	unordered, err := tx.FindPending(ctx)
	require.NoError(t, err)
	assert.Len(t, unordered, 3)
}

func TestResetDailyCompletion(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ids := seed(t, s,
		Reminder{Name: "daily done", Daily: true, Time: timelabel.MustParse("0900"), Completed: true},
		Reminder{Name: "daily open", Daily: true, Time: timelabel.MustParse("1000")},
		Reminder{Name: "once done", Time: timelabel.MustParse("1100"), Completed: true},
	)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		n, err := tx.ResetDailyCompletion(ctx)
		assert.EqualValues(t, 2, n)
		return err
	}))

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	for i, wantCompleted := range []bool{false, false, true} {
		r, err := tx.Get(ctx, ids[i])
		require.NoError(t, err)
		assert.Equal(t, wantCompleted, r.Completed, r.Name)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Create(ctx, &Reminder{Name: "uncommitted", Time: timelabel.MustParse("1200")})
	require.NoError(t, err)

	n, err := tx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.NoError(t, tx.Rollback())

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRebind(t *testing.T) {
	pg := &Tx{dialect: dialectPostgres}
	assert.Equal(t, "a = $1 AND b = $2", pg.rebind("a = ? AND b = ?"))
	lite := &Tx{dialect: dialectSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func mustLabel(t *testing.T, s string) timelabel.Label {
	t.Helper()
	l, err := timelabel.Parse(s)
	require.NoError(t, err)
	return l
}

func TestScanToleratesBadStoredLabels(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	_, err := s.db.Exec(`INSERT INTO scheduled_reminders (name, daily, time, snooze_until, completed)
		VALUES ('legacy', 0, '0800', '930', 0), ('blank', 0, '', '', 0)`)
	require.NoError(t, err)
	seed(t, s, Reminder{Name: "good", Time: timelabel.MustParse("0900")})

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	pending, err := tx.FindPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)

	legacy := pending[0]
	assert.True(t, legacy.Malformed)
	assert.Equal(t, "0800", legacy.Time.String())
	assert.True(t, legacy.SnoozeUntil.IsZero())

	blank := pending[1]
	assert.False(t, blank.Malformed)
	assert.Equal(t, 0, blank.DueAt().Int())

	assert.False(t, pending[2].Malformed)

	byDue, err := tx.FindPendingByDueTime(ctx)
	require.NoError(t, err)
	assert.Len(t, byDue, 3)
}

func TestFindByNotificationIDPrefersNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s,
		Reminder{Name: "first", NotificationID: 1, Time: timelabel.MustParse("0900")},
		Reminder{Name: "second", NotificationID: 1, Time: timelabel.MustParse("0901")},
		Reminder{Name: "other", NotificationID: 7, Time: timelabel.MustParse("1000")},
	)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback()

	r, err := tx.FindByNotificationID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "second", r.Name)

	last, err := tx.MaxNotificationID(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 7, last)
}

func TestMaxNotificationIDEmpty(t *testing.T) {
	s := newTestStore(t)
	last, err := s.MaxNotificationID(context.Background())
	require.NoError(t, err)
	assert.Zero(t, last)
}
