package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/notexe/reminder-bot/internal/timelabel"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

const selectColumns = `SELECT id, notification_id, name, daily, time, snooze_until, completed FROM scheduled_reminders`

// Store provides SQL-backed storage for reminders. All reads and writes
// go through a Tx so a poll cycle commits as one unit.
type Store struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for warnings about stored rows.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger.With("component", "store")
	}
}

// Open connects to the database named by dsn and ensures the schema exists.
// postgres:// and postgresql:// DSNs use pgx; anything else is a SQLite
// path, optionally prefixed with sqlite:// (sqlite:///db.db is ./db.db).
func Open(dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("database connection string is empty")
	}

	var (
		s   *Store
		err error
	)
	if IsPostgres(dsn) {
		s, err = openPostgres(dsn)
	} else {
		s, err = openSQLite(sqlitePath(dsn))
	}
	if err != nil {
		return nil, err
	}

	s.logger = slog.Default().With("component", "store")
	for _, opt := range opts {
		opt(s)
	}

	if err := s.createTable(); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// IsPostgres reports whether dsn names a postgres database.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func sqlitePath(dsn string) string {
	if rest, ok := strings.CutPrefix(dsn, "sqlite:///"); ok {
		return rest
	}
	if rest, ok := strings.CutPrefix(dsn, "sqlite://"); ok {
		return rest
	}
	return dsn
}

func openSQLite(path string) (*Store, error) {
	if dir := filepath.Dir(path); path != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps the pragmas below in effect for every query.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &Store{db: db, dialect: dialectSQLite}, nil
}

func openPostgres(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Store{db: db, dialect: dialectPostgres}, nil
}

func (s *Store) createTable() error {
	ddl := `
		CREATE TABLE IF NOT EXISTS scheduled_reminders (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			notification_id INTEGER,
			name            TEXT    NOT NULL,
			daily           BOOLEAN NOT NULL DEFAULT 0,
			time            TEXT    NOT NULL,
			snooze_until    TEXT    NOT NULL DEFAULT '',
			completed       BOOLEAN NOT NULL DEFAULT 0
		)
	`
	if s.dialect == dialectPostgres {
		ddl = `
			CREATE TABLE IF NOT EXISTS scheduled_reminders (
				id              BIGSERIAL PRIMARY KEY,
				notification_id BIGINT,
				name            TEXT    NOT NULL,
				daily           BOOLEAN NOT NULL DEFAULT FALSE,
				time            TEXT    NOT NULL,
				snooze_until    TEXT    NOT NULL DEFAULT '',
				completed       BOOLEAN NOT NULL DEFAULT FALSE
			)
		`
	}

	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_scheduled_reminders_notification_id
		ON scheduled_reminders (notification_id)`); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Count returns the number of stored reminders.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		n, err = tx.Count(ctx)
		return err
	})
	return n, err
}

// MaxNotificationID returns the largest notification id on record.
func (s *Store) MaxNotificationID(ctx context.Context) (int64, error) {
	var id int64
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		id, err = tx.MaxNotificationID(ctx)
		return err
	})
	return id, err
}

// Begin starts a unit of work. Callers must Commit or Rollback it.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Tx{tx: tx, dialect: s.dialect, logger: s.logger}, nil
}

// InTx runs fn in a unit of work, committing if fn returns nil and
// rolling back otherwise.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Tx is one unit of work against the store. Reads observe the Tx's own
// uncommitted writes.
type Tx struct {
	tx      *sql.Tx
	dialect dialect
	logger  *slog.Logger
}

// Commit makes every write in the Tx visible.
func (t *Tx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Rollback discards the Tx. Calling it after Commit is a no-op.
func (t *Tx) Rollback() error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

// rebind rewrites ? placeholders to $n for postgres.
func (t *Tx) rebind(query string) string {
	if t.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FindByNotificationID returns the reminder whose last notification had
// the given id, or nil when there is none. If several rows share the id
// the most recently created one wins.
func (t *Tx) FindByNotificationID(ctx context.Context, id int64) (*Reminder, error) {
	row := t.tx.QueryRowContext(ctx, t.rebind(selectColumns+` WHERE notification_id = ? ORDER BY id DESC LIMIT 1`), id)
	r, err := t.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find reminder by notification: %w", err)
	}
	return r, nil
}

// Get returns a single reminder by id.
func (t *Tx) Get(ctx context.Context, id int64) (*Reminder, error) {
	row := t.tx.QueryRowContext(ctx, t.rebind(selectColumns+` WHERE id = ?`), id)
	r, err := t.scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reminder %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get reminder: %w", err)
	}
	return r, nil
}

// FindPending returns every reminder that is not completed, in id order.
func (t *Tx) FindPending(ctx context.Context) ([]Reminder, error) {
	return t.query(ctx, selectColumns+` WHERE completed = ? ORDER BY id`, false)
}

// FindPendingByDueTime returns every reminder that is not completed,
// ordered by due time (snooze_until when set, otherwise time).
func (t *Tx) FindPendingByDueTime(ctx context.Context) ([]Reminder, error) {
	return t.query(ctx, selectColumns+`
		WHERE completed = ?
		ORDER BY COALESCE(NULLIF(snooze_until, ''), time), id`, false)
}

// All returns every reminder, in id order.
func (t *Tx) All(ctx context.Context) ([]Reminder, error) {
	return t.query(ctx, selectColumns+` ORDER BY id`)
}

// Count returns the number of stored reminders.
func (t *Tx) Count(ctx context.Context) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM scheduled_reminders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reminders: %w", err)
	}
	return n, nil
}

// Create inserts r and returns the assigned id, which is also set on r.
func (t *Tx) Create(ctx context.Context, r *Reminder) (int64, error) {
	var id int64
	err := t.tx.QueryRowContext(ctx, t.rebind(`
		INSERT INTO scheduled_reminders (notification_id, name, daily, time, snooze_until, completed)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING id
	`), nullableID(r.NotificationID), r.Name, r.Daily, r.Time.String(), r.SnoozeUntil.String(), r.Completed).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reminder: %w", err)
	}
	r.ID = id
	return id, nil
}

// Save writes every field of an existing reminder. A reminder without an
// id is created instead.
func (t *Tx) Save(ctx context.Context, r Reminder) error {
	if r.ID == 0 {
		_, err := t.Create(ctx, &r)
		return err
	}

	result, err := t.tx.ExecContext(ctx, t.rebind(`
		UPDATE scheduled_reminders
		SET notification_id = ?, name = ?, daily = ?, time = ?, snooze_until = ?, completed = ?
		WHERE id = ?
	`), nullableID(r.NotificationID), r.Name, r.Daily, r.Time.String(), r.SnoozeUntil.String(), r.Completed, r.ID)
	if err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}

	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("reminder %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

// ResetDailyCompletion marks every daily reminder as not completed and
// returns how many rows it touched.
func (t *Tx) ResetDailyCompletion(ctx context.Context) (int64, error) {
	result, err := t.tx.ExecContext(ctx, t.rebind(`
		UPDATE scheduled_reminders SET completed = ? WHERE daily = ?
	`), false, true)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily reminders: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// MaxNotificationID returns the largest notification id on record, 0 when
// no reminder has fired yet.
func (t *Tx) MaxNotificationID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := t.tx.QueryRowContext(ctx, `SELECT MAX(notification_id) FROM scheduled_reminders`).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read last notification id: %w", err)
	}
	return id.Int64, nil
}

func (t *Tx) query(ctx context.Context, query string, args ...any) ([]Reminder, error) {
	rows, err := t.tx.QueryContext(ctx, t.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	defer rows.Close()

	var reminders []Reminder
	for rows.Next() {
		r, err := t.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}
		reminders = append(reminders, *r)
	}
	return reminders, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func (t *Tx) scan(row scanner) (*Reminder, error) {
	var (
		r                    Reminder
		notificationID       sql.NullInt64
		timeText, snoozeText sql.NullString
	)
	if err := row.Scan(&r.ID, &notificationID, &r.Name, &r.Daily,
		&timeText, &snoozeText, &r.Completed); err != nil {
		return nil, err
	}
	r.NotificationID = notificationID.Int64

	var timeErr, snoozeErr error
	r.Time, timeErr = timelabel.ParseOptional(timeText.String)
	r.SnoozeUntil, snoozeErr = timelabel.ParseOptional(snoozeText.String)
	if err := errors.Join(timeErr, snoozeErr); err != nil {
		r.Malformed = true
		t.logger.Warn("stored reminder has a bad time label",
			"id", r.ID, "name", r.Name, "time", timeText.String,
			"snooze_until", snoozeText.String, "error", err)
	}
	return &r, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}
