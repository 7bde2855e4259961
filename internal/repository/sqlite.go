package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-weather-ticker/internal/models"
)

type SQLiteDB struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	return NewSQLiteDBWithClock(path, clockwork.NewRealClock())
}

// NewSQLiteDBWithClock uses clock to decide which alerts have expired.
func NewSQLiteDBWithClock(path string, clock clockwork.Clock) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db:    db,
		clock: clock,
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

// Timestamps are stored as unix milliseconds; a NULL expires_at never
// expires.
func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			event TEXT NOT NULL,
			details TEXT NOT NULL,
			locations TEXT NOT NULL,
			expires_at INTEGER,
			scroll_required INTEGER,
			sent_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_alerts_expires_at ON alerts(expires_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Upsert(ctx context.Context, r Record) error {
	if r.Alert.ID == "" {
		return errors.New("alert id is required")
	}

	var expires sql.NullInt64
	if r.Alert.ExpirationTime != nil {
		expires = sql.NullInt64{Int64: r.Alert.ExpirationTime.UnixMilli(), Valid: true}
	}
	var scroll sql.NullBool
	if r.Alert.ScrollRequired != nil {
		scroll = sql.NullBool{Bool: *r.Alert.ScrollRequired, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, event, details, locations, expires_at, scroll_required, sent_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			event = excluded.event,
			details = excluded.details,
			locations = excluded.locations,
			expires_at = excluded.expires_at,
			scroll_required = excluded.scroll_required,
			sent_at = excluded.sent_at,
			updated_at = excluded.updated_at`,
		r.Alert.ID, r.Alert.Event, r.Alert.Details, r.Alert.Locations,
		expires, scroll, r.Sent.UnixMilli(), s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("error upserting alert %s: %w", r.Alert.ID, err)
	}
	return nil
}

func (s *SQLiteDB) SentAt(ctx context.Context, id string) (time.Time, bool, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT sent_at FROM alerts WHERE id = ?`, id).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error reading alert %s: %w", id, err)
	}
	return time.UnixMilli(ms).UTC(), true, nil
}

func (s *SQLiteDB) RemoveExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM alerts WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		s.clock.Now().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("error removing expired alerts: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) ListActive(ctx context.Context) ([]models.Alert, error) {
	if _, err := s.RemoveExpired(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event, details, locations, expires_at, scroll_required
		FROM alerts
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("error listing alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var (
			a       models.Alert
			expires sql.NullInt64
			scroll  sql.NullBool
		)
		if err := rows.Scan(&a.ID, &a.Event, &a.Details, &a.Locations, &expires, &scroll); err != nil {
			return nil, fmt.Errorf("error scanning alert: %w", err)
		}
		if expires.Valid {
			t := time.UnixMilli(expires.Int64).UTC()
			a.ExpirationTime = &t
		}
		if scroll.Valid {
			v := scroll.Bool
			a.ScrollRequired = &v
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}

	models.SortByPriority(alerts)
	return alerts, nil
}

func (s *SQLiteDB) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("error counting alerts: %w", err)
	}
	return n, nil
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}
