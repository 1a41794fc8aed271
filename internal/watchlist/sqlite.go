package watchlist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"sjsage522/dealwatch/internal/models"
	crawlerrors "sjsage522/dealwatch/pkg/errors"
)

// SQLiteStore implements Editor and CheckRecorder using modernc.org/sqlite
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens the database at path, configures WAL mode and applies the migration
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, crawlerrors.NewConfiguration("sqlite: open "+path, err)
	}
	// a single connection serializes writers, which SQLite requires anyway
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, crawlerrors.NewConfiguration(fmt.Sprintf("sqlite: exec %s", pragma), err)
		}
	}

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS watched_items (
	url          TEXT PRIMARY KEY,
	target_price REAL NOT NULL,
	created_at   TEXT NOT NULL,
	last_price   REAL,
	last_checked TEXT
);
`

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return crawlerrors.NewConfiguration("sqlite: migrate", err)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Add inserts item or replaces the target price of an existing URL
func (s *SQLiteStore) Add(ctx context.Context, item models.WatchedItem) error {
	item.URL = strings.TrimSpace(item.URL)
	if err := Validate(item); err != nil {
		return err
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watched_items (url, target_price, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(url) DO UPDATE SET target_price = excluded.target_price`,
		item.URL, item.TargetPrice, formatTime(item.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: insert watched item: %w", err)
	}
	return nil
}

// Remove deletes url and reports whether it was watched
func (s *SQLiteStore) Remove(ctx context.Context, url string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM watched_items WHERE url = ?`, strings.TrimSpace(url))
	if err != nil {
		return false, fmt.Errorf("sqlite: delete watched item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: rows affected: %w", err)
	}
	return n > 0, nil
}

// List returns every watched item ordered by creation time
func (s *SQLiteStore) List(ctx context.Context) ([]models.WatchedItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, target_price, created_at FROM watched_items ORDER BY created_at, url`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list watched items: %w", err)
	}
	defer rows.Close()

	var items []models.WatchedItem
	for rows.Next() {
		var (
			item    models.WatchedItem
			created string
		)
		if err := rows.Scan(&item.URL, &item.TargetPrice, &created); err != nil {
			return nil, fmt.Errorf("sqlite: scan watched item: %w", err)
		}
		item.CreatedAt = parseTime(created)
		items = append(items, item)
	}
	return items, rows.Err()
}

// RecordCheck stores the last price observed for url
func (s *SQLiteStore) RecordCheck(ctx context.Context, url string, price float64, checkedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE watched_items SET last_price = ?, last_checked = ? WHERE url = ?`,
		price, formatTime(checkedAt), url,
	)
	if err != nil {
		return fmt.Errorf("sqlite: record check: %w", err)
	}
	return nil
}

// LastCheck returns the last recorded price of url, if any
func (s *SQLiteStore) LastCheck(ctx context.Context, url string) (float64, time.Time, bool, error) {
	var (
		price   sql.NullFloat64
		checked sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_price, last_checked FROM watched_items WHERE url = ?`, url,
	).Scan(&price, &checked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, time.Time{}, false, nil
	}
	if err != nil {
		return 0, time.Time{}, false, fmt.Errorf("sqlite: last check: %w", err)
	}
	if !price.Valid {
		return 0, time.Time{}, false, nil
	}
	return price.Float64, parseTime(checked.String), true, nil
}

// timeLayout has fixed width so text ordering matches time ordering
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
