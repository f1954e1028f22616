// Package candledb persists aggregated candles in a SQLite database used
// for fast latest-day lookups and ad-hoc queries.
package candledb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"tickvault/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

const schema = `
CREATE TABLE IF NOT EXISTS candles (
	symbol  TEXT    NOT NULL,
	ts      INTEGER NOT NULL,
	open    REAL    NOT NULL,
	high    REAL    NOT NULL,
	low     REAL    NOT NULL,
	close   REAL    NOT NULL,
	volume  REAL    NOT NULL,
	trades  INTEGER NOT NULL,
	PRIMARY KEY (symbol, ts)
);
`

// Store is a SQLite-backed candle store. Timestamps are stored as Unix
// milliseconds UTC.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and ensures the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// WriteCandles upserts a batch of candles for the symbol. Re-writing a
// range replaces any existing rows at the same timestamps.
func (s *Store) WriteCandles(ctx context.Context, symbol string, candles []domain.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (symbol, ts, open, high, low, close, volume, trades)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			trades = excluded.trades`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, symbol, c.Time.UnixMilli(),
			c.Open, c.High, c.Low, c.Close, c.Volume, c.Trades); err != nil {
			return fmt.Errorf("upserting candle %s %s: %w", symbol, c.Time.Format(time.RFC3339), err)
		}
	}
	return tx.Commit()
}

// LatestCandleDay returns the UTC midnight of the most recent candle for
// the symbol. The bool is false when the symbol has no rows.
func (s *Store) LatestCandleDay(ctx context.Context, symbol string) (time.Time, bool, error) {
	var ts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(ts) FROM candles WHERE symbol = ?`, symbol).Scan(&ts)
	if err != nil {
		return time.Time{}, false, err
	}
	if !ts.Valid {
		return time.Time{}, false, nil
	}
	t := time.UnixMilli(ts.Int64).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true, nil
}

// Candles returns the symbol's candles in [from, to], ordered by timestamp.
func (s *Store) Candles(ctx context.Context, symbol string, from, to time.Time) ([]domain.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, open, high, low, close, volume, trades
		FROM candles
		WHERE symbol = ? AND ts BETWEEN ? AND ?
		ORDER BY ts`,
		symbol, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Candle
	for rows.Next() {
		var (
			c  domain.Candle
			ts int64
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume, &c.Trades); err != nil {
			return nil, err
		}
		c.Time = time.UnixMilli(ts).UTC()
		out = append(out, c)
	}
	return out, rows.Err()
}
