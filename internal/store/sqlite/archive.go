// Package sqlite persists fetched candles so the engine can warm its
// in-memory buffers after a restart instead of waiting out a full
// lookback window of provider fetches.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"crypto-signal-bot/internal/model"
)

// Archive is a single-writer SQLite candle store.
type Archive struct {
	db *sql.DB
}

// Open initializes the database with WAL mode and the candle schema.
func Open(dbPath string) (*Archive, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer: serialize all access through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened candle archive at %s", dbPath)
	return &Archive{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			exchange  TEXT    NOT NULL,
			pair      TEXT    NOT NULL,
			timeframe TEXT    NOT NULL,
			open_time INTEGER NOT NULL,
			open      REAL    NOT NULL,
			high      REAL    NOT NULL,
			low       REAL    NOT NULL,
			close     REAL    NOT NULL,
			volume    REAL    NOT NULL,
			PRIMARY KEY (exchange, pair, timeframe, open_time)
		);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (a *Archive) DB() *sql.DB { return a.db }

// WriteCandles upserts a window of candles for a market in one
// transaction. Re-writing the still-open tail candle is expected; the
// primary key makes it a replace.
func (a *Archive) WriteCandles(ctx context.Context, m model.Market, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (exchange, pair, timeframe, open_time, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		_, err := stmt.Exec(m.Exchange, m.Pair, m.Timeframe, c.OpenTime.Unix(),
			c.Open, c.High, c.Low, c.Close, c.Volume)
		if err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ReadWindow returns the newest limit candles for a market, ordered by
// open time ascending. Used to seed the in-memory cache at startup.
func (a *Archive) ReadWindow(ctx context.Context, m model.Market, limit int) ([]model.Candle, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT open_time, open, high, low, close, volume
		FROM (
			SELECT open_time, open, high, low, close, volume
			FROM candles
			WHERE exchange = ? AND pair = ? AND timeframe = ?
			ORDER BY open_time DESC
			LIMIT ?
		)
		ORDER BY open_time ASC
	`, m.Exchange, m.Pair, m.Timeframe, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.OpenTime = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastOpenTime returns the newest stored open time for a market, or the
// zero time when nothing is archived yet.
func (a *Archive) LastOpenTime(ctx context.Context, m model.Market) (time.Time, error) {
	var ts sql.NullInt64
	err := a.db.QueryRowContext(ctx,
		`SELECT MAX(open_time) FROM candles WHERE exchange = ? AND pair = ? AND timeframe = ?`,
		m.Exchange, m.Pair, m.Timeframe,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// PruneBefore drops candles older than cutoff across all markets, so the
// archive does not grow without bound.
func (a *Archive) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `DELETE FROM candles WHERE open_time < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("sqlite prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Printf("[sqlite] pruned %d archived candles older than %s", n, cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// Close closes the database.
func (a *Archive) Close() error {
	return a.db.Close()
}
