package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "tradecopilot/internal/errors"
	"tradecopilot/internal/models"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal database at dbPath.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	j := &SQLiteJournal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS signals (
		id TEXT PRIMARY KEY,
		asset TEXT NOT NULL,
		direction TEXT NOT NULL,
		contracts INTEGER NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		target1 REAL NOT NULL,
		target_final REAL NOT NULL,
		risk_reward REAL NOT NULL,
		reason TEXT,
		opened_at DATETIME NOT NULL,
		outcome TEXT,
		exit_price REAL,
		pnl REAL,
		closed_at DATETIME,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_signals_opened ON signals(opened_at);
	CREATE INDEX IF NOT EXISTS idx_signals_asset ON signals(asset, opened_at);
	`
	_, err := j.db.Exec(schema)
	return err
}

// RecordSignal inserts a newly opened signal.
func (j *SQLiteJournal) RecordSignal(ctx context.Context, rec SignalRecord) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO signals (id, asset, direction, contracts, entry_price, stop_loss, target1, target_final, risk_reward, reason, opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Asset), string(rec.Direction), rec.Contracts,
		rec.EntryPrice, rec.StopLoss, rec.Target1, rec.TargetFinal, rec.RiskReward,
		rec.Reason, rec.OpenedAt.UTC(),
	)
	if err != nil {
		return apperrors.NewStoreError("record_signal", err)
	}
	return nil
}

// CloseSignal stores the outcome of a signal.
func (j *SQLiteJournal) CloseSignal(ctx context.Context, id string, outcome models.Outcome, exitPrice, pnl float64, at time.Time) error {
	res, err := j.db.ExecContext(ctx, `
		UPDATE signals SET outcome = ?, exit_price = ?, pnl = ?, closed_at = ?
		WHERE id = ? AND closed_at IS NULL`,
		string(outcome), exitPrice, pnl, at.UTC(), id,
	)
	if err != nil {
		return apperrors.NewStoreError("close_signal", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStoreError("close_signal", err)
	}
	if n == 0 {
		return apperrors.NewStoreError("close_signal", fmt.Errorf("%s: %w", id, apperrors.ErrSignalNotFound))
	}
	return nil
}

// ListSignals returns signals matching the filter, newest first.
func (j *SQLiteJournal) ListSignals(ctx context.Context, filter SignalFilter) ([]SignalRecord, error) {
	query := `SELECT id, asset, direction, contracts, entry_price, stop_loss, target1, target_final,
		risk_reward, reason, opened_at, outcome, exit_price, pnl, closed_at FROM signals`

	var conds []string
	var args []interface{}
	if filter.Asset != "" {
		conds = append(conds, "asset = ?")
		args = append(args, string(filter.Asset))
	}
	if !filter.From.IsZero() {
		conds = append(conds, "opened_at >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conds = append(conds, "opened_at < ?")
		args = append(args, filter.To.UTC())
	}
	if filter.OpenOnly {
		conds = append(conds, "closed_at IS NULL")
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY opened_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("list_signals", err)
	}
	defer rows.Close()

	var records []SignalRecord
	for rows.Next() {
		var (
			rec       SignalRecord
			asset     string
			direction string
			reason    sql.NullString
			outcome   sql.NullString
			exitPrice sql.NullFloat64
			pnl       sql.NullFloat64
			closedAt  sql.NullTime
		)
		if err := rows.Scan(&rec.ID, &asset, &direction, &rec.Contracts, &rec.EntryPrice, &rec.StopLoss,
			&rec.Target1, &rec.TargetFinal, &rec.RiskReward, &reason, &rec.OpenedAt,
			&outcome, &exitPrice, &pnl, &closedAt); err != nil {
			return nil, apperrors.NewStoreError("list_signals", err)
		}
		rec.Asset = models.Asset(asset)
		rec.Direction = models.Direction(direction)
		rec.Reason = reason.String
		rec.Outcome = models.Outcome(outcome.String)
		rec.ExitPrice = exitPrice.Float64
		rec.PnL = pnl.Float64
		if closedAt.Valid {
			t := closedAt.Time
			rec.ClosedAt = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStoreError("list_signals", err)
	}
	return records, nil
}

// DailySummary aggregates the signals opened on the given day (in its location).
func (j *SQLiteJournal) DailySummary(ctx context.Context, day time.Time) (*DaySummary, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	summary := &DaySummary{Day: start}
	var pnl sql.NullFloat64
	err := j.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(closed_at),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END), 0),
			SUM(pnl)
		FROM signals WHERE opened_at >= ? AND opened_at < ?`,
		string(models.OutcomeTarget), string(models.OutcomeStop), start.UTC(), end.UTC(),
	).Scan(&summary.Signals, &summary.Closed, &summary.Wins, &summary.Losses, &pnl)
	if err != nil {
		return nil, apperrors.NewStoreError("daily_summary", err)
	}
	summary.PnL = pnl.Float64
	return summary, nil
}

// Ping checks the database connection.
func (j *SQLiteJournal) Ping(ctx context.Context) error {
	return j.db.PingContext(ctx)
}

// Close closes the database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
