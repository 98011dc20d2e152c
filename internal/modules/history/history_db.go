// Package history provides access to the append-only market data event log:
// daily price bars and cash distribution events per instrument.
// Rows are only ever appended; adjusted series are recomputed in full from
// these logs, never patched in place.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
)

// HistoryDB provides access to historical price and distribution data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// AppendBars inserts price bars, ignoring bars already recorded for the same
// instrument and date (the feed is assumed deduplicated, but replays happen)
func (h *HistoryDB) AppendBars(bars []domain.PriceBar) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bar insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO price_bars (instrument_id, date, close, volume) VALUES (?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare bar insert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.Exec(bar.InstrumentID, bar.Date.Unix(), bar.Close, bar.Volume); err != nil {
			return fmt.Errorf("failed to insert bar %s/%s: %w", bar.InstrumentID, bar.Date.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// AppendDistributions inserts distribution events, ignoring duplicates
func (h *HistoryDB) AppendDistributions(events []domain.DistributionEvent) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin distribution insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(
		`INSERT OR IGNORE INTO distribution_events (instrument_id, ex_date, amount_per_unit) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare distribution insert: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.AmountPerUnit <= 0 {
			return fmt.Errorf("distribution amount must be positive, got %f for %s", ev.AmountPerUnit, ev.InstrumentID)
		}
		if _, err := stmt.Exec(ev.InstrumentID, ev.ExDate.Unix(), ev.AmountPerUnit); err != nil {
			return fmt.Errorf("failed to insert distribution %s/%s: %w", ev.InstrumentID, ev.ExDate.Format("2006-01-02"), err)
		}
	}

	return tx.Commit()
}

// GetBars fetches up to limit most recent bars for an instrument, returned
// in ascending date order. limit <= 0 fetches everything.
func (h *HistoryDB) GetBars(instrumentID string, limit int) ([]domain.PriceBar, error) {
	query := `
		SELECT instrument_id, date, close, volume
		FROM price_bars
		WHERE instrument_id = ?
		ORDER BY date DESC
	`
	args := []interface{}{instrumentID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query price bars: %w", err)
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var bar domain.PriceBar
		var dateUnix int64
		if err := rows.Scan(&bar.InstrumentID, &dateUnix, &bar.Close, &bar.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price bar: %w", err)
		}
		bar.Date = time.Unix(dateUnix, 0).UTC()
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating price bars: %w", err)
	}

	// Reverse into ascending order (queried DESC to apply the limit to the
	// most recent bars)
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	return bars, nil
}

// GetDistributions fetches all distribution events for an instrument in
// ascending ex-date order
func (h *HistoryDB) GetDistributions(instrumentID string) ([]domain.DistributionEvent, error) {
	rows, err := h.db.Query(
		`SELECT instrument_id, ex_date, amount_per_unit
		 FROM distribution_events
		 WHERE instrument_id = ?
		 ORDER BY ex_date ASC`,
		instrumentID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query distribution events: %w", err)
	}
	defer rows.Close()

	var events []domain.DistributionEvent
	for rows.Next() {
		var ev domain.DistributionEvent
		var exDateUnix int64
		if err := rows.Scan(&ev.InstrumentID, &exDateUnix, &ev.AmountPerUnit); err != nil {
			return nil, fmt.Errorf("failed to scan distribution event: %w", err)
		}
		ev.ExDate = time.Unix(exDateUnix, 0).UTC()
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating distribution events: %w", err)
	}

	return events, nil
}

// LatestClose returns the most recent raw close for an instrument.
// ok is false when no bars exist.
func (h *HistoryDB) LatestClose(instrumentID string) (float64, bool, error) {
	var close float64
	err := h.db.QueryRow(
		`SELECT close FROM price_bars WHERE instrument_id = ? ORDER BY date DESC LIMIT 1`,
		instrumentID,
	).Scan(&close)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to query latest close: %w", err)
	}
	return close, true, nil
}
