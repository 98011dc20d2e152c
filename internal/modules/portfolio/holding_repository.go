// Package portfolio provides read access to current holdings and applies
// executed decisions. Holdings are never mutated by the engine's read-only
// evaluation pass; only an explicitly executed rotation or rebalance writes
// here.
package portfolio

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
)

// ErrHoldingNotFound is returned when an instrument has no position
var ErrHoldingNotFound = errors.New("holding not found")

const holdingColumns = `instrument_id, shares, entry_date, target_weight, current_weight, updated_at`

// HoldingRepository handles holding records stored in portfolio.db
type HoldingRepository struct {
	portfolioDB *sql.DB
	log         zerolog.Logger
}

// NewHoldingRepository creates a new holding repository
func NewHoldingRepository(portfolioDB *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "holding").Logger(),
	}
}

// GetAll fetches all holdings ordered by instrument ID
func (r *HoldingRepository) GetAll() ([]domain.Holding, error) {
	rows, err := r.portfolioDB.Query(
		`SELECT ` + holdingColumns + ` FROM holdings ORDER BY instrument_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []domain.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}

	return holdings, nil
}

// Get fetches one holding by instrument ID
func (r *HoldingRepository) Get(instrumentID string) (domain.Holding, error) {
	row := r.portfolioDB.QueryRow(
		`SELECT `+holdingColumns+` FROM holdings WHERE instrument_id = ?`, instrumentID,
	)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Holding{}, fmt.Errorf("%w: %s", ErrHoldingNotFound, instrumentID)
	}
	if err != nil {
		return domain.Holding{}, fmt.Errorf("failed to get holding %s: %w", instrumentID, err)
	}
	return h, nil
}

// Upsert creates or replaces a holding. Used when an executed decision is
// applied, never during evaluation.
func (r *HoldingRepository) Upsert(h domain.Holding) error {
	if h.InstrumentID == "" {
		return fmt.Errorf("holding instrument ID is required")
	}
	if h.UpdatedAt.IsZero() {
		h.UpdatedAt = time.Now()
	}

	_, err := r.portfolioDB.Exec(
		`INSERT INTO holdings (instrument_id, shares, entry_date, target_weight, current_weight, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(instrument_id) DO UPDATE SET
			shares = excluded.shares,
			entry_date = excluded.entry_date,
			target_weight = excluded.target_weight,
			current_weight = excluded.current_weight,
			updated_at = excluded.updated_at`,
		h.InstrumentID, h.Shares, h.EntryDate.Unix(), h.TargetWeight, h.CurrentWeight, h.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert holding %s: %w", h.InstrumentID, err)
	}
	return nil
}

// Delete removes a holding (position fully closed)
func (r *HoldingRepository) Delete(instrumentID string) error {
	_, err := r.portfolioDB.Exec(`DELETE FROM holdings WHERE instrument_id = ?`, instrumentID)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", instrumentID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(s scanner) (domain.Holding, error) {
	var h domain.Holding
	var entryDate, updatedAt int64

	if err := s.Scan(&h.InstrumentID, &h.Shares, &entryDate, &h.TargetWeight, &h.CurrentWeight, &updatedAt); err != nil {
		return domain.Holding{}, err
	}

	h.EntryDate = time.Unix(entryDate, 0).UTC()
	h.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return h, nil
}
