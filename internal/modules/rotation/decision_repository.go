package rotation

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DecisionRepository persists decisions to the immutable audit trail in
// ledger.db. Rationale snapshots are msgpack-encoded: compact, typed, and
// decodable long after the schema of the surrounding row has settled.
type DecisionRepository struct {
	ledgerDB *sql.DB
	log      zerolog.Logger
}

// NewDecisionRepository creates a new decision repository
func NewDecisionRepository(ledgerDB *sql.DB, log zerolog.Logger) *DecisionRepository {
	return &DecisionRepository{
		ledgerDB: ledgerDB,
		log:      log.With().Str("repo", "decision").Logger(),
	}
}

// SaveCycle records a completed cycle and its decisions in one transaction
func (r *DecisionRepository) SaveCycle(result *CycleResult) error {
	tx, err := r.ledgerDB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin cycle insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.Exec(
		`INSERT INTO evaluation_cycles (id, started_at, completed_at, instruments, errors)
		 VALUES (?, ?, ?, ?, ?)`,
		result.CycleID,
		result.StartedAt.Unix(),
		result.CompletedAt.Unix(),
		len(result.Rankings),
		len(result.Failures),
	)
	if err != nil {
		return fmt.Errorf("failed to insert cycle %s: %w", result.CycleID, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO decisions (id, cycle_id, action, instrument_id, counterpart_id, side, quantity, rationale, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare decision insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range result.Decisions {
		rationale, err := msgpack.Marshal(d.Rationale)
		if err != nil {
			return fmt.Errorf("failed to encode rationale for %s: %w", d.InstrumentID, err)
		}

		_, err = stmt.Exec(
			d.ID, d.CycleID, string(d.Action), d.InstrumentID,
			d.CounterpartID, string(d.Side), d.Quantity, rationale, d.CreatedAt.Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert decision %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle %s: %w", result.CycleID, err)
	}

	r.log.Info().
		Str("cycle", result.CycleID).
		Int("decisions", len(result.Decisions)).
		Msg("Cycle persisted to ledger")
	return nil
}

// ListRecent fetches the most recent decisions in descending creation order
func (r *DecisionRepository) ListRecent(limit int) ([]domain.RotationDecision, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.ledgerDB.Query(
		`SELECT id, cycle_id, action, instrument_id, counterpart_id, side, quantity, rationale, created_at
		 FROM decisions
		 ORDER BY created_at DESC, id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var decisions []domain.RotationDecision
	for rows.Next() {
		var d domain.RotationDecision
		var action, side string
		var rationale []byte
		var createdAt int64

		if err := rows.Scan(&d.ID, &d.CycleID, &action, &d.InstrumentID, &d.CounterpartID, &side, &d.Quantity, &rationale, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}

		if err := msgpack.Unmarshal(rationale, &d.Rationale); err != nil {
			return nil, fmt.Errorf("failed to decode rationale for decision %s: %w", d.ID, err)
		}

		d.Action = domain.DecisionAction(action)
		d.Side = domain.TradeSide(side)
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating decisions: %w", err)
	}

	return decisions, nil
}
