// Package universe provides the investment universe: the instruments
// eligible for the core/satellite strategy.
package universe

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/rs/zerolog"
)

// ErrInstrumentNotFound is returned when an instrument ID is not in the universe
var ErrInstrumentNotFound = errors.New("instrument not found")

// instrumentColumns avoids SELECT *, which breaks silently on schema changes
const instrumentColumns = `id, name, class, lot_size, active, created_at`

// InstrumentRepository handles instrument records stored in universe.db
type InstrumentRepository struct {
	universeDB *sql.DB
	log        zerolog.Logger
}

// NewInstrumentRepository creates a new instrument repository
func NewInstrumentRepository(universeDB *sql.DB, log zerolog.Logger) *InstrumentRepository {
	return &InstrumentRepository{
		universeDB: universeDB,
		log:        log.With().Str("repo", "instrument").Logger(),
	}
}

// Upsert creates or replaces an instrument record
func (r *InstrumentRepository) Upsert(inst domain.Instrument) error {
	if inst.ID == "" {
		return fmt.Errorf("instrument ID is required")
	}
	if inst.CreatedAt.IsZero() {
		inst.CreatedAt = time.Now()
	}

	_, err := r.universeDB.Exec(
		`INSERT INTO instruments (id, name, class, lot_size, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			class = excluded.class,
			lot_size = excluded.lot_size,
			active = excluded.active`,
		inst.ID, inst.Name, string(inst.Class), inst.LotSize, boolToInt(inst.Active), inst.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert instrument %s: %w", inst.ID, err)
	}
	return nil
}

// Get fetches one instrument by ID
func (r *InstrumentRepository) Get(id string) (domain.Instrument, error) {
	row := r.universeDB.QueryRow(
		`SELECT `+instrumentColumns+` FROM instruments WHERE id = ?`, id,
	)
	inst, err := scanInstrument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Instrument{}, fmt.Errorf("%w: %s", ErrInstrumentNotFound, id)
	}
	if err != nil {
		return domain.Instrument{}, fmt.Errorf("failed to get instrument %s: %w", id, err)
	}
	return inst, nil
}

// GetActive fetches all active instruments ordered by ID
func (r *InstrumentRepository) GetActive() ([]domain.Instrument, error) {
	return r.query(`SELECT ` + instrumentColumns + ` FROM instruments WHERE active = 1 ORDER BY id`)
}

// GetActiveByClass fetches active instruments of one class ordered by ID
func (r *InstrumentRepository) GetActiveByClass(class domain.InstrumentClass) ([]domain.Instrument, error) {
	return r.query(
		`SELECT `+instrumentColumns+` FROM instruments WHERE active = 1 AND class = ? ORDER BY id`,
		string(class),
	)
}

func (r *InstrumentRepository) query(query string, args ...interface{}) ([]domain.Instrument, error) {
	rows, err := r.universeDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query instruments: %w", err)
	}
	defer rows.Close()

	var instruments []domain.Instrument
	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan instrument: %w", err)
		}
		instruments = append(instruments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating instruments: %w", err)
	}

	return instruments, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanInstrument
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanInstrument(s scanner) (domain.Instrument, error) {
	var inst domain.Instrument
	var class string
	var active int
	var createdAt int64

	if err := s.Scan(&inst.ID, &inst.Name, &class, &inst.LotSize, &active, &createdAt); err != nil {
		return domain.Instrument{}, err
	}

	inst.Class = domain.InstrumentClass(class)
	inst.Active = active != 0
	inst.CreatedAt = time.Unix(createdAt, 0).UTC()
	return inst, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
