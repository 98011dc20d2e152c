// Package domain provides core domain models and types for the rotation engine.
// The domain layer is pure: no infrastructure dependencies, no I/O.
// Everything here is an input snapshot or an output of one evaluation pass.
package domain

import "time"

// InstrumentClass classifies an instrument within the core/satellite strategy
type InstrumentClass string

const (
	// ClassCore represents fixed-target-weight anchor holdings (rebalanced, never rotated)
	ClassCore InstrumentClass = "CORE"
	// ClassSatellite represents rotation-eligible momentum legs
	ClassSatellite InstrumentClass = "SATELLITE"
)

// DecisionAction is the action proposed by the generator for one instrument
type DecisionAction string

const (
	ActionRotate    DecisionAction = "ROTATE"
	ActionRebalance DecisionAction = "REBALANCE"
	ActionHold      DecisionAction = "HOLD"
)

// TradeSide is the direction of a suggested trade
type TradeSide string

const (
	SideBuy  TradeSide = "BUY"
	SideSell TradeSide = "SELL"
)

// Instrument represents one member of the investment universe
type Instrument struct {
	ID        string          `json:"id"` // ISIN or ticker, unique within the universe
	Name      string          `json:"name"`
	Class     InstrumentClass `json:"class"`
	LotSize   float64         `json:"lot_size"` // Tradable lot size; 0 means 1
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"created_at"`
}

// Lot returns the effective tradable lot size (defaults to 1)
func (i Instrument) Lot() float64 {
	if i.LotSize <= 0 {
		return 1
	}
	return i.LotSize
}

// PriceBar represents one trading day's raw close for an instrument.
// Bars are immutable: one per trading day per instrument.
type PriceBar struct {
	InstrumentID string    `json:"instrument_id"`
	Date         time.Time `json:"date"`
	Close        float64   `json:"close"` // Raw (unadjusted) close
	Volume       int64     `json:"volume"`
}

// DistributionEvent represents a cash distribution (dividend) going ex on a date.
// Events are immutable; AmountPerUnit is strictly positive.
type DistributionEvent struct {
	InstrumentID  string    `json:"instrument_id"`
	ExDate        time.Time `json:"ex_date"`
	AmountPerUnit float64   `json:"amount_per_unit"`
}

// TRPoint is one observation of a total-return series.
// Close is retained alongside the adjusted value so downstream consumers
// can always report both the adjusted and the nominal return.
type TRPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"` // Dividend-adjusted total-return index, strictly positive
	Close float64   `json:"close"` // Raw close on the same date
}

// DataGap records a trading day that was skipped during series construction
// because the previous close was zero or missing. Gaps are never interpolated.
type DataGap struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// QualityWarning flags a suspected unrecorded distribution: a single-day raw
// drop beyond the configured threshold with no matching DistributionEvent.
// The day passes through unadjusted; misclassifying a genuine crash as a
// dividend would corrupt the series.
type QualityWarning struct {
	Date      time.Time `json:"date"`
	RawReturn float64   `json:"raw_return"`
	Threshold float64   `json:"threshold"`
	Message   string    `json:"message"`
}

// TotalReturnSeries is the dividend-adjusted total-return index for one
// instrument. It is derived data: recomputed in full from the bar and
// event logs, never mutated in place.
type TotalReturnSeries struct {
	InstrumentID string           `json:"instrument_id"`
	Points       []TRPoint        `json:"points"`
	Gaps         []DataGap        `json:"gaps,omitempty"`
	Warnings     []QualityWarning `json:"warnings,omitempty"`
}

// Len returns the number of observations in the series
func (s *TotalReturnSeries) Len() int {
	return len(s.Points)
}

// Last returns the most recent observation. ok is false for an empty series.
func (s *TotalReturnSeries) Last() (TRPoint, bool) {
	if len(s.Points) == 0 {
		return TRPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// ReturnOver computes the adjusted return over the trailing n observations:
// TR[t]/TR[t-n] - 1. Returns ErrInsufficientHistory when the series is
// shorter than n+1 observations.
func (s *TotalReturnSeries) ReturnOver(n int) (float64, error) {
	if n <= 0 {
		return 0, ErrConfigurationInvalid
	}
	if len(s.Points) < n+1 {
		return 0, ErrInsufficientHistory
	}
	last := s.Points[len(s.Points)-1].Value
	base := s.Points[len(s.Points)-1-n].Value
	return last/base - 1, nil
}

// NominalReturnOver computes the unadjusted (raw close) return over the
// trailing n observations. Retained for reporting alongside the adjusted
// return; the distortion between the two is the defect class this engine
// corrects for.
func (s *TotalReturnSeries) NominalReturnOver(n int) (float64, error) {
	if n <= 0 {
		return 0, ErrConfigurationInvalid
	}
	if len(s.Points) < n+1 {
		return 0, ErrInsufficientHistory
	}
	last := s.Points[len(s.Points)-1].Close
	base := s.Points[len(s.Points)-1-n].Close
	if base <= 0 {
		return 0, ErrDataGap
	}
	return last/base - 1, nil
}

// WindowReturn is one lookback window's contribution to a momentum score
type WindowReturn struct {
	Days          int     `json:"days"`
	Weight        float64 `json:"weight"` // Normalized weight used in the composite
	Return        float64 `json:"return"` // Dividend-adjusted return over the window
	NominalReturn float64 `json:"nominal_return"`
}

// MomentumScore is the weighted multi-window momentum score for one
// instrument at one evaluation date. Derived per cycle, never persisted
// as mutable state.
type MomentumScore struct {
	InstrumentID string         `json:"instrument_id"`
	AsOf         time.Time      `json:"as_of"`
	Windows      []WindowReturn `json:"windows"`
	Composite    float64        `json:"composite_score"`
	Rank         int            `json:"rank"` // 1-based, assigned after ranking
}

// ShortestWindowReturn returns the return of the shortest configured window,
// used as the first tie-breaker in ranking (favors recent momentum).
func (m *MomentumScore) ShortestWindowReturn() float64 {
	if len(m.Windows) == 0 {
		return 0
	}
	best := m.Windows[0]
	for _, w := range m.Windows[1:] {
		if w.Days < best.Days {
			best = w
		}
	}
	return best.Return
}

// Holding represents one portfolio position. Holdings are owned by the
// portfolio store and are read-only inputs to an evaluation pass; only an
// executed decision mutates them, never the engine itself.
type Holding struct {
	InstrumentID  string    `json:"instrument_id"`
	Shares        float64   `json:"shares"`
	EntryDate     time.Time `json:"entry_date"`
	TargetWeight  float64   `json:"target_weight"`  // Fraction of portfolio value (core holdings)
	CurrentWeight float64   `json:"current_weight"` // Fraction of portfolio value
	UpdatedAt     time.Time `json:"updated_at"`
}

// DaysHeld returns the number of whole days the position has been held as of
// the given date
func (h Holding) DaysHeld(asOf time.Time) int {
	if h.EntryDate.IsZero() || asOf.Before(h.EntryDate) {
		return 0
	}
	return int(asOf.Sub(h.EntryDate).Hours() / 24)
}
