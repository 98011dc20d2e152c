package domain

import "time"

// TrendContext carries supplementary indicator readings attached to a
// decision rationale. Advisory only: it never gates a decision.
type TrendContext struct {
	SMA50         float64 `json:"sma_50"`
	SMA200        float64 `json:"sma_200"`
	AboveSMA200   bool    `json:"above_sma_200"`
	AnnualizedVol float64 `json:"annualized_vol"`
}

// Rationale is the audit snapshot captured at decision time: the exact
// scores, correlation, thresholds, and upstream failures that produced the
// decision. Serialized as-is into the decisions ledger so a decision can be
// reconstructed long after the inputs have moved on.
type Rationale struct {
	CandidateScore  float64              `json:"candidate_score"`
	HeldScore       float64              `json:"held_score"`
	NominalReturn   float64              `json:"nominal_return"` // Raw-close return over the shortest window
	AdjustedReturn  float64              `json:"adjusted_return"`
	Correlation     float64              `json:"correlation"`
	Deviation       float64              `json:"deviation"` // current_weight - target_weight (rebalance)
	ToleranceBand   float64              `json:"tolerance_band"`
	UnitPrice       float64              `json:"unit_price"`
	Qualification   *QualificationResult `json:"qualification,omitempty"`
	Trend           *TrendContext        `json:"trend,omitempty"`
	UpstreamFailure string               `json:"upstream_failure,omitempty"` // Why the generator fell back to HOLD
	Notes           []string             `json:"notes,omitempty"`
}

// RotationDecision is one proposed action for one instrument, immutable once
// emitted. The engine proposes; execution, custody and settlement live
// outside it.
type RotationDecision struct {
	ID            string         `json:"id"`
	CycleID       string         `json:"cycle_id"`
	Action        DecisionAction `json:"action"`
	InstrumentID  string         `json:"instrument_id"`
	CounterpartID string         `json:"counterpart_id,omitempty"` // Leg sold when rotating
	Side          TradeSide      `json:"side,omitempty"`
	Quantity      float64        `json:"quantity"`
	Rationale     Rationale      `json:"rationale"`
	CreatedAt     time.Time      `json:"created_at"`
}
