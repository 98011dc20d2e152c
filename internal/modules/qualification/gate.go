// Package qualification implements the four-criterion gate that must pass
// unanimously before any rotation is proposed.
//
// The overall verdict is a pure function of the four sub-results, computed
// exactly once per evaluation and never cached or overridden. The aggregate
// can therefore never disagree with the per-criterion detail - the defect
// class this design exists to prevent.
package qualification

import (
	"fmt"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/rs/zerolog"
)

// Input bundles everything the gate needs to evaluate one candidate
type Input struct {
	// Candidate is the scored instrument under evaluation
	Candidate domain.MomentumScore

	// TopRankedID is the instrument ID of rank 1 in the current cycle
	TopRankedID string

	// ReplacedHolding is the satellite leg the candidate would replace,
	// nil when the candidate would open a new leg
	ReplacedHolding *domain.Holding

	// HeldScore is the composite score of the replaced holding, valid only
	// when ReplacedHolding is non-nil and the holding could be scored
	HeldScore float64
	// HeldScoreKnown is false when the replaced holding has no usable score
	// this cycle (treated as score 0, which the buffer then compares against)
	HeldScoreKnown bool

	// Matrix is the cycle's correlation matrix over the satellite pool
	Matrix *domain.CorrelationMatrix

	// ResultingLegs is the number of concurrently held satellite legs the
	// portfolio would have after acting on this candidate
	ResultingLegs int
}

// Gate evaluates the four qualification criteria with strict AND semantics
type Gate struct {
	cfg settings.StrategyConfig
	log zerolog.Logger
}

// NewGate creates a qualification gate for one cycle's validated configuration
func NewGate(cfg settings.StrategyConfig, log zerolog.Logger) *Gate {
	return &Gate{
		cfg: cfg,
		log: log.With().Str("component", "qualification").Logger(),
	}
}

// Evaluate runs the four sub-checks for one candidate and combines them.
// The result is created fresh and never partially updated.
func (g *Gate) Evaluate(in Input) domain.QualificationResult {
	buffer := g.checkBuffer(in)
	minHolding := g.checkMinHolding(in)
	corr := g.checkCorrelation(in)
	legLimit := g.checkLegLimit(in)

	result := domain.QualificationResult{
		InstrumentID: in.Candidate.InstrumentID,
		AsOf:         in.Candidate.AsOf,
		Criteria:     []domain.CriterionResult{buffer, minHolding, corr, legLimit},
		// Computed once, right here, from the four sub-results.
		OverallPass: buffer.Passed && minHolding.Passed && corr.Passed && legLimit.Passed,
	}

	if !result.OverallPass {
		g.log.Debug().
			Str("instrument", in.Candidate.InstrumentID).
			Strs("failed", result.FailedCriteria()).
			Msg("Candidate did not qualify")
	}

	return result
}

// checkBuffer requires the candidate's composite score to exceed the
// currently held instrument's score by at least the buffer threshold.
// Trivially satisfied when nothing is held.
func (g *Gate) checkBuffer(in Input) domain.CriterionResult {
	if in.ReplacedHolding == nil {
		return domain.CriterionResult{
			Name:      domain.CriterionBuffer,
			Passed:    true,
			Measured:  in.Candidate.Composite,
			Threshold: g.cfg.BufferThreshold,
			Detail:    "no current holding; trivially satisfied",
		}
	}

	advantage := in.Candidate.Composite - in.HeldScore
	detail := fmt.Sprintf("advantage over %s", in.ReplacedHolding.InstrumentID)
	if !in.HeldScoreKnown {
		detail += " (held score unavailable, compared against 0)"
	}

	return domain.CriterionResult{
		Name:      domain.CriterionBuffer,
		Passed:    advantage >= g.cfg.BufferThreshold,
		Measured:  advantage,
		Threshold: g.cfg.BufferThreshold,
		Detail:    detail,
	}
}

// checkMinHolding requires the leg being replaced to have been held at least
// min_holding_days. A candidate replacing nothing always satisfies this.
func (g *Gate) checkMinHolding(in Input) domain.CriterionResult {
	threshold := float64(g.cfg.MinHoldingDays)

	if in.ReplacedHolding == nil {
		return domain.CriterionResult{
			Name:      domain.CriterionMinHolding,
			Passed:    true,
			Measured:  0,
			Threshold: threshold,
			Detail:    "no position being replaced; trivially satisfied",
		}
	}

	daysHeld := in.ReplacedHolding.DaysHeld(in.Candidate.AsOf)
	return domain.CriterionResult{
		Name:      domain.CriterionMinHolding,
		Passed:    daysHeld >= g.cfg.MinHoldingDays,
		Measured:  float64(daysHeld),
		Threshold: threshold,
		Detail:    fmt.Sprintf("days held of %s", in.ReplacedHolding.InstrumentID),
	}
}

// checkCorrelation requires the candidate's correlation against the
// top-ranked candidate to stay at or below the threshold. The top-ranked
// candidate itself passes trivially. An undefined correlation fails the
// check conservatively (fail-closed, not fail-open).
func (g *Gate) checkCorrelation(in Input) domain.CriterionResult {
	threshold := g.cfg.CorrelationThreshold

	if in.Candidate.InstrumentID == in.TopRankedID {
		return domain.CriterionResult{
			Name:      domain.CriterionCorrelation,
			Passed:    true,
			Measured:  1.0,
			Threshold: threshold,
			Detail:    "candidate is the top-ranked instrument; trivially satisfied",
		}
	}

	if in.Matrix == nil {
		return domain.CriterionResult{
			Name:      domain.CriterionCorrelation,
			Passed:    false,
			Threshold: threshold,
			Detail:    "no correlation matrix for this cycle; failing closed",
		}
	}

	coeff, ok := in.Matrix.Get(in.Candidate.InstrumentID, in.TopRankedID)
	if !ok {
		return domain.CriterionResult{
			Name:      domain.CriterionCorrelation,
			Passed:    false,
			Threshold: threshold,
			Detail:    fmt.Sprintf("correlation against %s undefined; failing closed", in.TopRankedID),
		}
	}

	return domain.CriterionResult{
		Name:      domain.CriterionCorrelation,
		Passed:    coeff <= threshold,
		Measured:  coeff,
		Threshold: threshold,
		Detail:    fmt.Sprintf("correlation against %s", in.TopRankedID),
	}
}

// checkLegLimit requires the resulting number of concurrently held satellite
// legs to stay within max_legs
func (g *Gate) checkLegLimit(in Input) domain.CriterionResult {
	return domain.CriterionResult{
		Name:      domain.CriterionLegLimit,
		Passed:    in.ResultingLegs <= g.cfg.MaxLegs,
		Measured:  float64(in.ResultingLegs),
		Threshold: float64(g.cfg.MaxLegs),
		Detail:    "satellite legs after acting on this candidate",
	}
}
