// Package rotation compares ranked candidates against current holdings and
// target weights and emits concrete decisions: rotate a satellite leg,
// rebalance a core holding, or hold.
package rotation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/qualification"
	"github.com/aristath/rotor/internal/modules/settings"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Generator turns ranked scores, gate results and holdings into decisions.
// Satellite rotation and core rebalancing are evaluated independently and
// never block each other.
type Generator struct {
	cfg settings.StrategyConfig
	log zerolog.Logger
}

// NewGenerator creates a generator for one cycle's validated configuration
func NewGenerator(cfg settings.StrategyConfig, log zerolog.Logger) *Generator {
	return &Generator{
		cfg: cfg,
		log: log.With().Str("component", "generator").Logger(),
	}
}

// RotationInput is the satellite-side snapshot for one evaluation cycle
type RotationInput struct {
	CycleID string
	AsOf    time.Time

	// Ranked satellite candidates, rank 1 first
	Ranked []domain.MomentumScore

	// Failures maps instrument IDs to the upstream error that excluded them
	// from ranking (InsufficientHistory, DataGap)
	Failures map[string]error

	// Matrix is the satellite-pool correlation matrix
	Matrix *domain.CorrelationMatrix

	// Holdings are the currently held satellite legs
	Holdings []domain.Holding

	// Prices maps instrument IDs to their latest raw close
	Prices map[string]float64

	// Lots maps instrument IDs to tradable lot sizes (missing means 1)
	Lots map[string]float64

	// LegBudget is the target value of a newly opened satellite leg
	LegBudget float64

	// Trends carries advisory indicator context per instrument
	Trends map[string]*domain.TrendContext
}

// RotationDecisions evaluates the qualification gate down the ranking and
// emits at most one ROTATE per cycle, plus HOLD decisions for every held
// satellite leg that is not being replaced.
//
// Fail-closed rule: when the top-ranked candidate's upstream data is
// uncertain (undefined correlation, or any candidate excluded by a data
// failure ranks would-be-first), no ROTATE is proposed; the upstream reason
// is surfaced in the HOLD rationale, never replaced with a fabricated score.
func (g *Generator) RotationDecisions(in RotationInput, gate *qualification.Gate) ([]domain.RotationDecision, []domain.QualificationResult) {
	var decisions []domain.RotationDecision
	var qualifications []domain.QualificationResult

	heldByID := make(map[string]domain.Holding, len(in.Holdings))
	for _, h := range in.Holdings {
		heldByID[h.InstrumentID] = h
	}

	if len(in.Ranked) == 0 {
		// Nothing scored this cycle: hold everything and say why
		reason := "no candidates scored this cycle"
		if len(in.Failures) > 0 {
			reason = fmt.Sprintf("no candidates scored this cycle (%d upstream failures)", len(in.Failures))
		}
		for _, h := range in.Holdings {
			decisions = append(decisions, g.holdDecision(in, h.InstrumentID, domain.Rationale{
				UpstreamFailure: reason,
			}))
		}
		return decisions, qualifications
	}

	top := in.Ranked[0]

	// Fail-closed: an undefined correlation for the top-ranked candidate
	// poisons the correlation criterion for the whole ranking.
	topUncertain := ""
	if in.Matrix != nil && in.Matrix.Undefined[top.InstrumentID] {
		topUncertain = fmt.Sprintf("top-ranked %s: %v", top.InstrumentID, domain.ErrCorrelationUndefined)
	}

	scoreByID := make(map[string]float64, len(in.Ranked))
	for _, sc := range in.Ranked {
		scoreByID[sc.InstrumentID] = sc.Composite
	}

	currentLegs := len(in.Holdings)
	replaced, replacedScore, replacedScoreKnown := g.weakestLeg(in.Holdings, scoreByID)

	var rotation *domain.RotationDecision

	for _, candidate := range in.Ranked {
		if _, held := heldByID[candidate.InstrumentID]; held {
			continue
		}

		// Opening a new leg while under the limit replaces nothing
		var replacedHolding *domain.Holding
		resultingLegs := currentLegs + 1
		if currentLegs >= g.cfg.MaxLegs && replaced != nil {
			replacedHolding = replaced
			resultingLegs = currentLegs
		}

		result := gate.Evaluate(qualification.Input{
			Candidate:       candidate,
			TopRankedID:     top.InstrumentID,
			ReplacedHolding: replacedHolding,
			HeldScore:       replacedScore,
			HeldScoreKnown:  replacedScoreKnown,
			Matrix:          in.Matrix,
			ResultingLegs:   resultingLegs,
		})
		qualifications = append(qualifications, result)

		if rotation != nil || !result.OverallPass {
			continue
		}

		if topUncertain != "" {
			// Qualified on paper, but the cycle's ranking rests on
			// uncertain data. Surface it instead of trading on it.
			decisions = append(decisions, g.holdDecision(in, candidate.InstrumentID, domain.Rationale{
				CandidateScore:  candidate.Composite,
				Qualification:   &result,
				UpstreamFailure: topUncertain,
			}))
			continue
		}

		rotation = g.rotateDecision(in, candidate, replacedHolding, result)
	}

	if rotation != nil {
		decisions = append(decisions, *rotation)
	}

	// Every held leg not being replaced gets an explicit HOLD with the
	// cycle's measurements attached
	for _, h := range in.Holdings {
		if rotation != nil && rotation.CounterpartID == h.InstrumentID {
			continue
		}
		rationale := domain.Rationale{Trend: in.Trends[h.InstrumentID]}
		if score, ok := scoreByID[h.InstrumentID]; ok {
			rationale.HeldScore = score
		} else if err, ok := in.Failures[h.InstrumentID]; ok {
			rationale.UpstreamFailure = err.Error()
		}
		decisions = append(decisions, g.holdDecision(in, h.InstrumentID, rationale))
	}

	return decisions, qualifications
}

// rotateDecision builds the ROTATE decision for a qualified candidate
func (g *Generator) rotateDecision(in RotationInput, candidate domain.MomentumScore, replaced *domain.Holding, result domain.QualificationResult) *domain.RotationDecision {
	price := in.Prices[candidate.InstrumentID]

	// Size the buy from the replaced leg's value, or the configured leg
	// budget when opening a new leg
	budget := in.LegBudget
	counterpartID := ""
	if replaced != nil {
		counterpartID = replaced.InstrumentID
		if sellPrice, ok := in.Prices[replaced.InstrumentID]; ok && sellPrice > 0 {
			budget = replaced.Shares * sellPrice
		}
	}

	rationale := domain.Rationale{
		CandidateScore: candidate.Composite,
		Qualification:  &result,
		UnitPrice:      price,
		Trend:          in.Trends[candidate.InstrumentID],
	}
	if buffer, ok := result.Criterion(domain.CriterionBuffer); ok {
		rationale.HeldScore = candidate.Composite - buffer.Measured
	}
	if corr, ok := result.Criterion(domain.CriterionCorrelation); ok {
		rationale.Correlation = corr.Measured
	}
	if len(candidate.Windows) > 0 {
		shortest := candidate.Windows[0]
		for _, w := range candidate.Windows[1:] {
			if w.Days < shortest.Days {
				shortest = w
			}
		}
		rationale.AdjustedReturn = shortest.Return
		rationale.NominalReturn = shortest.NominalReturn
	}

	if price <= 0 {
		// Fail-closed: no price, no trade
		rationale.UpstreamFailure = fmt.Sprintf("%s: %v", candidate.InstrumentID, domain.ErrDataGap)
		hold := g.holdDecision(in, candidate.InstrumentID, rationale)
		return &hold
	}

	quantity := roundToLot(budget/price, lotFor(in.Lots, candidate.InstrumentID))
	g.log.Info().
		Str("candidate", candidate.InstrumentID).
		Str("replaces", counterpartID).
		Float64("quantity", quantity).
		Float64("score", candidate.Composite).
		Msg("Rotation proposed")

	return &domain.RotationDecision{
		ID:            uuid.New().String(),
		CycleID:       in.CycleID,
		Action:        domain.ActionRotate,
		InstrumentID:  candidate.InstrumentID,
		CounterpartID: counterpartID,
		Side:          domain.SideBuy,
		Quantity:      quantity,
		Rationale:     rationale,
		CreatedAt:     time.Now().UTC(),
	}
}

// holdDecision builds a HOLD decision with the given rationale
func (g *Generator) holdDecision(in RotationInput, instrumentID string, rationale domain.Rationale) domain.RotationDecision {
	return domain.RotationDecision{
		ID:           uuid.New().String(),
		CycleID:      in.CycleID,
		Action:       domain.ActionHold,
		InstrumentID: instrumentID,
		Rationale:    rationale,
		CreatedAt:    time.Now().UTC(),
	}
}

// weakestLeg picks the lowest-scoring held satellite as the replacement
// target. A leg with no score this cycle sorts below every scored leg.
func (g *Generator) weakestLeg(holdings []domain.Holding, scoreByID map[string]float64) (*domain.Holding, float64, bool) {
	if len(holdings) == 0 {
		return nil, 0, false
	}

	sorted := make([]domain.Holding, len(holdings))
	copy(sorted, holdings)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, iok := scoreByID[sorted[i].InstrumentID]
		sj, jok := scoreByID[sorted[j].InstrumentID]
		if iok != jok {
			return !iok // Unscored legs first (weakest)
		}
		if si != sj {
			return si < sj
		}
		return sorted[i].InstrumentID < sorted[j].InstrumentID
	})

	weakest := sorted[0]
	score, known := scoreByID[weakest.InstrumentID]
	return &weakest, score, known
}

// RebalanceInput is the core-side snapshot for one evaluation cycle
type RebalanceInput struct {
	CycleID string
	AsOf    time.Time

	// Holdings are the current core positions (fixed target weights)
	Holdings []domain.Holding

	// Prices maps instrument IDs to their latest raw close
	Prices map[string]float64

	// Lots maps instrument IDs to tradable lot sizes (missing means 1)
	Lots map[string]float64

	// PortfolioValue is the total portfolio value in the reference currency
	PortfolioValue float64
}

// RebalanceDecisions checks every core holding against its tolerance band.
// Within-band holdings get an explicit HOLD; beyond-band holdings get a
// REBALANCE with a suggested quantity rounded to the instrument's lot size.
// BUY when underweight, SELL when overweight. Independent of satellite
// rotation; runs every cycle regardless of rotation outcomes.
func (g *Generator) RebalanceDecisions(in RebalanceInput) []domain.RotationDecision {
	var decisions []domain.RotationDecision

	for _, h := range in.Holdings {
		deviation := h.CurrentWeight - h.TargetWeight
		rationale := domain.Rationale{
			Deviation:     deviation,
			ToleranceBand: g.cfg.ToleranceBand,
		}

		if math.Abs(deviation) <= g.cfg.ToleranceBand {
			decisions = append(decisions, domain.RotationDecision{
				ID:           uuid.New().String(),
				CycleID:      in.CycleID,
				Action:       domain.ActionHold,
				InstrumentID: h.InstrumentID,
				Rationale:    rationale,
				CreatedAt:    time.Now().UTC(),
			})
			continue
		}

		price, ok := in.Prices[h.InstrumentID]
		if !ok || price <= 0 {
			// Fail-closed: a stale or missing quote must not produce a
			// trade suggestion
			rationale.UpstreamFailure = fmt.Sprintf("%s: %v", h.InstrumentID, domain.ErrDataGap)
			decisions = append(decisions, domain.RotationDecision{
				ID:           uuid.New().String(),
				CycleID:      in.CycleID,
				Action:       domain.ActionHold,
				InstrumentID: h.InstrumentID,
				Rationale:    rationale,
				CreatedAt:    time.Now().UTC(),
			})
			continue
		}

		side := domain.SideSell
		if h.CurrentWeight < h.TargetWeight {
			side = domain.SideBuy
		}

		deviationValue := math.Abs(deviation) * in.PortfolioValue
		quantity := roundToLot(deviationValue/price, lotFor(in.Lots, h.InstrumentID))
		rationale.UnitPrice = price

		g.log.Info().
			Str("instrument", h.InstrumentID).
			Str("side", string(side)).
			Float64("deviation", deviation).
			Float64("quantity", quantity).
			Msg("Rebalance proposed")

		decisions = append(decisions, domain.RotationDecision{
			ID:           uuid.New().String(),
			CycleID:      in.CycleID,
			Action:       domain.ActionRebalance,
			InstrumentID: h.InstrumentID,
			Side:         side,
			Quantity:     quantity,
			Rationale:    rationale,
			CreatedAt:    time.Now().UTC(),
		})
	}

	return decisions
}

// roundToLot rounds a share count down to the instrument's tradable lot size
func roundToLot(shares, lot float64) float64 {
	if lot <= 0 {
		lot = 1
	}
	if shares <= 0 {
		return 0
	}
	return math.Floor(shares/lot) * lot
}

func lotFor(lots map[string]float64, instrumentID string) float64 {
	if lot, ok := lots[instrumentID]; ok && lot > 0 {
		return lot
	}
	return 1
}
