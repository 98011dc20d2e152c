package rotation

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/qualification"
	"github.com/aristath/rotor/internal/modules/settings"
)

var testAsOf = time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)

func testGenerator() (*Generator, *qualification.Gate) {
	cfg := settings.DefaultStrategyConfig()
	return NewGenerator(cfg, zerolog.Nop()), qualification.NewGate(cfg, zerolog.Nop())
}

func rankedScore(id string, composite float64) domain.MomentumScore {
	return domain.MomentumScore{
		InstrumentID: id,
		AsOf:         testAsOf,
		Composite:    composite,
		Windows: []domain.WindowReturn{
			{Days: 60, Weight: 0.6, Return: composite, NominalReturn: composite},
		},
	}
}

func satLeg(id string, shares float64, daysHeld int) domain.Holding {
	return domain.Holding{
		InstrumentID: id,
		Shares:       shares,
		EntryDate:    testAsOf.AddDate(0, 0, -daysHeld),
	}
}

func fullMatrix(ids ...string) *domain.CorrelationMatrix {
	m := domain.NewCorrelationMatrix(testAsOf, 60, ids)
	for i := 0; i < len(ids); i++ {
		m.Set(ids[i], ids[i], 1.0)
		for j := i + 1; j < len(ids); j++ {
			m.Set(ids[i], ids[j], 0.3)
		}
	}
	return m
}

func byAction(decisions []domain.RotationDecision, action domain.DecisionAction) []domain.RotationDecision {
	var out []domain.RotationDecision
	for _, d := range decisions {
		if d.Action == action {
			out = append(out, d)
		}
	}
	return out
}

func TestRotationDecisions_RotatesIntoQualifiedCandidate(t *testing.T) {
	gen, gate := testGenerator()

	in := RotationInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Ranked: []domain.MomentumScore{
			rankedScore("CAND", 0.30),
			rankedScore("HELD1", 0.10),
			rankedScore("HELD2", 0.05),
		},
		Matrix: fullMatrix("CAND", "HELD1", "HELD2"),
		Holdings: []domain.Holding{
			satLeg("HELD1", 10, 100),
			satLeg("HELD2", 20, 100),
		},
		Prices: map[string]float64{"CAND": 50, "HELD1": 20, "HELD2": 10},
	}

	decisions, qualifications := gen.RotationDecisions(in, gate)

	rotates := byAction(decisions, domain.ActionRotate)
	require.Len(t, rotates, 1)
	rotate := rotates[0]

	// The weakest leg is replaced and its liquidation value sizes the buy:
	// 20 shares * 10 = 200 budget, 200 / 50 = 4 shares
	assert.Equal(t, "CAND", rotate.InstrumentID)
	assert.Equal(t, "HELD2", rotate.CounterpartID)
	assert.Equal(t, domain.SideBuy, rotate.Side)
	assert.Equal(t, 4.0, rotate.Quantity)
	require.NotNil(t, rotate.Rationale.Qualification)
	assert.True(t, rotate.Rationale.Qualification.OverallPass)

	// The surviving leg gets an explicit HOLD carrying its score
	holds := byAction(decisions, domain.ActionHold)
	require.Len(t, holds, 1)
	assert.Equal(t, "HELD1", holds[0].InstrumentID)
	assert.Equal(t, 0.10, holds[0].Rationale.HeldScore)

	// Only the non-held candidate was gated
	require.Len(t, qualifications, 1)
	assert.Equal(t, "CAND", qualifications[0].InstrumentID)
}

func TestRotationDecisions_AtMostOneRotatePerCycle(t *testing.T) {
	gen, gate := testGenerator()

	in := RotationInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Ranked: []domain.MomentumScore{
			rankedScore("C1", 0.30),
			rankedScore("C2", 0.28),
			rankedScore("HELD1", 0.05),
		},
		Matrix:    fullMatrix("C1", "C2", "HELD1"),
		Holdings:  []domain.Holding{satLeg("HELD1", 10, 100)},
		Prices:    map[string]float64{"C1": 50, "C2": 40, "HELD1": 20},
		LegBudget: 1000,
	}

	decisions, qualifications := gen.RotationDecisions(in, gate)

	rotates := byAction(decisions, domain.ActionRotate)
	require.Len(t, rotates, 1)
	assert.Equal(t, "C1", rotates[0].InstrumentID)

	// Under the leg limit nothing is replaced; the leg budget sizes the buy
	assert.Equal(t, "", rotates[0].CounterpartID)
	assert.Equal(t, 20.0, rotates[0].Quantity) // 1000 / 50

	// Both candidates were gated even though only one rotation is emitted
	assert.Len(t, qualifications, 2)
}

func TestRotationDecisions_UndefinedTopCorrelationFailsClosed(t *testing.T) {
	gen, gate := testGenerator()

	matrix := fullMatrix("CAND", "HELD1")
	matrix.MarkUndefined("CAND")

	in := RotationInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Ranked: []domain.MomentumScore{
			rankedScore("CAND", 0.30),
			rankedScore("HELD1", 0.10),
		},
		Matrix:    matrix,
		Holdings:  []domain.Holding{satLeg("HELD1", 10, 100)},
		Prices:    map[string]float64{"CAND": 50, "HELD1": 20},
		LegBudget: 1000,
	}

	decisions, _ := gen.RotationDecisions(in, gate)

	assert.Empty(t, byAction(decisions, domain.ActionRotate))

	var candHold *domain.RotationDecision
	for i, d := range decisions {
		if d.InstrumentID == "CAND" {
			candHold = &decisions[i]
		}
	}
	require.NotNil(t, candHold)
	assert.Equal(t, domain.ActionHold, candHold.Action)
	assert.Contains(t, candHold.Rationale.UpstreamFailure, "correlation")
}

func TestRotationDecisions_MissingPriceFailsClosed(t *testing.T) {
	gen, gate := testGenerator()

	in := RotationInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Ranked: []domain.MomentumScore{
			rankedScore("CAND", 0.30),
		},
		Matrix:    fullMatrix("CAND"),
		Prices:    map[string]float64{}, // No quote for CAND
		LegBudget: 1000,
	}

	decisions, _ := gen.RotationDecisions(in, gate)

	assert.Empty(t, byAction(decisions, domain.ActionRotate))
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.ActionHold, decisions[0].Action)
	assert.NotEmpty(t, decisions[0].Rationale.UpstreamFailure)
}

func TestRotationDecisions_EmptyRankingHoldsEverything(t *testing.T) {
	gen, gate := testGenerator()

	in := RotationInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Failures: map[string]error{
			"HELD1": domain.ErrInsufficientHistory,
			"HELD2": domain.ErrInsufficientHistory,
		},
		Holdings: []domain.Holding{
			satLeg("HELD1", 10, 100),
			satLeg("HELD2", 20, 100),
		},
	}

	decisions, _ := gen.RotationDecisions(in, gate)

	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, domain.ActionHold, d.Action)
		assert.NotEmpty(t, d.Rationale.UpstreamFailure)
	}
}

func TestRotationDecisions_UnqualifiedCandidateDoesNotRotate(t *testing.T) {
	gen, gate := testGenerator()

	// The held leg is only 5 days old; min_holding blocks the replacement
	in := RotationInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Ranked: []domain.MomentumScore{
			rankedScore("CAND", 0.30),
			rankedScore("HELD1", 0.10),
			rankedScore("HELD2", 0.05),
		},
		Matrix: fullMatrix("CAND", "HELD1", "HELD2"),
		Holdings: []domain.Holding{
			satLeg("HELD1", 10, 100),
			satLeg("HELD2", 20, 5),
		},
		Prices: map[string]float64{"CAND": 50, "HELD1": 20, "HELD2": 10},
	}

	decisions, qualifications := gen.RotationDecisions(in, gate)

	assert.Empty(t, byAction(decisions, domain.ActionRotate))
	assert.Len(t, byAction(decisions, domain.ActionHold), 2)

	require.Len(t, qualifications, 1)
	assert.False(t, qualifications[0].OverallPass)
	assert.Contains(t, qualifications[0].FailedCriteria(), domain.CriterionMinHolding)
}

func TestRebalanceDecisions_OverweightSells(t *testing.T) {
	gen, _ := testGenerator()

	in := RebalanceInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Holdings: []domain.Holding{
			{InstrumentID: "CORE1", Shares: 160, TargetWeight: 0.05, CurrentWeight: 0.08},
		},
		Prices:         map[string]float64{"CORE1": 50},
		PortfolioValue: 100000,
	}

	decisions := gen.RebalanceDecisions(in)
	require.Len(t, decisions, 1)

	d := decisions[0]
	assert.Equal(t, domain.ActionRebalance, d.Action)
	assert.Equal(t, domain.SideSell, d.Side)
	assert.Equal(t, 60.0, d.Quantity) // 0.03 * 100000 / 50
	assert.InDelta(t, 0.03, d.Rationale.Deviation, 1e-12)
}

func TestRebalanceDecisions_UnderweightBuys(t *testing.T) {
	gen, _ := testGenerator()

	in := RebalanceInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Holdings: []domain.Holding{
			{InstrumentID: "CORE1", Shares: 40, TargetWeight: 0.05, CurrentWeight: 0.02},
		},
		Prices:         map[string]float64{"CORE1": 50},
		PortfolioValue: 100000,
	}

	decisions := gen.RebalanceDecisions(in)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.ActionRebalance, decisions[0].Action)
	assert.Equal(t, domain.SideBuy, decisions[0].Side)
}

func TestRebalanceDecisions_WithinBandHolds(t *testing.T) {
	gen, _ := testGenerator()

	in := RebalanceInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Holdings: []domain.Holding{
			{InstrumentID: "CORE1", TargetWeight: 0.05, CurrentWeight: 0.06},
			{InstrumentID: "CORE2", TargetWeight: 0.10, CurrentWeight: 0.12}, // Exactly at band
		},
		Prices:         map[string]float64{"CORE1": 50, "CORE2": 50},
		PortfolioValue: 100000,
	}

	decisions := gen.RebalanceDecisions(in)
	require.Len(t, decisions, 2)
	for _, d := range decisions {
		assert.Equal(t, domain.ActionHold, d.Action)
		assert.Zero(t, d.Quantity)
	}
}

func TestRebalanceDecisions_MissingPriceFailsClosed(t *testing.T) {
	gen, _ := testGenerator()

	in := RebalanceInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Holdings: []domain.Holding{
			{InstrumentID: "CORE1", TargetWeight: 0.05, CurrentWeight: 0.10},
		},
		Prices:         map[string]float64{},
		PortfolioValue: 100000,
	}

	decisions := gen.RebalanceDecisions(in)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.ActionHold, decisions[0].Action)
	assert.NotEmpty(t, decisions[0].Rationale.UpstreamFailure)
}

func TestRebalanceDecisions_RoundsDownToLot(t *testing.T) {
	gen, _ := testGenerator()

	in := RebalanceInput{
		CycleID: "cycle-1",
		AsOf:    testAsOf,
		Holdings: []domain.Holding{
			{InstrumentID: "CORE1", TargetWeight: 0.05, CurrentWeight: 0.10},
		},
		Prices:         map[string]float64{"CORE1": 79}, // 0.05 * 100000 / 79 = 63.29
		Lots:           map[string]float64{"CORE1": 10},
		PortfolioValue: 100000,
	}

	decisions := gen.RebalanceDecisions(in)
	require.Len(t, decisions, 1)
	assert.Equal(t, 60.0, decisions[0].Quantity)
}

func TestRoundToLot(t *testing.T) {
	assert.Equal(t, 4.0, roundToLot(4.9, 1))
	assert.Equal(t, 60.0, roundToLot(63.2, 10))
	assert.Equal(t, 0.0, roundToLot(0.7, 1))
	assert.Equal(t, 0.0, roundToLot(-3, 1))
	assert.Equal(t, 7.0, roundToLot(7.5, 0)) // Zero lot treated as 1
}
