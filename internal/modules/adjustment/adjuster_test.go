package adjustment

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotor/internal/domain"
	rotortest "github.com/aristath/rotor/internal/testing"
)

const suspectThreshold = -0.15

func newTestAdjuster() *Adjuster {
	return NewAdjuster(suspectThreshold, zerolog.Nop())
}

func TestBuild_DividendAdjustment(t *testing.T) {
	// A 0.857 distribution going ex between a 1.77 and a 0.89 close: the raw
	// drop is ~-49.7% but the investor's actual return is ~-1.3%
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("HDIV", start, []float64{1.77, 0.89})
	events := []domain.DistributionEvent{
		{InstrumentID: "HDIV", ExDate: bars[1].Date, AmountPerUnit: 0.857},
	}

	series, err := newTestAdjuster().Build("HDIV", bars, events)
	require.NoError(t, err)
	require.Equal(t, 2, series.Len())

	adjusted, err := series.ReturnOver(1)
	require.NoError(t, err)
	nominal, err := series.NominalReturnOver(1)
	require.NoError(t, err)

	assert.InDelta(t, -0.0130, adjusted, 0.0005)
	assert.InDelta(t, -0.4972, nominal, 0.0005)

	// The drop is explained by a recorded event, so it is not suspect
	assert.Empty(t, series.Warnings)
	assert.Empty(t, series.Gaps)
}

func TestBuild_SeedsAtFirstValidClose(t *testing.T) {
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{0, 5.0, 6.0})

	series, err := newTestAdjuster().Build("SAT1", bars, nil)
	require.NoError(t, err)

	require.Equal(t, 2, series.Len())
	assert.Equal(t, 5.0, series.Points[0].Value)
	assert.InDelta(t, 6.0, series.Points[1].Value, 1e-9)
	require.Len(t, series.Gaps, 1)
	assert.Equal(t, bars[0].Date, series.Gaps[0].Date)
}

func TestBuild_DataGapSkippedNotInterpolated(t *testing.T) {
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{10.0, 0, 11.0})

	series, err := newTestAdjuster().Build("SAT1", bars, nil)
	require.NoError(t, err)

	require.Equal(t, 2, series.Len())
	require.Len(t, series.Gaps, 1)
	assert.Equal(t, bars[1].Date, series.Gaps[0].Date)

	// The gap day contributes nothing; the next valid bar chains off the
	// last valid close
	assert.InDelta(t, 11.0, series.Points[1].Value, 1e-9)
}

func TestBuild_SuspectedUnrecordedDistribution(t *testing.T) {
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{10.0, 5.0})

	series, err := newTestAdjuster().Build("SAT1", bars, nil)
	require.NoError(t, err)

	// The day passes through unadjusted but gets tagged
	require.Equal(t, 2, series.Len())
	assert.InDelta(t, 5.0, series.Points[1].Value, 1e-9)

	require.Len(t, series.Warnings, 1)
	w := series.Warnings[0]
	assert.Equal(t, bars[1].Date, w.Date)
	assert.InDelta(t, -0.5, w.RawReturn, 1e-9)
	assert.Equal(t, suspectThreshold, w.Threshold)
}

func TestBuild_ModerateDropNotSuspect(t *testing.T) {
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{10.0, 9.0})

	series, err := newTestAdjuster().Build("SAT1", bars, nil)
	require.NoError(t, err)
	assert.Empty(t, series.Warnings)
}

func TestBuild_Deterministic(t *testing.T) {
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{10.0, 10.5, 10.2, 0, 10.8, 4.0})
	events := []domain.DistributionEvent{
		{InstrumentID: "SAT1", ExDate: bars[2].Date, AmountPerUnit: 0.25},
	}

	first, err := newTestAdjuster().Build("SAT1", bars, events)
	require.NoError(t, err)
	second, err := newTestAdjuster().Build("SAT1", bars, events)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestBuild_RejectsForeignEvents(t *testing.T) {
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{10.0, 10.5})
	events := []domain.DistributionEvent{
		{InstrumentID: "SAT2", ExDate: bars[1].Date, AmountPerUnit: 0.25},
	}

	_, err := newTestAdjuster().Build("SAT1", bars, events)
	assert.Error(t, err)
}

func TestBuild_EmptyInput(t *testing.T) {
	series, err := newTestAdjuster().Build("SAT1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, series.Len())
}

func TestBuild_EventTimeOfDayIgnored(t *testing.T) {
	// Events match bars by calendar date, not exact timestamp
	start := rotortest.Day(2025, 1, 6)
	bars := rotortest.Bars("SAT1", start, []float64{10.0, 9.5})
	events := []domain.DistributionEvent{
		{
			InstrumentID:  "SAT1",
			ExDate:        bars[1].Date.Add(14 * time.Hour),
			AmountPerUnit: 0.5,
		},
	}

	series, err := newTestAdjuster().Build("SAT1", bars, events)
	require.NoError(t, err)

	adjusted, err := series.ReturnOver(1)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, adjusted, 1e-9) // (9.5 + 0.5) / 10.0 - 1
}
