package scoring

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotor/internal/domain"
	"github.com/aristath/rotor/internal/modules/settings"
	rotortest "github.com/aristath/rotor/internal/testing"
)

func TestScore_Composite(t *testing.T) {
	windows := []settings.WindowWeight{
		{Days: 2, Weight: 0.6},
		{Days: 4, Weight: 0.4},
	}
	scorer := NewScorer(windows, zerolog.Nop())

	series := rotortest.SeriesFromValues("SAT1", rotortest.Day(2025, 1, 6),
		[]float64{100, 102, 101, 103, 105})

	score, err := scorer.Score(series)
	require.NoError(t, err)

	r2 := 105.0/101.0 - 1
	r4 := 105.0/100.0 - 1
	require.Len(t, score.Windows, 2)
	assert.InDelta(t, r2, score.Windows[0].Return, 1e-12)
	assert.InDelta(t, r4, score.Windows[1].Return, 1e-12)
	assert.InDelta(t, 0.6*r2+0.4*r4, score.Composite, 1e-12)

	last, _ := series.Last()
	assert.Equal(t, last.Date, score.AsOf)
}

func TestScore_InsufficientHistory(t *testing.T) {
	windows := []settings.WindowWeight{{Days: 10, Weight: 1.0}}
	scorer := NewScorer(windows, zerolog.Nop())

	series := rotortest.SeriesFromValues("SAT1", rotortest.Day(2025, 1, 6),
		[]float64{100, 101, 102})

	_, err := scorer.Score(series)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
}

func TestScore_EmptySeries(t *testing.T) {
	windows := []settings.WindowWeight{{Days: 2, Weight: 1.0}}
	scorer := NewScorer(windows, zerolog.Nop())

	_, err := scorer.Score(&domain.TotalReturnSeries{InstrumentID: "SAT1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInsufficientHistory))
}

func TestScore_NoWindowsConfigured(t *testing.T) {
	scorer := NewScorer(nil, zerolog.Nop())

	series := rotortest.SeriesFromValues("SAT1", rotortest.Day(2025, 1, 6),
		[]float64{100, 101})

	_, err := scorer.Score(series)
	assert.True(t, errors.Is(err, domain.ErrConfigurationInvalid))
}

func TestScore_Deterministic(t *testing.T) {
	windows := []settings.WindowWeight{
		{Days: 2, Weight: 0.6},
		{Days: 3, Weight: 0.4},
	}
	scorer := NewScorer(windows, zerolog.Nop())
	series := rotortest.SeriesFromValues("SAT1", rotortest.Day(2025, 1, 6),
		[]float64{100, 98, 103, 104})

	first, err := scorer.Score(series)
	require.NoError(t, err)
	second, err := scorer.Score(series)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
