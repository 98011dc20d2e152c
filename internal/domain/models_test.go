package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(values ...float64) *TotalReturnSeries {
	s := &TotalReturnSeries{InstrumentID: "SAT1"}
	date := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for _, v := range values {
		s.Points = append(s.Points, TRPoint{Date: date, Value: v, Close: v})
		date = date.AddDate(0, 0, 1)
	}
	return s
}

func TestReturnOver(t *testing.T) {
	s := seriesOf(100, 102, 105)

	r, err := s.ReturnOver(2)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, r, 1e-12)

	_, err = s.ReturnOver(3)
	assert.True(t, errors.Is(err, ErrInsufficientHistory))

	_, err = s.ReturnOver(0)
	assert.True(t, errors.Is(err, ErrConfigurationInvalid))
}

func TestNominalReturnOver_ZeroBaseIsGap(t *testing.T) {
	s := seriesOf(100, 102, 105)
	s.Points[0].Close = 0

	_, err := s.NominalReturnOver(2)
	assert.True(t, errors.Is(err, ErrDataGap))
}

func TestInstrumentLot_DefaultsToOne(t *testing.T) {
	assert.Equal(t, 1.0, Instrument{}.Lot())
	assert.Equal(t, 10.0, Instrument{LotSize: 10}.Lot())
}

func TestHoldingDaysHeld(t *testing.T) {
	entry := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	h := Holding{InstrumentID: "SAT1", EntryDate: entry}

	assert.Equal(t, 30, h.DaysHeld(entry.AddDate(0, 0, 30)))
	assert.Equal(t, 0, h.DaysHeld(entry.AddDate(0, 0, -1)))
	assert.Equal(t, 0, Holding{}.DaysHeld(entry))
}

func TestShortestWindowReturn(t *testing.T) {
	m := MomentumScore{
		Windows: []WindowReturn{
			{Days: 120, Return: 0.08},
			{Days: 60, Return: 0.03},
		},
	}
	assert.Equal(t, 0.03, m.ShortestWindowReturn())
	assert.Zero(t, (&MomentumScore{}).ShortestWindowReturn())
}
