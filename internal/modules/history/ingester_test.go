package history

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotor/internal/domain"
	rotortest "github.com/aristath/rotor/internal/testing"
)

func newTestIngester(t *testing.T) (*Ingester, *HistoryDB) {
	db, cleanup := rotortest.NewTestDB(t, "history")
	t.Cleanup(cleanup)
	historyDB := NewHistoryDB(db.Conn(), zerolog.Nop())
	return NewIngester(historyDB, zerolog.Nop()), historyDB
}

func TestIngestBars_DropsInvalidBars(t *testing.T) {
	ingester, historyDB := newTestIngester(t)

	bars := rotortest.Bars("SAT1", rotortest.Day(2025, 1, 6),
		[]float64{10, 0, 10.5})

	report, err := ingester.IngestBars(bars)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{Accepted: 2, Rejected: 1}, report)

	stored, err := historyDB.GetBars("SAT1", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestIngestBars_RejectsMixedInstruments(t *testing.T) {
	ingester, _ := newTestIngester(t)

	bars := append(
		rotortest.Bars("SAT1", rotortest.Day(2025, 1, 6), []float64{10}),
		rotortest.Bars("SAT2", rotortest.Day(2025, 1, 6), []float64{20})...,
	)

	_, err := ingester.IngestBars(bars)
	assert.Error(t, err)
}

func TestIngestBars_EmptyBatch(t *testing.T) {
	ingester, _ := newTestIngester(t)

	report, err := ingester.IngestBars(nil)
	require.NoError(t, err)
	assert.Equal(t, IngestReport{}, report)
}

func TestIngestDistributions(t *testing.T) {
	ingester, historyDB := newTestIngester(t)

	report, err := ingester.IngestDistributions([]domain.DistributionEvent{
		{InstrumentID: "SAT1", ExDate: rotortest.Day(2025, 2, 3), AmountPerUnit: 0.5},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Accepted)

	stored, err := historyDB.GetDistributions("SAT1")
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}
