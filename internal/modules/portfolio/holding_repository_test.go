package portfolio

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/rotor/internal/domain"
	rotortest "github.com/aristath/rotor/internal/testing"
)

func newTestRepo(t *testing.T) *HoldingRepository {
	db, cleanup := rotortest.NewTestDB(t, "portfolio")
	t.Cleanup(cleanup)
	return NewHoldingRepository(db.Conn(), zerolog.Nop())
}

func TestUpsertAndGet(t *testing.T) {
	repo := newTestRepo(t)

	h := domain.Holding{
		InstrumentID:  "CORE1",
		Shares:        120,
		EntryDate:     time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		TargetWeight:  0.25,
		CurrentWeight: 0.27,
	}
	require.NoError(t, repo.Upsert(h))

	got, err := repo.Get("CORE1")
	require.NoError(t, err)
	assert.Equal(t, h.Shares, got.Shares)
	assert.Equal(t, h.EntryDate, got.EntryDate)
	assert.Equal(t, h.TargetWeight, got.TargetWeight)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestGet_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.Get("MISSING")
	assert.True(t, errors.Is(err, ErrHoldingNotFound))
}

func TestGetAll_OrderedByInstrumentID(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Upsert(domain.Holding{InstrumentID: "SAT2", Shares: 10, EntryDate: time.Now()}))
	require.NoError(t, repo.Upsert(domain.Holding{InstrumentID: "CORE1", Shares: 100, EntryDate: time.Now()}))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "CORE1", all[0].InstrumentID)
	assert.Equal(t, "SAT2", all[1].InstrumentID)
}

func TestDelete(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.Upsert(domain.Holding{InstrumentID: "SAT1", Shares: 10, EntryDate: time.Now()}))
	require.NoError(t, repo.Delete("SAT1"))

	_, err := repo.Get("SAT1")
	assert.True(t, errors.Is(err, ErrHoldingNotFound))

	// Deleting a missing holding is not an error
	assert.NoError(t, repo.Delete("SAT1"))
}

func TestUpsert_RequiresInstrumentID(t *testing.T) {
	repo := newTestRepo(t)
	assert.Error(t, repo.Upsert(domain.Holding{Shares: 10}))
}
