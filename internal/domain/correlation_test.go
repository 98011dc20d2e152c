package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationMatrix_SymmetryAndDiagonal(t *testing.T) {
	m := NewCorrelationMatrix(time.Now(), 60, []string{"A", "B"})
	m.Set("A", "B", 0.42)

	ab, ok := m.Get("A", "B")
	require.True(t, ok)
	ba, ok := m.Get("B", "A")
	require.True(t, ok)
	assert.Equal(t, ab, ba)

	diag, ok := m.Get("A", "A")
	require.True(t, ok)
	assert.Equal(t, 1.0, diag)
}

func TestCorrelationMatrix_UndefinedFailsLookups(t *testing.T) {
	m := NewCorrelationMatrix(time.Now(), 60, []string{"A", "B"})
	m.Set("A", "B", 0.42)
	m.MarkUndefined("A")

	_, ok := m.Get("A", "B")
	assert.False(t, ok)
	_, ok = m.Get("B", "A")
	assert.False(t, ok)

	// Even the diagonal is unavailable for an undefined instrument
	_, ok = m.Get("A", "A")
	assert.False(t, ok)
}

func TestCorrelationMatrix_UncomputedPair(t *testing.T) {
	m := NewCorrelationMatrix(time.Now(), 60, []string{"A", "B", "C"})
	m.Set("A", "B", 0.42)

	_, ok := m.Get("A", "C")
	assert.False(t, ok)
}
