package domain

import "time"

// CorrelationMatrix is a symmetric mapping of instrument pairs to Pearson
// correlation coefficients over one evaluation date's rolling window.
// Symmetry and the identity diagonal hold by construction: Set stores both
// orientations and Get answers the diagonal without a lookup.
type CorrelationMatrix struct {
	AsOf       time.Time                     `json:"as_of"`
	WindowDays int                           `json:"window_days"`
	IDs        []string                      `json:"ids"` // Sorted candidate set
	Coeffs     map[string]map[string]float64 `json:"coeffs"`
	Undefined  map[string]bool               `json:"undefined,omitempty"` // Instruments with zero-variance or unalignable returns
}

// NewCorrelationMatrix creates an empty matrix for the given candidate set
func NewCorrelationMatrix(asOf time.Time, windowDays int, ids []string) *CorrelationMatrix {
	return &CorrelationMatrix{
		AsOf:       asOf,
		WindowDays: windowDays,
		IDs:        ids,
		Coeffs:     make(map[string]map[string]float64, len(ids)),
		Undefined:  make(map[string]bool),
	}
}

// Set records a pairwise coefficient in both orientations
func (m *CorrelationMatrix) Set(a, b string, coeff float64) {
	if m.Coeffs[a] == nil {
		m.Coeffs[a] = make(map[string]float64)
	}
	if m.Coeffs[b] == nil {
		m.Coeffs[b] = make(map[string]float64)
	}
	m.Coeffs[a][b] = coeff
	m.Coeffs[b][a] = coeff
}

// MarkUndefined flags an instrument whose correlations are undefined
// (zero variance or insufficient aligned observations)
func (m *CorrelationMatrix) MarkUndefined(id string) {
	m.Undefined[id] = true
}

// Get returns the coefficient for a pair. ok is false when either instrument
// is marked undefined or the pair was never computed.
func (m *CorrelationMatrix) Get(a, b string) (float64, bool) {
	if m.Undefined[a] || m.Undefined[b] {
		return 0, false
	}
	if a == b {
		return 1.0, true
	}
	row, ok := m.Coeffs[a]
	if !ok {
		return 0, false
	}
	coeff, ok := row[b]
	return coeff, ok
}
